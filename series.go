package streamchart

import (
	"sync"

	"github.com/gammazero/deque"
)

// Series is a named, ordered sequence of samples. Points are appended at
// the tail as they arrive and evicted from the head as they age out of the
// retention horizon, so the backing store is a ring-buffer deque rather
// than a slice.
//
// A series has one writer (the pipeline that owns its store); reads may
// come from render callbacks on other goroutines, so access is guarded.
type Series struct {
	mu   sync.RWMutex
	name string
	data deque.Deque[Datum]
}

// SeriesFrom constructs a series with the given initial points.
// Most series start empty and are filled by the pipeline.
func SeriesFrom(name string, points ...Datum) *Series {
	s := &Series{name: name}
	for _, p := range points {
		s.data.PushBack(p)
	}
	return s
}

// Name returns the series name.
func (s *Series) Name() string {
	return s.name
}

// Len returns the number of retained points.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Len()
}

// Last returns the most recent point, or ok=false if the series is empty.
func (s *Series) Last() (Datum, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Len() == 0 {
		return Datum{}, false
	}
	return s.data.Back(), true
}

// Data returns a snapshot of the retained points in time order.
func (s *Series) Data() []Datum {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Datum, s.data.Len())
	for i := range out {
		out[i] = s.data.At(i)
	}
	return out
}

// Append adds points at the tail of the series.
func (s *Series) Append(points []Datum) {
	s.mu.Lock()
	for _, p := range points {
		s.data.PushBack(p)
	}
	s.mu.Unlock()
}

// EvictBefore removes leading points strictly older than cutoff and
// returns how many were removed. A non-empty series is never drained
// below one element; the newest point survives even when it is older
// than the cutoff, which keeps the head usable for the min-time check
// that follows eviction.
func (s *Series) EvictBefore(cutoff float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for s.data.Len() > 1 && s.data.Front().Time < cutoff {
		s.data.PopFront()
		evicted++
	}
	return evicted
}

// SeriesStore owns every series of a chart, keyed by name. Series are
// created lazily on first reference and live for the chart session.
// The store has a single writer (the pipeline handler); the RWMutex
// protects concurrent readers on the render side.
type SeriesStore struct {
	mu     sync.RWMutex
	series map[string]*Series
	names  []string
}

// NewSeriesStore creates an empty store, optionally pre-populated.
func NewSeriesStore(initial ...*Series) *SeriesStore {
	st := &SeriesStore{series: make(map[string]*Series, len(initial))}
	for _, s := range initial {
		st.series[s.Name()] = s
		st.names = append(st.names, s.Name())
	}
	return st
}

// Get returns the named series, or ok=false if it does not exist.
func (st *SeriesStore) Get(name string) (*Series, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.series[name]
	return s, ok
}

// GetOrCreate returns the named series, materializing an empty one on
// first reference. A batch naming an unknown series is never an error.
func (st *SeriesStore) GetOrCreate(name string) *Series {
	st.mu.RLock()
	s, ok := st.series[name]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok = st.series[name]; ok {
		return s
	}
	s = SeriesFrom(name)
	st.series[name] = s
	st.names = append(st.names, name)
	return s
}

// Names returns the series names in insertion order.
func (st *SeriesStore) Names() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]string, len(st.names))
	copy(out, st.names)
	return out
}

// Len returns the number of series in the store.
func (st *SeriesStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.series)
}

// MaxTime returns the latest sample time across all stored series, or
// ok=false if every series is empty. The cadence-driven pipeline uses it
// once, at subscription time, as the window anchor.
func (st *SeriesStore) MaxTime() (float64, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	maxTime := 0.0
	found := false
	for _, s := range st.series {
		if last, ok := s.Last(); ok {
			if !found || last.Time > maxTime {
				maxTime = last.Time
			}
			found = true
		}
	}
	return maxTime, found
}
