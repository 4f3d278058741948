package streamchart

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// AxisAssignment binds a series to its x and y axes. Assignments are
// supplied by configuration and read-only to the pipeline; a series
// without one, or one naming an unregistered axis, falls back to the
// registry's default axis.
type AxisAssignment struct {
	XAxisID string
	YAxisID string
}

// RenderCallback receives the updated window per axis id, once per
// processed buffered group.
type RenderCallback func(ranges map[string]ContinuousAxisRange)

// SeriesUpdateCallback observes newly appended points per series, before
// eviction. Side effect only.
type SeriesUpdateCallback func(name string, newPoints []Datum)

// CurrentTimeCallback is invoked whenever an axis window slides forward.
type CurrentTimeCallback func(axisID string, newEndTime float64)

// PipelineConfig configures a streaming pipeline.
type PipelineConfig struct {
	// WindowingTime is the buffering granularity: inbound batches arriving
	// within one interval are coalesced into a single processing pass.
	// Default: 100ms.
	WindowingTime time.Duration

	// DropDataAfter is the retention horizon: points older than this,
	// relative to the latest time on their axis, are evicted.
	// Default: 10s.
	DropDataAfter time.Duration

	// CadencePeriod is the heartbeat interval of the cadence-driven
	// policy; ignored by the event-driven policy. Default: 25ms.
	CadencePeriod time.Duration

	// MaxTime, when positive, is a self-unsubscribe bound in milliseconds:
	// the subscription cancels itself once an axis window end reaches it.
	MaxTime float64

	// AxisAssignments maps series names to their axes.
	AxisAssignments map[string]AxisAssignment

	// OnRender is invoked once per processed group with the updated
	// window per axis.
	OnRender RenderCallback

	// OnSeriesUpdate, if set, observes each series' new points per group,
	// before eviction.
	OnSeriesUpdate SeriesUpdateCallback

	// OnCurrentTime, if set, is notified whenever an axis window slides.
	OnCurrentTime CurrentTimeCallback
}

// DefaultPipelineConfig returns a configuration with sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		WindowingTime: 100 * time.Millisecond,
		DropDataAfter: 10 * time.Second,
		CadencePeriod: 25 * time.Millisecond,
	}
}

func (c *PipelineConfig) normalize() {
	if c.WindowingTime <= 0 {
		c.WindowingTime = 100 * time.Millisecond
	}
	if c.DropDataAfter <= 0 {
		c.DropDataAfter = 10 * time.Second
	}
	if c.CadencePeriod <= 0 {
		c.CadencePeriod = 25 * time.Millisecond
	}
}

// PipelineStats tracks pipeline counters.
type PipelineStats struct {
	BatchesIn       int64
	PointsIn        int64
	PointsEvicted   int64
	GroupsProcessed int64
	WindowSlides    int64
}

// PipelineSubscription is the cancellation handle of a running pipeline
// subscription. Unsubscribing stops delivery and the cadence timer;
// repeated calls are no-ops.
type PipelineSubscription struct {
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

func newPipelineSubscription() *PipelineSubscription {
	return &PipelineSubscription{done: make(chan struct{})}
}

// Done is closed when the subscription ends.
func (s *PipelineSubscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe cancels the subscription. Calling it more than once, or
// after the pipeline has cancelled itself, is a no-op.
func (s *PipelineSubscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// Pipeline is the streaming data-windowing engine. It consumes ChartData
// batches, buffers them over WindowingTime, appends points to the series
// store, evicts points past the retention horizon, slides the per-axis
// windows and invokes the render callback with the updated ranges.
//
// All mutation happens inside the single consumer goroutine of a
// subscription, so the store and registry need no coordination beyond the
// stream's own ordering: no group starts processing before the previous
// group's render callback has returned.
type Pipeline struct {
	store  *SeriesStore
	axes   *AxisRegistry
	config PipelineConfig

	batchesIn       int64
	pointsIn        int64
	pointsEvicted   int64
	groupsProcessed int64
	windowSlides    int64
}

// NewPipeline creates a pipeline over the given store and axis registry.
func NewPipeline(store *SeriesStore, axes *AxisRegistry, cfg PipelineConfig) *Pipeline {
	cfg.normalize()
	return &Pipeline{
		store:  store,
		axes:   axes,
		config: cfg,
	}
}

// Store returns the pipeline's series store.
func (p *Pipeline) Store() *SeriesStore {
	return p.store
}

// Axes returns the pipeline's axis registry.
func (p *Pipeline) Axes() *AxisRegistry {
	return p.axes
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		BatchesIn:       atomic.LoadInt64(&p.batchesIn),
		PointsIn:        atomic.LoadInt64(&p.pointsIn),
		PointsEvicted:   atomic.LoadInt64(&p.pointsEvicted),
		GroupsProcessed: atomic.LoadInt64(&p.groupsProcessed),
		WindowSlides:    atomic.LoadInt64(&p.windowSlides),
	}
}

// xAxisIDFor resolves the x axis a series is windowed on. Unassigned
// series, and assignments naming an unregistered axis, resolve to the
// default axis.
func (p *Pipeline) xAxisIDFor(name string) string {
	if a, ok := p.config.AxisAssignments[name]; ok && p.axes.Has(a.XAxisID) {
		return a.XAxisID
	}
	return p.axes.DefaultAxisID()
}

// dropAfterMillis returns the retention horizon in milliseconds.
func (p *Pipeline) dropAfterMillis() float64 {
	return float64(p.config.DropDataAfter) / float64(time.Millisecond)
}

// SubscriptionFor runs the event-driven policy against the inbound batch
// stream: batches are buffered over WindowingTime and each buffered group
// is processed in arrival order. Axis windows advance from the data's own
// max times. The subscription runs until the returned handle is
// unsubscribed, the stream closes, or the configured MaxTime bound is
// reached.
func (p *Pipeline) SubscriptionFor(in <-chan ChartData) *PipelineSubscription {
	sub := newPipelineSubscription()
	go p.runEventDriven(in, sub)
	return sub
}

func (p *Pipeline) runEventDriven(in <-chan ChartData, sub *PipelineSubscription) {
	ticker := time.NewTicker(p.config.WindowingTime)
	defer ticker.Stop()

	var group []ChartData
	for {
		select {
		case <-sub.done:
			return
		case d, ok := <-in:
			if !ok {
				if len(group) > 0 {
					p.processGroup(group, sub)
				}
				sub.Unsubscribe()
				return
			}
			atomic.AddInt64(&p.batchesIn, 1)
			group = append(group, d)
		case <-ticker.C:
			if len(group) == 0 {
				continue
			}
			p.processGroup(group, sub)
			group = nil
		}
	}
}

// processGroup handles one buffered group under the event-driven policy:
// snapshot ranges, append points and notify the observer, compute the
// per-axis max time, evict past the horizon, slide windows that the data
// has overtaken, and render once.
func (p *Pipeline) processGroup(group []ChartData, sub *PipelineSubscription) {
	ranges := p.snapshotRanges()
	axisMax := make(map[string]float64)
	updated := make(map[string]map[string]struct{})

	for _, batch := range group {
		for _, name := range sortedSeriesNames(batch.NewPoints) {
			points := batch.NewPoints[name]
			if len(points) == 0 {
				continue
			}
			s := p.store.GetOrCreate(name)
			s.Append(points)
			atomic.AddInt64(&p.pointsIn, int64(len(points)))
			if p.config.OnSeriesUpdate != nil {
				p.config.OnSeriesUpdate(name, points)
			}
			axisID := p.xAxisIDFor(name)
			set := updated[axisID]
			if set == nil {
				set = make(map[string]struct{})
				updated[axisID] = set
			}
			set[name] = struct{}{}
		}
		for name, t := range batch.MaxTimes {
			axisID := p.xAxisIDFor(name)
			if t > axisMax[axisID] {
				axisMax[axisID] = t
			}
		}
	}

	dropAfter := p.dropAfterMillis()
	selfStop := false
	for _, axisID := range sortedAxisIDs(axisMax) {
		maxTime := axisMax[axisID]
		for name := range updated[axisID] {
			if s, ok := p.store.Get(name); ok {
				n := s.EvictBefore(maxTime - dropAfter)
				atomic.AddInt64(&p.pointsEvicted, int64(n))
			}
		}

		r, ok := ranges[axisID]
		if !ok {
			continue
		}
		if maxTime > r.End {
			width := r.End - r.Start
			next := r.Update(math.Max(0, maxTime-width), math.Max(maxTime, width))
			ranges[axisID] = next
			p.applyRange(axisID, next)
			if p.config.MaxTime > 0 && next.End >= p.config.MaxTime {
				selfStop = true
			}
		}
	}

	if p.config.OnRender != nil {
		p.config.OnRender(ranges)
	}
	atomic.AddInt64(&p.groupsProcessed, 1)

	if selfStop {
		sub.Unsubscribe()
	}
}

// SubscriptionWithCadenceFor runs the cadence-driven policy: the inbound
// stream is merged with a periodic tick source emitting a synthetic empty
// batch every CadencePeriod, so axis windows keep advancing at wall-clock
// cadence even during data gaps. Window advancement is anchored on the
// store's max time computed once, here, at subscription time -- not per
// tick -- and comes solely from the cadence; inbound data is appended and
// evicted within whatever window the cadence has established.
func (p *Pipeline) SubscriptionWithCadenceFor(in <-chan ChartData) *PipelineSubscription {
	sub := newPipelineSubscription()

	anchor, _ := p.store.MaxTime()
	start := time.Now()
	merged := make(chan ChartData, 64)

	// Timer task pushing synthetic heartbeats into the shared channel.
	go func() {
		ticker := time.NewTicker(p.config.CadencePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-sub.done:
				return
			case <-ticker.C:
				select {
				case merged <- ChartData{}:
				case <-sub.done:
					return
				}
			}
		}
	}()

	// Fan-in of the data stream.
	go func() {
		for {
			select {
			case <-sub.done:
				return
			case d, ok := <-in:
				if !ok {
					return
				}
				atomic.AddInt64(&p.batchesIn, 1)
				select {
				case merged <- d:
				case <-sub.done:
					return
				}
			}
		}
	}()

	go p.runCadence(merged, sub, anchor, start)
	return sub
}

func (p *Pipeline) runCadence(merged <-chan ChartData, sub *PipelineSubscription, anchor float64, start time.Time) {
	ticker := time.NewTicker(p.config.WindowingTime)
	defer ticker.Stop()

	var group []ChartData
	for {
		select {
		case <-sub.done:
			return
		case d := <-merged:
			group = append(group, d)
		case <-ticker.C:
			if len(group) == 0 {
				continue
			}
			p.processCadenceGroup(group, sub, anchor, start)
			group = nil
		}
	}
}

// processCadenceGroup handles one buffered group under the cadence
// policy. Data batches are appended (with the observer notified) and
// evicted against the current window; heartbeat batches advance every
// axis window to the anchored wall-clock time. Ranges are emitted once
// per group either way.
func (p *Pipeline) processCadenceGroup(group []ChartData, sub *PipelineSubscription, anchor float64, start time.Time) {
	updated := make(map[string]map[string]struct{})
	hasTick := false

	for _, batch := range group {
		if batch.IsEmpty() {
			hasTick = true
			continue
		}
		for _, name := range sortedSeriesNames(batch.NewPoints) {
			points := batch.NewPoints[name]
			if len(points) == 0 {
				continue
			}
			s := p.store.GetOrCreate(name)
			s.Append(points)
			atomic.AddInt64(&p.pointsIn, int64(len(points)))
			if p.config.OnSeriesUpdate != nil {
				p.config.OnSeriesUpdate(name, points)
			}
			axisID := p.xAxisIDFor(name)
			set := updated[axisID]
			if set == nil {
				set = make(map[string]struct{})
				updated[axisID] = set
			}
			set[name] = struct{}{}
		}
	}

	selfStop := false
	if hasTick {
		now := anchor + float64(time.Since(start))/float64(time.Millisecond)
		for _, axisID := range p.axes.AxisIDs() {
			axis := p.axes.AxisFor(axisID)
			if axis == nil || axis.Kind != AxisNumeric {
				continue
			}
			r := axis.Range
			width := r.End - r.Start
			next := r.Update(math.Max(0, now-width), math.Max(now, width))
			p.applyRange(axisID, next)
		}
		if p.config.MaxTime > 0 && now >= p.config.MaxTime {
			selfStop = true
		}
	}

	dropAfter := p.dropAfterMillis()
	for axisID, set := range updated {
		axis := p.axes.AxisFor(axisID)
		if axis == nil {
			continue
		}
		cutoff := axis.Range.End - dropAfter
		for name := range set {
			if s, ok := p.store.Get(name); ok {
				n := s.EvictBefore(cutoff)
				atomic.AddInt64(&p.pointsEvicted, int64(n))
			}
		}
	}

	if p.config.OnRender != nil {
		p.config.OnRender(p.snapshotRanges())
	}
	atomic.AddInt64(&p.groupsProcessed, 1)

	if selfStop {
		sub.Unsubscribe()
	}
}

// snapshotRanges copies the current window of every registered axis.
func (p *Pipeline) snapshotRanges() map[string]ContinuousAxisRange {
	ranges := make(map[string]ContinuousAxisRange, p.axes.Len())
	for _, id := range p.axes.AxisIDs() {
		if a := p.axes.AxisFor(id); a != nil {
			ranges[id] = a.Range
		}
	}
	return ranges
}

// applyRange installs a new window on an axis and fires the current-time
// callback.
func (p *Pipeline) applyRange(axisID string, r ContinuousAxisRange) {
	if a := p.axes.AxisFor(axisID); a != nil {
		a.SetRange(r)
	}
	atomic.AddInt64(&p.windowSlides, 1)
	if p.config.OnCurrentTime != nil {
		p.config.OnCurrentTime(axisID, r.End)
	}
}

// sortedSeriesNames returns the map's keys in sorted order so that series
// within a batch are processed deterministically.
func sortedSeriesNames(m map[string][]Datum) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedAxisIDs(m map[string]float64) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
