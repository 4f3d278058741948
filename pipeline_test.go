package streamchart

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testPipeline(windowEnd float64, cfg PipelineConfig) (*Pipeline, *SeriesStore) {
	store := NewSeriesStore()
	axes := NewAxisRegistry().WithAxis("x", NewAxis("x", 0, windowEnd))
	return NewPipeline(store, axes, cfg), store
}

func TestPipeline_AppendAndEvict(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	cfg.DropDataAfter = 50 * time.Millisecond

	p, store := testPipeline(100, cfg)
	in := make(chan ChartData, 4)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	// First point: nothing to evict, it is the only point.
	in <- ChartData{
		MaxTime:   100,
		MaxTimes:  map[string]float64{"n1": 100},
		NewPoints: map[string][]Datum{"n1": {{Time: 100, Value: 0.5}}},
	}
	waitFor(t, 2*time.Second, "first point to land", func() bool {
		s, ok := store.Get("n1")
		return ok && s.Len() == 1
	})
	s, _ := store.Get("n1")
	if diff := cmp.Diff([]Datum{{Time: 100, Value: 0.5}}, s.Data()); diff != "" {
		t.Errorf("after first batch (-want +got):\n%s", diff)
	}

	// Second point at 200: the first is now 100ms old, past the 50ms
	// horizon, and must be evicted.
	in <- ChartData{
		MaxTime:   200,
		MaxTimes:  map[string]float64{"n1": 200},
		NewPoints: map[string][]Datum{"n1": {{Time: 200, Value: 0.3}}},
	}
	waitFor(t, 2*time.Second, "eviction of the first point", func() bool {
		s, ok := store.Get("n1")
		if !ok || s.Len() != 1 {
			return false
		}
		last, _ := s.Last()
		return last.Time == 200
	})
	if diff := cmp.Diff([]Datum{{Time: 200, Value: 0.3}}, s.Data()); diff != "" {
		t.Errorf("after second batch (-want +got):\n%s", diff)
	}
}

func TestPipeline_WindowSlidePreservesWidth(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond

	slides := make(chan float64, 8)
	cfg.OnCurrentTime = func(axisID string, end float64) {
		if axisID == "x" {
			slides <- end
		}
	}

	var mu sync.Mutex
	var lastRanges map[string]ContinuousAxisRange
	cfg.OnRender = func(ranges map[string]ContinuousAxisRange) {
		mu.Lock()
		lastRanges = ranges
		mu.Unlock()
	}

	p, _ := testPipeline(100, cfg)
	in := make(chan ChartData, 4)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	in <- ChartData{
		MaxTime:   150,
		MaxTimes:  map[string]float64{"n1": 150},
		NewPoints: map[string][]Datum{"n1": {{Time: 150, Value: 1}}},
	}

	select {
	case end := <-slides:
		if end != 150 {
			t.Errorf("expected window end 150, got %v", end)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("window never slid")
	}

	waitFor(t, 2*time.Second, "render with slid window", func() bool {
		mu.Lock()
		defer mu.Unlock()
		r, ok := lastRanges["x"]
		return ok && r.Start == 50 && r.End == 150
	})

	// The registry's axis was updated in place, scale domain included.
	axis := p.Axes().AxisFor("x")
	if axis.Range.Start != 50 || axis.Range.End != 150 {
		t.Errorf("axis range not updated: [%v,%v]", axis.Range.Start, axis.Range.End)
	}
	ls := axis.Scale.(*LinearScale)
	if ls.DomainStart != 50 || ls.DomainEnd != 150 {
		t.Errorf("scale domain not updated: [%v,%v]", ls.DomainStart, ls.DomainEnd)
	}
}

func TestPipeline_NoSlideWithinWindow(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond

	slid := make(chan struct{}, 1)
	cfg.OnCurrentTime = func(string, float64) {
		select {
		case slid <- struct{}{}:
		default:
		}
	}

	rendered := make(chan struct{}, 1)
	cfg.OnRender = func(map[string]ContinuousAxisRange) {
		select {
		case rendered <- struct{}{}:
		default:
		}
	}

	p, _ := testPipeline(100, cfg)
	in := make(chan ChartData, 4)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	// Max time 80 is inside the [0,100] window: no slide, but a render.
	in <- ChartData{
		MaxTime:   80,
		MaxTimes:  map[string]float64{"n1": 80},
		NewPoints: map[string][]Datum{"n1": {{Time: 80, Value: 1}}},
	}

	select {
	case <-rendered:
	case <-time.After(2 * time.Second):
		t.Fatal("render callback never fired")
	}
	select {
	case <-slid:
		t.Error("window slid although the data stayed inside it")
	default:
	}
}

func TestPipeline_RenderOncePerGroup(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 100 * time.Millisecond

	renders := make(chan map[string]ContinuousAxisRange, 8)
	cfg.OnRender = func(ranges map[string]ContinuousAxisRange) {
		renders <- ranges
	}

	p, store := testPipeline(1000, cfg)
	in := make(chan ChartData, 8)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	// Three batches inside one windowing interval coalesce into a single
	// processing pass and a single render.
	for i := 1; i <= 3; i++ {
		ts := float64(i * 100)
		in <- ChartData{
			MaxTime:   ts,
			MaxTimes:  map[string]float64{"n1": ts},
			NewPoints: map[string][]Datum{"n1": {{Time: ts, Value: 1}}},
		}
	}

	select {
	case <-renders:
	case <-time.After(2 * time.Second):
		t.Fatal("no render for the buffered group")
	}
	select {
	case <-renders:
		t.Error("expected exactly one render per group")
	case <-time.After(150 * time.Millisecond):
	}

	s, _ := store.Get("n1")
	if s.Len() != 3 {
		t.Errorf("expected all 3 points appended, got %d", s.Len())
	}
}

func TestPipeline_ObserverSeesPointsBeforeEviction(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	cfg.DropDataAfter = 10 * time.Millisecond

	type update struct {
		name   string
		points []Datum
	}
	updates := make(chan update, 8)
	cfg.OnSeriesUpdate = func(name string, points []Datum) {
		updates <- update{name: name, points: points}
	}

	p, _ := testPipeline(100, cfg)
	in := make(chan ChartData, 4)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	in <- ChartData{
		MaxTime:   500,
		MaxTimes:  map[string]float64{"n1": 500},
		NewPoints: map[string][]Datum{"n1": {{Time: 400, Value: 1}, {Time: 500, Value: 2}}},
	}

	select {
	case u := <-updates:
		if u.name != "n1" {
			t.Errorf("expected update for n1, got %q", u.name)
		}
		// The observer sees every new point even though eviction will
		// drop the older one in the same pass.
		want := []Datum{{Time: 400, Value: 1}, {Time: 500, Value: 2}}
		if diff := cmp.Diff(want, u.points); diff != "" {
			t.Errorf("observer points mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("observer callback never fired")
	}
}

func TestPipeline_LazySeriesAndAxisFallback(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	// The assignment names an axis that is never registered; the series
	// must fall back to the default axis instead of failing.
	cfg.AxisAssignments = map[string]AxisAssignment{
		"ghost": {XAxisID: "no-such-axis"},
	}

	slides := make(chan string, 4)
	cfg.OnCurrentTime = func(axisID string, _ float64) {
		slides <- axisID
	}

	p, store := testPipeline(100, cfg)
	in := make(chan ChartData, 4)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	in <- ChartData{
		MaxTime:   150,
		MaxTimes:  map[string]float64{"ghost": 150},
		NewPoints: map[string][]Datum{"ghost": {{Time: 150, Value: 1}}},
	}

	waitFor(t, 2*time.Second, "lazy series creation", func() bool {
		_, ok := store.Get("ghost")
		return ok
	})

	select {
	case axisID := <-slides:
		if axisID != "x" {
			t.Errorf("expected fallback to default axis x, got %q", axisID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("window never slid on the fallback axis")
	}
}

func TestPipeline_UnsubscribeIsIdempotent(t *testing.T) {
	cfg := DefaultPipelineConfig()
	p, _ := testPipeline(100, cfg)
	in := make(chan ChartData)

	sub := p.SubscriptionFor(in)
	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic

	select {
	case <-sub.Done():
	default:
		t.Error("Done should be closed after unsubscribe")
	}
}

func TestPipeline_ClosedStreamEndsSubscription(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	p, _ := testPipeline(100, cfg)

	in := make(chan ChartData)
	sub := p.SubscriptionFor(in)
	close(in)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription should end when the stream closes")
	}
}

func TestPipeline_SelfUnsubscribeAtMaxTime(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	cfg.MaxTime = 120

	p, _ := testPipeline(100, cfg)
	in := make(chan ChartData, 4)
	sub := p.SubscriptionFor(in)

	// Sliding the window to 150 crosses the 120 bound: the pipeline
	// cancels itself.
	in <- ChartData{
		MaxTime:   150,
		MaxTimes:  map[string]float64{"n1": 150},
		NewPoints: map[string][]Datum{"n1": {{Time: 150, Value: 1}}},
	}

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline should unsubscribe itself past MaxTime")
	}

	// External unsubscribe after self-cancel stays a no-op.
	sub.Unsubscribe()
}

func TestPipeline_CadenceHeartbeatAdvancesWindow(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	cfg.CadencePeriod = 5 * time.Millisecond

	renders := make(chan map[string]ContinuousAxisRange, 64)
	cfg.OnRender = func(ranges map[string]ContinuousAxisRange) {
		select {
		case renders <- ranges:
		default:
		}
	}

	// Narrow 30ms window so wall-clock advancement is visible quickly.
	p, _ := testPipeline(30, cfg)
	in := make(chan ChartData) // never delivers: pure data gap
	sub := p.SubscriptionWithCadenceFor(in)
	defer sub.Unsubscribe()

	waitFor(t, 2*time.Second, "heartbeat to advance the window", func() bool {
		select {
		case ranges := <-renders:
			r, ok := ranges["x"]
			return ok && r.End > 30 && r.Start > 0
		default:
			return false
		}
	})
}

func TestPipeline_CadenceAppendsWithoutDataDrivenSlide(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	// Cadence far in the future: no heartbeat fires during the test, so
	// any window movement would have to come from data -- and must not.
	cfg.CadencePeriod = time.Hour

	slid := make(chan struct{}, 1)
	cfg.OnCurrentTime = func(string, float64) {
		select {
		case slid <- struct{}{}:
		default:
		}
	}

	p, store := testPipeline(100, cfg)
	in := make(chan ChartData, 4)
	sub := p.SubscriptionWithCadenceFor(in)
	defer sub.Unsubscribe()

	in <- ChartData{
		MaxTime:   500,
		MaxTimes:  map[string]float64{"n1": 500},
		NewPoints: map[string][]Datum{"n1": {{Time: 500, Value: 1}}},
	}

	waitFor(t, 2*time.Second, "point to land under cadence policy", func() bool {
		s, ok := store.Get("n1")
		return ok && s.Len() == 1
	})

	select {
	case <-slid:
		t.Error("cadence policy must not advance the window from data")
	default:
	}

	axis := p.Axes().AxisFor("x")
	if axis.Range.Start != 0 || axis.Range.End != 100 {
		t.Errorf("window moved without a heartbeat: [%v,%v]", axis.Range.Start, axis.Range.End)
	}
}

func TestPipeline_EvictionInvariant(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	cfg.DropDataAfter = 100 * time.Millisecond

	p, store := testPipeline(1000, cfg)
	in := make(chan ChartData, 16)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	times := []float64{50, 120, 190, 260, 410, 555}
	var lastMax float64
	for _, ts := range times {
		in <- ChartData{
			MaxTime:   ts,
			MaxTimes:  map[string]float64{"n1": ts, "n2": ts - 10},
			NewPoints: map[string][]Datum{
				"n1": {{Time: ts, Value: 1}},
				"n2": {{Time: ts - 10, Value: 2}},
			},
		}
		lastMax = ts
		time.Sleep(15 * time.Millisecond)
	}

	waitFor(t, 2*time.Second, "all batches processed", func() bool {
		return p.Stats().BatchesIn == int64(len(times))
	})
	waitFor(t, 2*time.Second, "retention horizon enforced", func() bool {
		for _, name := range store.Names() {
			s, _ := store.Get(name)
			data := s.Data()
			if len(data) == 0 {
				continue
			}
			if lastMax-data[0].Time > 100 {
				return false
			}
		}
		return true
	})

	stats := p.Stats()
	if stats.PointsIn != int64(2*len(times)) {
		t.Errorf("expected %d points in, got %d", 2*len(times), stats.PointsIn)
	}
	if stats.PointsEvicted == 0 {
		t.Error("expected some points evicted")
	}
}

func TestPipeline_MultiAxisFanOut(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.WindowingTime = 5 * time.Millisecond
	cfg.AxisAssignments = map[string]AxisAssignment{
		"fast": {XAxisID: "x-fast"},
		"slow": {XAxisID: "x-slow"},
	}

	type slide struct {
		axisID string
		end    float64
	}
	slides := make(chan slide, 8)
	cfg.OnCurrentTime = func(axisID string, end float64) {
		slides <- slide{axisID, end}
	}

	store := NewSeriesStore()
	axes := NewAxisRegistry().
		WithAxis("x-fast", NewAxis("x-fast", 0, 100)).
		WithAxis("x-slow", NewAxis("x-slow", 0, 1000))
	p := NewPipeline(store, axes, cfg)

	in := make(chan ChartData, 4)
	sub := p.SubscriptionFor(in)
	defer sub.Unsubscribe()

	// 500 overtakes the fast axis window but stays inside the slow one.
	in <- ChartData{
		MaxTime: 500,
		MaxTimes: map[string]float64{
			"fast": 500,
			"slow": 500,
		},
		NewPoints: map[string][]Datum{
			"fast": {{Time: 500, Value: 1}},
			"slow": {{Time: 500, Value: 2}},
		},
	}

	select {
	case got := <-slides:
		if got.axisID != "x-fast" {
			t.Errorf("expected x-fast to slide, got %q", got.axisID)
		}
		if got.end != 500 {
			t.Errorf("expected window end 500, got %v", got.end)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fast axis never slid")
	}

	select {
	case got := <-slides:
		t.Errorf("unexpected extra slide on %q", got.axisID)
	case <-time.After(100 * time.Millisecond):
	}
}
