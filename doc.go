// Package streamchart is a streaming data-windowing and axis-scaling
// engine for live, high-rate time-series charts (spike and raster
// displays). It ingests an unbounded stream of per-series data batches,
// coalesces them on a cadence, keeps a bounded sliding time window per
// axis, evicts stale points, and exposes the scale/translate transforms
// (including a non-linear bar-magnifier lens) that map data coordinates
// to plot coordinates. Rendering itself is the caller's business: the
// engine hands updated axis ranges to a render callback and leaves the
// drawing to it.
//
// # Basic Usage
//
// Declare axes and a pipeline, then feed it a batch stream:
//
//	axes := streamchart.NewAxisRegistry().
//	    WithAxis("x", streamchart.NewAxis("x", 0, 10_000))
//
//	cfg := streamchart.DefaultPipelineConfig()
//	cfg.OnRender = func(ranges map[string]streamchart.ContinuousAxisRange) {
//	    // redraw with the new window per axis
//	}
//
//	pipeline := streamchart.NewPipeline(streamchart.NewSeriesStore(), axes, cfg)
//	sub := pipeline.SubscriptionFor(batches)
//	defer sub.Unsubscribe()
//
// Producers can fan batches out to any number of charts through a Hub:
//
//	hub := streamchart.NewHub(streamchart.DefaultHubConfig())
//	chartSub, _ := hub.Subscribe()
//	pipeline.SubscriptionFor(chartSub.C())
//	hub.PublishPoints(map[string][]streamchart.Datum{
//	    "neuron-1": {{Time: 100, Value: 0.5}},
//	})
//
// # Update Policies
//
// SubscriptionFor is event-driven: axis windows advance when the data's
// own max time passes the window end. SubscriptionWithCadenceFor merges
// the stream with a periodic heartbeat so the window keeps sliding at
// wall-clock cadence through data gaps; there the cadence alone moves
// the window and data is only appended and evicted within it.
//
// # Zoom and Lens
//
// ContinuousAxisRange is a value type whose Scale and Translate derive a
// new range from the current one while remembering the original bounds,
// so repeated zooms compose without drift. BarMagnifier is a
// one-dimensional fisheye transform for cursor-centered magnification
// during rendering.
package streamchart
