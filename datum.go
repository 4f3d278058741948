package streamchart

// Datum is a single sample in a series: a timestamp in milliseconds and a
// numeric value. Within a series, times are expected to be non-decreasing;
// this is not enforced, but the eviction logic relies on it.
type Datum struct {
	// Time is the sample time in milliseconds.
	Time float64
	// Value is the numeric measurement.
	Value float64
}

// ChartData is the unit delivered by an inbound stream: the new points for
// each series, the latest time seen per series, and the latest time across
// the whole batch. Batches are immutable once delivered.
type ChartData struct {
	// MaxTime is the latest sample time across all series in this batch.
	MaxTime float64
	// MaxTimes maps each series name to the latest sample time the batch
	// carries for it.
	MaxTimes map[string]float64
	// NewPoints maps each series name to its newly arrived points, in time
	// order.
	NewPoints map[string][]Datum
}

// IsEmpty reports whether the batch carries no new points. Synthetic
// heartbeat batches emitted by the cadence timer are empty.
func (d ChartData) IsEmpty() bool {
	return len(d.NewPoints) == 0
}

// ChartDataFrom builds a batch from per-series points, deriving MaxTimes
// and MaxTime from the last point of each series.
func ChartDataFrom(newPoints map[string][]Datum) ChartData {
	d := ChartData{
		MaxTimes:  make(map[string]float64, len(newPoints)),
		NewPoints: newPoints,
	}
	for name, points := range newPoints {
		if len(points) == 0 {
			continue
		}
		last := points[len(points)-1].Time
		d.MaxTimes[name] = last
		if last > d.MaxTime {
			d.MaxTime = last
		}
	}
	return d
}
