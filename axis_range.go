package streamchart

// ContinuousAxisRange is the domain extent of a continuous axis. It is a
// value type: Scale, Translate and Update return a new range derived from
// the current one, and callers replace the value they hold. The bounds
// captured at construction are remembered for the life of the value so
// that zooming composes against the original width rather than the
// current one.
type ContinuousAxisRange struct {
	// Start and End are the current bounds, Start <= End.
	Start float64
	End   float64

	origStart float64
	origEnd   float64
}

// NewContinuousAxisRange creates a range over [start, end], normalizing
// the arguments so that Start is the minimum. The normalized bounds are
// captured as the range's original extent.
func NewContinuousAxisRange(start, end float64) ContinuousAxisRange {
	if start > end {
		start, end = end, start
	}
	return ContinuousAxisRange{
		Start:     start,
		End:       end,
		origStart: start,
		origEnd:   end,
	}
}

// Original returns the bounds captured at construction.
func (r ContinuousAxisRange) Original() (start, end float64) {
	return r.origStart, r.origEnd
}

// MatchesOriginal reports whether (start, end) equals the original
// bounds. Used to detect the unzoomed state.
func (r ContinuousAxisRange) MatchesOriginal(start, end float64) bool {
	return r.origStart == start && r.origEnd == end
}

// ScaleFactor is the ratio of the current width to the original width.
// It is 1 at construction.
func (r ContinuousAxisRange) ScaleFactor() float64 {
	return (r.End - r.Start) / (r.origEnd - r.origStart)
}

// Scale rescales the current interval around pivot so that the new
// interval's ratio to the original width equals factor. The pivot point
// stays fixed, which makes repeated zoom operations compose without
// drift. Precondition: factor > 0 (not guarded).
func (r ContinuousAxisRange) Scale(factor, pivot float64) ContinuousAxisRange {
	oldScale := r.ScaleFactor()
	dts := pivot - r.Start
	dte := r.End - pivot
	r.Start = pivot - dts*factor/oldScale
	r.End = pivot + dte*factor/oldScale
	return r
}

// Translate shifts both bounds by x, preserving width and the original
// extent.
func (r ContinuousAxisRange) Translate(x float64) ContinuousAxisRange {
	r.Start += x
	r.End += x
	return r
}

// Update replaces the current bounds outright, keeping the original
// extent. The pipeline uses it when the window follows live data.
func (r ContinuousAxisRange) Update(start, end float64) ContinuousAxisRange {
	r.Start = start
	r.End = end
	return r
}
