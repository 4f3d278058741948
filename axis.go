package streamchart

// AxisKind describes the domain of an axis.
type AxisKind int

const (
	// AxisNumeric is a continuous numeric axis (time or value).
	AxisNumeric AxisKind = iota
	// AxisCategory is a discrete axis of named bands (raster rows).
	AxisCategory
)

func (k AxisKind) String() string {
	switch k {
	case AxisNumeric:
		return "numeric"
	case AxisCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Scale maps a data coordinate to a plot coordinate.
type Scale interface {
	Apply(v float64) float64
}

// LinearScale maps a continuous domain onto a pixel range. The pipeline
// mutates the domain in place on every tick as the axis window slides;
// the pixel range belongs to the renderer and changes only on resize.
type LinearScale struct {
	DomainStart float64
	DomainEnd   float64
	RangeStart  float64
	RangeEnd    float64
}

// NewLinearScale creates a scale mapping [domainStart, domainEnd] onto
// [rangeStart, rangeEnd].
func NewLinearScale(domainStart, domainEnd, rangeStart, rangeEnd float64) *LinearScale {
	return &LinearScale{
		DomainStart: domainStart,
		DomainEnd:   domainEnd,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
	}
}

// SetDomain replaces the domain extent.
func (s *LinearScale) SetDomain(start, end float64) {
	s.DomainStart = start
	s.DomainEnd = end
}

// Apply maps a domain value to a pixel coordinate.
func (s *LinearScale) Apply(v float64) float64 {
	span := s.DomainEnd - s.DomainStart
	if span == 0 {
		return s.RangeStart
	}
	return s.RangeStart + (v-s.DomainStart)/span*(s.RangeEnd-s.RangeStart)
}

// Invert maps a pixel coordinate back to a domain value.
func (s *LinearScale) Invert(p float64) float64 {
	span := s.RangeEnd - s.RangeStart
	if span == 0 {
		return s.DomainStart
	}
	return s.DomainStart + (p-s.RangeStart)/span*(s.DomainEnd-s.DomainStart)
}

// BandScale maps category names onto evenly spaced band centers within a
// pixel range, for raster-style y axes.
type BandScale struct {
	Categories []string
	RangeStart float64
	RangeEnd   float64

	index map[string]int
}

// NewBandScale creates a band scale over the given categories.
func NewBandScale(categories []string, rangeStart, rangeEnd float64) *BandScale {
	idx := make(map[string]int, len(categories))
	for i, c := range categories {
		idx[c] = i
	}
	return &BandScale{
		Categories: categories,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		index:      idx,
	}
}

// Bandwidth returns the pixel height of one band.
func (s *BandScale) Bandwidth() float64 {
	if len(s.Categories) == 0 {
		return 0
	}
	return (s.RangeEnd - s.RangeStart) / float64(len(s.Categories))
}

// Center returns the pixel center of the named category's band, or
// ok=false for an unknown category.
func (s *BandScale) Center(category string) (float64, bool) {
	i, ok := s.index[category]
	if !ok {
		return 0, false
	}
	return s.RangeStart + (float64(i)+0.5)*s.Bandwidth(), true
}

// Apply maps a category index to its band center, so a BandScale can
// stand in wherever a Scale is expected.
func (s *BandScale) Apply(v float64) float64 {
	return s.RangeStart + (v+0.5)*s.Bandwidth()
}

// Axis is a registry entry: an identifier, a kind, the scale used to map
// data coordinates to plot coordinates, and the current window extent.
// An axis is created once and then updated in place on every pipeline
// tick; all writers are serialized by the single-consumer stream
// discipline of the pipeline.
type Axis struct {
	ID    string
	Kind  AxisKind
	Scale Scale
	Range ContinuousAxisRange
}

// NewAxis creates a numeric axis over the given window, with a linear
// scale whose domain tracks the window.
func NewAxis(id string, windowStart, windowEnd float64) *Axis {
	return &Axis{
		ID:    id,
		Kind:  AxisNumeric,
		Scale: NewLinearScale(windowStart, windowEnd, 0, 1),
		Range: NewContinuousAxisRange(windowStart, windowEnd),
	}
}

// NewCategoryAxis creates a category axis over the given bands.
func NewCategoryAxis(id string, categories []string) *Axis {
	return &Axis{
		ID:    id,
		Kind:  AxisCategory,
		Scale: NewBandScale(categories, 0, 1),
		Range: NewContinuousAxisRange(0, float64(len(categories))),
	}
}

// SetRange replaces the axis window and keeps a linear scale's domain in
// step with it.
func (a *Axis) SetRange(r ContinuousAxisRange) {
	a.Range = r
	if ls, ok := a.Scale.(*LinearScale); ok {
		ls.SetDomain(r.Start, r.End)
	}
}

// AxisRegistry maps axis identifiers to axes, remembering insertion
// order. WithAxis is pure: it returns an updated copy and never mutates
// the receiver, so callers can hold on to earlier registry values.
type AxisRegistry struct {
	ids  []string
	axes map[string]*Axis
}

// NewAxisRegistry creates an empty registry.
func NewAxisRegistry() *AxisRegistry {
	return &AxisRegistry{axes: make(map[string]*Axis)}
}

// WithAxis returns a new registry containing every axis of the receiver
// plus the given one. Registering an existing id replaces that axis
// without changing its position.
func (r *AxisRegistry) WithAxis(id string, axis *Axis) *AxisRegistry {
	next := &AxisRegistry{
		ids:  make([]string, len(r.ids)),
		axes: make(map[string]*Axis, len(r.axes)+1),
	}
	copy(next.ids, r.ids)
	for k, v := range r.axes {
		next.axes[k] = v
	}
	if _, exists := next.axes[id]; !exists {
		next.ids = append(next.ids, id)
	}
	next.axes[id] = axis
	return next
}

// AxisFor returns the axis registered under id. When id is absent and at
// least one axis exists, the first-inserted axis is returned as the
// default, so unconfigured series fall back to it rather than failing.
// Returns nil only when the registry is empty.
func (r *AxisRegistry) AxisFor(id string) *Axis {
	if a, ok := r.axes[id]; ok {
		return a
	}
	if len(r.ids) == 0 {
		return nil
	}
	return r.axes[r.ids[0]]
}

// Has reports whether an axis is registered under id.
func (r *AxisRegistry) Has(id string) bool {
	_, ok := r.axes[id]
	return ok
}

// AxisIDs returns all registered ids in insertion order.
func (r *AxisRegistry) AxisIDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// DefaultAxisID returns the first-inserted id, or "" when empty.
func (r *AxisRegistry) DefaultAxisID() string {
	if len(r.ids) == 0 {
		return ""
	}
	return r.ids[0]
}

// Len returns the number of registered axes.
func (r *AxisRegistry) Len() int {
	return len(r.axes)
}
