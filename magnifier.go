package streamchart

import "math"

// BarMagnifier is a one-dimensional fisheye transform (the Sarkar-Brown
// lens restricted to a single axis). Within Radius of Center it expands
// coordinates near the center and compresses coordinates near the edge;
// outside the radius it is the identity. The transform is continuous and
// monotonic inside the lens, so neighboring samples never cross.
//
// k0 and k1 are derived from Radius and Power; mutate those fields only
// through Rescale, or the cached constants go stale.
type BarMagnifier struct {
	// Radius is the extent of the lens effect, in plot coordinates.
	Radius float64
	// Power is the magnification strength; 1 means no distortion.
	// Precondition: Power > 0.
	Power float64
	// Center is the lens focal coordinate, typically the pointer's x
	// position.
	Center float64

	k0 float64
	k1 float64
}

// NewBarMagnifier creates a lens with the given radius, power and focal
// center. Precondition: radius > 0 and power > 0; degenerate parameters
// produce a degenerate transform, not an error.
func NewBarMagnifier(radius, power, center float64) *BarMagnifier {
	m := &BarMagnifier{Radius: radius, Power: power, Center: center}
	m.Rescale()
	return m
}

// Rescale recomputes the cached lens constants. Call it after changing
// Radius or Power.
func (m *BarMagnifier) Rescale() {
	ep := math.Exp(m.Power)
	m.k0 = ep / (ep - 1) * m.Radius
	m.k1 = m.Power / m.Radius
}

// Magnify transforms a single coordinate.
func (m *BarMagnifier) Magnify(x float64) float64 {
	dx := x - m.Center
	dd := math.Abs(dx)
	if dd == 0 || dd >= m.Radius {
		return x
	}
	mag := m.k0 * (1 - math.Exp(-dd*m.k1)) / dd
	// Blend toward identity so magnification degrades smoothly instead of
	// stepping at the lens boundary.
	mag = 0.75*mag + 0.25
	return m.Center + dx*mag
}

// Magnifier returns a pure transform function for the given lens
// parameters, for callers that never re-parameterize.
func Magnifier(radius, power, center float64) func(float64) float64 {
	m := NewBarMagnifier(radius, power, center)
	return m.Magnify
}
