package document

// The visual signature on a rendered prescription is derived entirely from
// the signer's full name: a numeric hash of the name seeds a linear
// congruential generator whose stream parameterizes the curve control
// points. The same name therefore always yields the same geometry across
// regenerations, which is a design requirement (the signature must look
// identical on every copy of the document), not an accident.

// SignatureSeed hashes a full name into the LCG seed.
func SignatureSeed(fullName string) uint64 {
	var h uint64
	for _, r := range fullName {
		h = h*31 + uint64(r)
	}
	if h == 0 {
		h = 1
	}
	return h
}

// LCG is a reproducible pseudo-random stream. No global RNG state is
// involved anywhere in signature generation.
type LCG struct {
	state uint64
}

func NewLCG(seed uint64) *LCG {
	return &LCG{state: seed}
}

// Next returns the next float in [0, 1).
func (g *LCG) Next() float64 {
	// Numerical Recipes constants.
	g.state = g.state*6364136223846793005 + 1442695040888963407
	return float64(g.state>>11) / float64(1<<53)
}

// Curve is one cubic bezier segment of the signature stroke.
type Curve struct {
	X0, Y0   float64
	CX1, CY1 float64
	CX2, CY2 float64
	X1, Y1   float64
}

// SignatureCurves generates the signature stroke for a signer. The stroke
// spans a width*height box anchored at the origin, with a segment count
// that scales with the name length so longer names get busier signatures.
func SignatureCurves(fullName string, width, height float64) []Curve {
	g := NewLCG(SignatureSeed(fullName))

	segments := 3 + len(fullName)%4
	step := width / float64(segments)

	curves := make([]Curve, 0, segments)
	x := 0.0
	y := height * (0.3 + 0.4*g.Next())

	for i := 0; i < segments; i++ {
		nx := x + step
		ny := height * (0.2 + 0.6*g.Next())
		c := Curve{
			X0:  x,
			Y0:  y,
			CX1: x + step*(0.2+0.3*g.Next()),
			CY1: height * g.Next(),
			CX2: x + step*(0.5+0.4*g.Next()),
			CY2: height * g.Next(),
			X1:  nx,
			Y1:  ny,
		}
		curves = append(curves, c)
		x, y = nx, ny
	}

	return curves
}
