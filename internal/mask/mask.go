// Package mask provides the binary object masks produced by segmentation
// and the interpolation primitives used to fill unmasked frame ranges.
package mask

// Mask is a 2D binary mask in row-major order.
type Mask struct {
	W, H int
	Pix  []bool
}

// New creates an all-false mask with the given dimensions.
func New(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]bool, w*h)}
}

// At reports whether the pixel at (x, y) belongs to the object.
// Out-of-bounds coordinates are false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x]
}

// Set marks the pixel at (x, y). Out-of-bounds coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Pix[y*m.W+x] = v
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	cp := New(m.W, m.H)
	copy(cp.Pix, m.Pix)
	return cp
}

// Equal reports whether two masks have identical dimensions and pixels.
func (m *Mask) Equal(o *Mask) bool {
	if m.W != o.W || m.H != o.H {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Area returns the number of set pixels.
func (m *Mask) Area() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// FitTo returns a mask resized to (w, h) by cropping or zero-padding.
// The overlap region is copied verbatim; it never fails on a mismatch.
// The receiver is returned unchanged when dimensions already match.
func (m *Mask) FitTo(w, h int) *Mask {
	if m.W == w && m.H == h {
		return m
	}
	fit := New(w, h)
	cw, ch := min(w, m.W), min(h, m.H)
	for y := 0; y < ch; y++ {
		copy(fit.Pix[y*w:y*w+cw], m.Pix[y*m.W:y*m.W+cw])
	}
	return fit
}

// Circle returns a mask with a filled circle, used as a synthetic object
// in tests and demos.
func Circle(w, h, cx, cy, r int) *Mask {
	m := New(w, h)
	rr := r * r
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= rr {
				m.Pix[y*w+x] = true
			}
		}
	}
	return m
}

// Interpolate linearly blends two reference masks of equal dimensions at
// the given weight and re-binarizes the result: a pixel is set when
// alpha*after + (1-alpha)*before exceeds 0.5. At alpha 0 the result equals
// before; at alpha 1 it equals after.
func Interpolate(before, after *Mask, alpha float64) *Mask {
	out := New(before.W, before.H)
	a := after.FitTo(before.W, before.H)
	for i := range out.Pix {
		var b, f float64
		if before.Pix[i] {
			b = 1
		}
		if a.Pix[i] {
			f = 1
		}
		out.Pix[i] = alpha*f+(1-alpha)*b > 0.5
	}
	return out
}
