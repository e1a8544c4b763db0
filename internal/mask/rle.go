package mask

import "fmt"

// RLE encodes the mask as alternating run lengths in row-major order,
// starting with a run of unset pixels (possibly zero-length). This is the
// wire format the oracle service uses for masks.
func (m *Mask) RLE() []int {
	runs := []int{}
	cur := false
	n := 0
	for _, v := range m.Pix {
		if v == cur {
			n++
			continue
		}
		runs = append(runs, n)
		cur = v
		n = 1
	}
	runs = append(runs, n)
	return runs
}

// FromRLE decodes a run-length encoded mask. The runs must sum exactly to
// w*h pixels.
func FromRLE(w, h int, runs []int) (*Mask, error) {
	m := New(w, h)
	idx := 0
	val := false
	for _, run := range runs {
		if run < 0 {
			return nil, fmt.Errorf("negative run length %d", run)
		}
		if idx+run > len(m.Pix) {
			return nil, fmt.Errorf("rle overflows %dx%d mask", w, h)
		}
		for i := 0; i < run; i++ {
			m.Pix[idx] = val
			idx++
		}
		val = !val
	}
	if idx != len(m.Pix) {
		return nil, fmt.Errorf("rle covers %d of %d pixels", idx, len(m.Pix))
	}
	return m, nil
}
