package detest

import "math"

// Tensor is a dense (A, B, G) array stored row-major. Multi-test results use it
// for (group, group, gene) and (1, group, gene) matrices.
type Tensor struct {
	A, B, G int
	Data    []float64
}

// NewTensor allocates a tensor filled with fill.
func NewTensor(a, b, g int, fill float64) *Tensor {
	t := &Tensor{A: a, B: b, G: g, Data: make([]float64, a*b*g)}
	if fill != 0 {
		for i := range t.Data {
			t.Data[i] = fill
		}
	}
	return t
}

// NewNaNTensor allocates a tensor filled with NaN.
func NewNaNTensor(a, b, g int) *Tensor {
	return NewTensor(a, b, g, math.NaN())
}

func (t *Tensor) offset(a, b int) int { return (a*t.B + b) * t.G }

func (t *Tensor) At(a, b, g int) float64 { return t.Data[t.offset(a, b)+g] }

func (t *Tensor) Set(a, b, g int, v float64) { t.Data[t.offset(a, b)+g] = v }

// Row returns the gene vector at (a, b). The slice aliases the tensor.
func (t *Tensor) Row(a, b int) []float64 {
	o := t.offset(a, b)
	return t.Data[o : o+t.G : o+t.G]
}

// SetRow copies v into the gene vector at (a, b).
func (t *Tensor) SetRow(a, b int, v []float64) {
	copy(t.Row(a, b), v)
}

// RowCopy returns a copy of the gene vector at (a, b).
func (t *Tensor) RowCopy(a, b int) []float64 {
	out := make([]float64, t.G)
	copy(out, t.Row(a, b))
	return out
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{A: t.A, B: t.B, G: t.G, Data: make([]float64, len(t.Data))}
	copy(c.Data, t.Data)
	return c
}

// Scaled returns a copy with every entry multiplied by f.
func (t *Tensor) Scaled(f float64) *Tensor {
	c := t.Clone()
	for i := range c.Data {
		c.Data[i] *= f
	}
	return c
}

// SameShape reports whether u has the shape of t.
func (t *Tensor) SameShape(u *Tensor) bool {
	return u != nil && t.A == u.A && t.B == u.B && t.G == u.G
}
