package network

import "fmt"

// Tensor is a dense NCHW float32 tensor.
type Tensor struct {
	N, C, H, W int
	Data       []float32
}

// NewTensor allocates a zeroed tensor.
func NewTensor(n, c, h, w int) *Tensor {
	return &Tensor{N: n, C: c, H: h, W: w, Data: make([]float32, n*c*h*w)}
}

// FromData wraps data as an n×c×h×w tensor.
func FromData(n, c, h, w int, data []float32) (*Tensor, error) {
	if len(data) != n*c*h*w {
		return nil, fmt.Errorf("have %d values for shape [%d %d %d %d]", len(data), n, c, h, w)
	}
	return &Tensor{N: n, C: c, H: h, W: w, Data: data}, nil
}

// Shape returns [N C H W].
func (t *Tensor) Shape() []int { return []int{t.N, t.C, t.H, t.W} }

// Sample returns the C×H×W slice of batch item i.
func (t *Tensor) Sample(i int) []float32 {
	size := t.C * t.H * t.W
	return t.Data[i*size : (i+1)*size]
}
