package network

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

const (
	bnEpsilon = 1e-5
	poolSize  = 4

	// tileBudget caps the im2col scratch buffer, in floats.
	tileBudget = 1 << 20
)

// convBlock is conv3x3(pad 1) → batch norm → ReLU, optionally followed by a
// 4×4 max-pool.
type convBlock struct {
	in, out int
	pool    bool

	weight []float32 // out × in×3×3
	bias   []float32
	gamma  []float32
	beta   []float32
	mean   []float32
	vari   []float32

	// batch norm folded into the convolution for inference
	foldedW []float32
	foldedB []float32
}

func newConvBlock(in, out int, pool bool) *convBlock {
	return &convBlock{
		in:     in,
		out:    out,
		pool:   pool,
		weight: make([]float32, out*in*9),
		bias:   make([]float32, out),
		gamma:  make([]float32, out),
		beta:   make([]float32, out),
		mean:   make([]float32, out),
		vari:   make([]float32, out),
	}
}

func (b *convBlock) params(prefix string) []param {
	return []param{
		{prefix + ".0.weight", []int{b.out, b.in, 3, 3}, &b.weight},
		{prefix + ".0.bias", []int{b.out}, &b.bias},
		{prefix + ".1.weight", []int{b.out}, &b.gamma},
		{prefix + ".1.bias", []int{b.out}, &b.beta},
		{prefix + ".1.running_mean", []int{b.out}, &b.mean},
		{prefix + ".1.running_var", []int{b.out}, &b.vari},
	}
}

func (b *convBlock) fold() {
	k := b.in * 9
	b.foldedW = make([]float32, len(b.weight))
	b.foldedB = make([]float32, b.out)
	for o := 0; o < b.out; o++ {
		scale := b.gamma[o] / float32(math.Sqrt(float64(b.vari[o])+bnEpsilon))
		for i := 0; i < k; i++ {
			b.foldedW[o*k+i] = b.weight[o*k+i] * scale
		}
		b.foldedB[o] = (b.bias[o]-b.mean[o])*scale + b.beta[o]
	}
}

// forward runs the block on one C×H×W sample and returns the output with its
// spatial size.
func (b *convBlock) forward(x []float32, h, w int) ([]float32, int, int) {
	out := conv3x3(x, b.in, h, w, b.foldedW, b.foldedB, b.out)
	for i, v := range out {
		if v < 0 {
			out[i] = 0
		}
	}
	if !b.pool {
		return out, h, w
	}
	return maxPool(out, b.out, h, w, poolSize)
}

// conv3x3 computes a stride-1, zero-padded 3×3 convolution as an im2col GEMM,
// tiled over output rows.
func conv3x3(x []float32, in, h, w int, weight, bias []float32, out int) []float32 {
	hw := h * w
	k := in * 9
	y := make([]float32, out*hw)

	rowsPerTile := tileBudget / (k * w)
	if rowsPerTile < 1 {
		rowsPerTile = 1
	}
	if rowsPerTile > h {
		rowsPerTile = h
	}
	cols := make([]float32, k*rowsPerTile*w)

	for y0 := 0; y0 < h; y0 += rowsPerTile {
		rows := rowsPerTile
		if y0+rows > h {
			rows = h - y0
		}
		n := rows * w
		im2col(x, in, h, w, y0, rows, cols[:k*n])
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas32.General{Rows: out, Cols: k, Stride: k, Data: weight},
			blas32.General{Rows: k, Cols: n, Stride: n, Data: cols[:k*n]},
			0,
			blas32.General{Rows: out, Cols: n, Stride: hw, Data: y[y0*w:]},
		)
	}

	for o := 0; o < out; o++ {
		plane := y[o*hw : (o+1)*hw]
		for i := range plane {
			plane[i] += bias[o]
		}
	}
	return y
}

// im2col fills cols (k × rows·w, row-major) with the 3×3 neighbourhoods of
// output rows [y0, y0+rows).
func im2col(x []float32, in, h, w, y0, rows int, cols []float32) {
	n := rows * w
	for c := 0; c < in; c++ {
		plane := x[c*h*w : (c+1)*h*w]
		for ky := 0; ky < 3; ky++ {
			for kx := 0; kx < 3; kx++ {
				row := cols[(c*9+ky*3+kx)*n : (c*9+ky*3+kx+1)*n]
				for r := 0; r < rows; r++ {
					sy := y0 + r + ky - 1
					dst := row[r*w : (r+1)*w]
					if sy < 0 || sy >= h {
						clear(dst)
						continue
					}
					src := plane[sy*w : (sy+1)*w]
					for xx := 0; xx < w; xx++ {
						sx := xx + kx - 1
						if sx < 0 || sx >= w {
							dst[xx] = 0
						} else {
							dst[xx] = src[sx]
						}
					}
				}
			}
		}
	}
}

// maxPool applies a k×k, stride-k max-pool, dropping any remainder rows and
// columns.
func maxPool(x []float32, c, h, w, k int) ([]float32, int, int) {
	oh, ow := h/k, w/k
	out := make([]float32, c*oh*ow)
	for ch := 0; ch < c; ch++ {
		plane := x[ch*h*w : (ch+1)*h*w]
		dst := out[ch*oh*ow : (ch+1)*oh*ow]
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				m := float32(math.Inf(-1))
				for dy := 0; dy < k; dy++ {
					row := plane[(oy*k+dy)*w+ox*k : (oy*k+dy)*w+ox*k+k]
					for _, v := range row {
						if v > m {
							m = v
						}
					}
				}
				dst[oy*ow+ox] = m
			}
		}
	}
	return out, oh, ow
}

// linear computes weight·x + bias for a rows×cols weight matrix.
func linear(x, weight, bias []float32, rows, cols int) []float32 {
	y := make([]float32, rows)
	copy(y, bias)
	blas32.Gemv(blas.NoTrans, 1,
		blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: weight},
		blas32.Vector{N: cols, Inc: 1, Data: x},
		1,
		blas32.Vector{N: rows, Inc: 1, Data: y},
	)
	return y
}
