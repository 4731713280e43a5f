package network

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tinyConfig = Config{InChannels: 3, NumClasses: 5, Widths: [4]int{4, 8, 8, 8}}

func constantInput(h, w int, v float32) *Tensor {
	x := NewTensor(1, 3, h, w)
	for i := range x.Data {
		x.Data[i] = v
	}
	return x
}

func TestConv3x3Identity(t *testing.T) {
	// centre tap = 1 reproduces the input
	weight := make([]float32, 9)
	weight[4] = 1
	x := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	y := conv3x3(x, 1, 3, 3, weight, []float32{0.5}, 1)
	for i := range x {
		assert.Equal(t, x[i]+0.5, y[i])
	}
}

func TestConv3x3ZeroPadding(t *testing.T) {
	weight := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}
	x := []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	}
	y := conv3x3(x, 1, 3, 3, weight, []float32{0}, 1)
	assert.Equal(t, []float32{4, 6, 4, 6, 9, 6, 4, 6, 4}, y)
}

func TestMaxPool(t *testing.T) {
	x := make([]float32, 8*8)
	for i := range x {
		x[i] = float32(i)
	}
	y, h, w := maxPool(x, 1, 8, 8, 4)
	require.Equal(t, 2, h)
	require.Equal(t, 2, w)
	assert.Equal(t, []float32{27, 31, 59, 63}, y)
}

func TestLinear(t *testing.T) {
	y := linear([]float32{1, 2}, []float32{1, 0, 0, 1, 1, 1}, []float32{0, 0, 10}, 3, 2)
	assert.Equal(t, []float32{1, 2, 13}, y)
}

func TestForwardRequiresEval(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)
	_, err = n.Forward(constantInput(256, 256, 0.5))
	assert.True(t, errors.Is(err, ErrNotInferenceMode))
}

func TestForwardShapeAndDeterminism(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)
	n.Eval()

	x := constantInput(256, 256, 0.25)
	a, err := n.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 1, 1}, a.Shape())

	b, err := n.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestForwardRejectsBadInput(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)
	n.Eval()

	_, err = n.Forward(NewTensor(1, 1, 256, 256))
	assert.Error(t, err)
	_, err = n.Forward(NewTensor(1, 3, 128, 128))
	assert.Error(t, err)
	_, err = n.Forward(NewTensor(1, 3, 512, 256))
	assert.Error(t, err)
}

func TestZeroWeightsYieldClassifierBias(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)
	sd := n.StateDict()
	for name, p := range sd {
		for i := range p.Values {
			p.Values[i] = 0
		}
		if name == "classifier.2.bias" {
			p.Values[3] = 2
		}
	}
	require.NoError(t, n.LoadStateDict(sd))
	n.Eval()

	out, err := n.Forward(constantInput(256, 256, 1))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 2, 0}, out.Data)
}

func TestBatchNormFolding(t *testing.T) {
	b := newConvBlock(1, 1, false)
	b.weight[4] = 2
	b.bias[0] = 1
	b.gamma[0] = 3
	b.beta[0] = 0.5
	b.mean[0] = 1
	b.vari[0] = 4 - bnEpsilon
	b.fold()

	// bn(conv(x)) = 3*(2x+1-1)/2 + 0.5 = 3x + 0.5
	y, _, _ := b.forward([]float32{1, 2, 3, 4}, 2, 2)
	assert.InDeltaSlice(t, []float32{3.5, 6.5, 9.5, 12.5}, y, 1e-5)
}

func TestResidualAddsInput(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)
	zero := [2]*convBlock{newConvBlock(2, 2, false), newConvBlock(2, 2, false)}
	for _, b := range zero {
		for i := range b.vari {
			b.vari[i] = 1
		}
		b.fold()
	}
	x := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, x, n.residual(zero, append([]float32(nil), x...), 2, 2))
}

func TestLoadStateDictStrict(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)

	sd := n.StateDict()
	delete(sd, "res2.1.1.running_var")
	err = n.LoadStateDict(sd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "res2.1.1.running_var")

	sd = n.StateDict()
	sd["extra.weight"] = Parameter{Shape: []int{1}, Values: []float32{1}}
	assert.Error(t, n.LoadStateDict(sd))

	sd = n.StateDict()
	sd["classifier.2.bias"] = Parameter{Shape: []int{6}, Values: make([]float32, 6)}
	err = n.LoadStateDict(sd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")

	sd = n.StateDict()
	sd["conv1.1.num_batches_tracked"] = Parameter{Shape: []int{}, Values: []float32{0}}
	assert.NoError(t, n.LoadStateDict(sd))
}

func TestStateDictRoundTrip(t *testing.T) {
	a, err := New(tinyConfig)
	require.NoError(t, err)
	sd := a.StateDict()
	sd["classifier.2.bias"].Values[0] = 42

	b, err := New(tinyConfig)
	require.NoError(t, err)
	require.NoError(t, b.LoadStateDict(sd))
	assert.Equal(t, float32(42), b.StateDict()["classifier.2.bias"].Values[0])
}

func TestInferConfig(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)
	shapes := map[string][]int{}
	for name, p := range n.StateDict() {
		shapes[name] = p.Shape
	}
	cfg, err := InferConfig(shapes)
	require.NoError(t, err)
	assert.Equal(t, tinyConfig, cfg)

	delete(shapes, "classifier.2.weight")
	_, err = InferConfig(shapes)
	assert.Error(t, err)
}

func TestParamShapesMatchNetwork(t *testing.T) {
	n, err := New(tinyConfig)
	require.NoError(t, err)
	sd := n.StateDict()
	shapes := tinyConfig.paramShapes()
	require.Len(t, shapes, len(sd))
	for name, p := range sd {
		assert.Equal(t, p.Shape, shapes[name], name)
	}
}

func TestInferConfigRejectsInconsistentShapes(t *testing.T) {
	shapes := tinyConfig.paramShapes()
	shapes["conv2.0.weight"] = []int{1 << 32, 4, 3, 3}
	_, err := InferConfig(shapes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")

	shapes = tinyConfig.paramShapes()
	shapes["res1.0.0.weight"] = []int{8, 8, 1, 1}
	_, err = InferConfig(shapes)
	assert.Error(t, err)

	shapes = tinyConfig.paramShapes()
	shapes["res3.0.0.weight"] = []int{8, 8, 3, 3}
	_, err = InferConfig(shapes)
	assert.Error(t, err)

	shapes = tinyConfig.paramShapes()
	shapes["conv1.1.num_batches_tracked"] = []int{}
	cfg, err := InferConfig(shapes)
	require.NoError(t, err)
	assert.Equal(t, tinyConfig, cfg)
}

// goldenStateDict fills every parameter of cfg from a fixed integer pattern
// keyed by the parameter's position in sorted name order.
func goldenStateDict(cfg Config) StateDict {
	shapes := cfg.paramShapes()
	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}
	sort.Strings(names)

	sd := make(StateDict, len(names))
	for t, name := range names {
		n := 1
		for _, d := range shapes[name] {
			n *= d
		}
		values := make([]float32, n)
		for i := range values {
			switch {
			case strings.HasSuffix(name, "running_var"):
				values[i] = 0.5 + float32((i*5+t)%7)/8
			case strings.HasSuffix(name, ".1.bias"):
				values[i] = float32((i*31+t*17)%23-11)/16 + 0.25
			default:
				values[i] = float32((i*31+t*17)%23-11) / 16
			}
		}
		sd[name] = Parameter{Shape: shapes[name], Values: values}
	}
	return sd
}

func TestForwardGoldenLogits(t *testing.T) {
	cfg := Config{InChannels: 3, NumClasses: 5, Widths: [4]int{2, 3, 3, 3}}
	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.LoadStateDict(goldenStateDict(cfg)))
	n.Eval()

	x := NewTensor(1, 3, 256, 256)
	for c := 0; c < 3; c++ {
		for y := 0; y < 256; y++ {
			for i := 0; i < 256; i++ {
				x.Data[(c*256+y)*256+i] = float32((c*7+y*3+i*5)%11) / 10
			}
		}
	}

	out, err := n.Forward(x)
	require.NoError(t, err)
	// reference values from a float64 evaluation of the same layer stack with
	// unfolded batch norm
	want := []float32{-1.70890310, -0.85998816, -0.01107322, -0.59965828, 0.24925666}
	assert.InDeltaSlice(t, want, out.Data, 1e-3)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(38)
	assert.Equal(t, 3, cfg.InChannels)
	assert.Equal(t, [4]int{64, 128, 256, 512}, cfg.Widths)
	_, err := New(Config{})
	assert.Error(t, err)
}
