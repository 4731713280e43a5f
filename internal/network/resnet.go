// Package network implements the forward pass of the ResNet9 leaf-disease
// classifier:
//
//	conv1 → conv2(pool) → res1 + skip → conv3(pool) → conv4(pool) → res2 + skip → pool → linear
//
// Parameter names follow the layout the weights were exported with
// (conv1.0.weight, res1.0.1.running_var, classifier.2.bias, ...).
package network

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// ErrNotInferenceMode is returned by Forward before Eval has been called on
// the current weights.
var ErrNotInferenceMode = errors.New("network is not in inference mode")

// Config fixes the channel widths and class count. The topology itself never
// changes.
type Config struct {
	InChannels int
	NumClasses int
	// Widths are the output channels of conv1..conv4.
	Widths [4]int
}

// DefaultConfig is ResNet9(3, numClasses) with 64/128/256/512 channels.
func DefaultConfig(numClasses int) Config {
	return Config{InChannels: 3, NumClasses: numClasses, Widths: [4]int{64, 128, 256, 512}}
}

func (c Config) validate() error {
	if c.InChannels <= 0 || c.NumClasses <= 0 {
		return fmt.Errorf("invalid config: in=%d classes=%d", c.InChannels, c.NumClasses)
	}
	for i, w := range c.Widths {
		if w <= 0 {
			return fmt.Errorf("invalid config: width %d is %d", i, w)
		}
	}
	return nil
}

// Parameter is a named weight tensor.
type Parameter struct {
	Shape  []int
	Values []float32
}

// StateDict maps parameter names to values.
type StateDict map[string]Parameter

type param struct {
	name  string
	shape []int
	dst   *[]float32
}

// ResNet9 is the classifier network.
type ResNet9 struct {
	cfg Config

	conv1, conv2 *convBlock
	res1         [2]*convBlock
	conv3, conv4 *convBlock
	res2         [2]*convBlock

	fcWeight []float32
	fcBias   []float32

	eval bool
}

// New builds a network with freshly initialized weights. Initialization is
// seeded so two networks with the same config are identical.
func New(cfg Config) (*ResNet9, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	w := cfg.Widths
	n := &ResNet9{
		cfg:      cfg,
		conv1:    newConvBlock(cfg.InChannels, w[0], false),
		conv2:    newConvBlock(w[0], w[1], true),
		res1:     [2]*convBlock{newConvBlock(w[1], w[1], false), newConvBlock(w[1], w[1], false)},
		conv3:    newConvBlock(w[1], w[2], true),
		conv4:    newConvBlock(w[2], w[3], true),
		res2:     [2]*convBlock{newConvBlock(w[3], w[3], false), newConvBlock(w[3], w[3], false)},
		fcWeight: make([]float32, cfg.NumClasses*w[3]),
		fcBias:   make([]float32, cfg.NumClasses),
	}
	n.initialize(rand.New(rand.NewPCG(9, uint64(cfg.NumClasses))))
	return n, nil
}

// Config returns the network configuration.
func (n *ResNet9) Config() Config { return n.cfg }

func (n *ResNet9) params() []param {
	var ps []param
	ps = append(ps, n.conv1.params("conv1")...)
	ps = append(ps, n.conv2.params("conv2")...)
	ps = append(ps, n.res1[0].params("res1.0")...)
	ps = append(ps, n.res1[1].params("res1.1")...)
	ps = append(ps, n.conv3.params("conv3")...)
	ps = append(ps, n.conv4.params("conv4")...)
	ps = append(ps, n.res2[0].params("res2.0")...)
	ps = append(ps, n.res2[1].params("res2.1")...)
	ps = append(ps,
		param{"classifier.2.weight", []int{n.cfg.NumClasses, n.cfg.Widths[3]}, &n.fcWeight},
		param{"classifier.2.bias", []int{n.cfg.NumClasses}, &n.fcBias},
	)
	return ps
}

func (n *ResNet9) blocks() []*convBlock {
	return []*convBlock{n.conv1, n.conv2, n.res1[0], n.res1[1], n.conv3, n.conv4, n.res2[0], n.res2[1]}
}

// initialize uses uniform(-1/sqrt(fan_in), 1/sqrt(fan_in)) for conv and
// linear layers and identity batch norm.
func (n *ResNet9) initialize(rng *rand.Rand) {
	uniform := func(dst []float32, fanIn int) {
		bound := 1 / math.Sqrt(float64(fanIn))
		for i := range dst {
			dst[i] = float32((rng.Float64()*2 - 1) * bound)
		}
	}
	for _, b := range n.blocks() {
		uniform(b.weight, b.in*9)
		uniform(b.bias, b.in*9)
		for i := range b.gamma {
			b.gamma[i] = 1
			b.beta[i] = 0
			b.mean[i] = 0
			b.vari[i] = 1
		}
	}
	uniform(n.fcWeight, n.cfg.Widths[3])
	uniform(n.fcBias, n.cfg.Widths[3])
	n.eval = false
}

// StateDict returns a copy of every parameter.
func (n *ResNet9) StateDict() StateDict {
	sd := make(StateDict)
	for _, p := range n.params() {
		v := make([]float32, len(*p.dst))
		copy(v, *p.dst)
		sd[p.name] = Parameter{Shape: append([]int(nil), p.shape...), Values: v}
	}
	return sd
}

// LoadStateDict copies weights from sd. Loading is strict: every parameter
// must be present with the right shape and unknown names are rejected.
// Batch-norm step counters are ignored. The network leaves inference mode.
func (n *ResNet9) LoadStateDict(sd StateDict) error {
	ps := n.params()
	known := make(map[string]bool, len(ps))
	var missing []string
	for _, p := range ps {
		known[p.name] = true
		v, ok := sd[p.name]
		if !ok {
			missing = append(missing, p.name)
			continue
		}
		if !sameShape(v.Shape, p.shape) {
			return fmt.Errorf("size mismatch for %s: artifact has %v, network has %v", p.name, v.Shape, p.shape)
		}
		if len(v.Values) != len(*p.dst) {
			return fmt.Errorf("%s: have %d values, want %d", p.name, len(v.Values), len(*p.dst))
		}
	}
	var unexpected []string
	for name := range sd {
		if !known[name] && !strings.HasSuffix(name, ".num_batches_tracked") {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return fmt.Errorf("state dict mismatch: missing keys %v, unexpected keys %v", missing, unexpected)
	}
	for _, p := range ps {
		copy(*p.dst, sd[p.name].Values)
	}
	n.eval = false
	return nil
}

// Eval switches to inference mode: batch norm uses its running statistics
// and is folded into the preceding convolution.
func (n *ResNet9) Eval() {
	for _, b := range n.blocks() {
		b.fold()
	}
	n.eval = true
}

// Forward maps an N×C×H×W batch with values in [0,1] to N×NumClasses
// logits (returned as N×classes×1×1). The spatial size must reduce to 1×1
// after the four 4×4 pools, i.e. H and W in [256, 511].
func (n *ResNet9) Forward(x *Tensor) (*Tensor, error) {
	if !n.eval {
		return nil, ErrNotInferenceMode
	}
	if x.C != n.cfg.InChannels {
		return nil, fmt.Errorf("input has %d channels, network expects %d", x.C, n.cfg.InChannels)
	}
	if final(x.H) != 1 || final(x.W) != 1 {
		return nil, fmt.Errorf("input %dx%d does not reduce to 1x1; use a size in [256, 511]", x.H, x.W)
	}

	out := NewTensor(x.N, n.cfg.NumClasses, 1, 1)
	for i := 0; i < x.N; i++ {
		logits := n.forwardOne(x.Sample(i), x.H, x.W)
		copy(out.Sample(i), logits)
	}
	return out, nil
}

func final(size int) int {
	for i := 0; i < 4; i++ {
		size /= poolSize
	}
	return size
}

func (n *ResNet9) forwardOne(x []float32, h, w int) []float32 {
	out, h, w := n.conv1.forward(x, h, w)
	out, h, w = n.conv2.forward(out, h, w)
	out = n.residual(n.res1, out, h, w)
	out, h, w = n.conv3.forward(out, h, w)
	out, h, w = n.conv4.forward(out, h, w)
	out = n.residual(n.res2, out, h, w)
	out, _, _ = maxPool(out, n.cfg.Widths[3], h, w, poolSize)
	return linear(out, n.fcWeight, n.fcBias, n.cfg.NumClasses, n.cfg.Widths[3])
}

func (n *ResNet9) residual(blocks [2]*convBlock, x []float32, h, w int) []float32 {
	y, _, _ := blocks[0].forward(x, h, w)
	y, _, _ = blocks[1].forward(y, h, w)
	for i := range y {
		y[i] += x[i]
	}
	return y
}

// InferConfig derives widths and class count from parameter shapes so
// artifacts with non-default widths load without extra metadata. Every
// shape must agree with the derived config.
func InferConfig(shapes map[string][]int) (Config, error) {
	get := func(name string, rank int) ([]int, error) {
		s, ok := shapes[name]
		if !ok {
			return nil, fmt.Errorf("missing %s", name)
		}
		if len(s) != rank {
			return nil, fmt.Errorf("%s has rank %d, want %d", name, len(s), rank)
		}
		return s, nil
	}
	var cfg Config
	for i, prefix := range []string{"conv1", "conv2", "conv3", "conv4"} {
		s, err := get(prefix+".0.weight", 4)
		if err != nil {
			return Config{}, err
		}
		cfg.Widths[i] = s[0]
		if i == 0 {
			cfg.InChannels = s[1]
		}
	}
	fc, err := get("classifier.2.weight", 2)
	if err != nil {
		return Config{}, err
	}
	cfg.NumClasses = fc[0]
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.checkShapes(shapes); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// paramShapes lists every parameter shape of a network built from c without
// allocating it.
func (c Config) paramShapes() map[string][]int {
	w := c.Widths
	shapes := make(map[string][]int, 50)
	block := func(prefix string, in, out int) {
		shapes[prefix+".0.weight"] = []int{out, in, 3, 3}
		for _, name := range []string{".0.bias", ".1.weight", ".1.bias", ".1.running_mean", ".1.running_var"} {
			shapes[prefix+name] = []int{out}
		}
	}
	block("conv1", c.InChannels, w[0])
	block("conv2", w[0], w[1])
	block("res1.0", w[1], w[1])
	block("res1.1", w[1], w[1])
	block("conv3", w[1], w[2])
	block("conv4", w[2], w[3])
	block("res2.0", w[3], w[3])
	block("res2.1", w[3], w[3])
	shapes["classifier.2.weight"] = []int{c.NumClasses, w[3]}
	shapes["classifier.2.bias"] = []int{c.NumClasses}
	return shapes
}

// checkShapes applies the strict LoadStateDict rules to shapes alone.
func (c Config) checkShapes(shapes map[string][]int) error {
	want := c.paramShapes()
	var missing, unexpected []string
	for name, s := range want {
		got, ok := shapes[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if !sameShape(got, s) {
			return fmt.Errorf("size mismatch for %s: artifact has %v, network has %v", name, got, s)
		}
	}
	for name := range shapes {
		if _, ok := want[name]; !ok && !strings.HasSuffix(name, ".num_batches_tracked") {
			unexpected = append(unexpected, name)
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(missing)
		sort.Strings(unexpected)
		return fmt.Errorf("state dict mismatch: missing keys %v, unexpected keys %v", missing, unexpected)
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
