// Package predict maps images to a single class label.
package predict

import (
	"fmt"
	"image"
	"math"

	"github.com/Brownie44l1/agri-assist/internal/classes"
	"github.com/Brownie44l1/agri-assist/internal/imageproc"
	"github.com/Brownie44l1/agri-assist/internal/model"
	"github.com/Brownie44l1/agri-assist/internal/network"
)

// Predictor pairs a loaded network with the class table its outputs index.
// It always returns the best guess; there is no "unknown" class.
type Predictor struct {
	net     model.Network
	classes classes.Table
	pre     *imageproc.Preprocessor
}

// New builds a predictor. The network's output size must match the table.
func New(net model.Network, table classes.Table) *Predictor {
	return &Predictor{
		net:     net,
		classes: table,
		pre:     imageproc.New(net.ImageSize()),
	}
}

// Classes returns the class table.
func (p *Predictor) Classes() classes.Table { return p.classes }

// ImageSize is the square input edge the network expects.
func (p *Predictor) ImageSize() int { return p.pre.Size }

// PredictFile classifies the image at path.
func (p *Predictor) PredictFile(path string) (string, error) {
	x, err := p.pre.LoadFile(path)
	if err != nil {
		return "", err
	}
	return p.PredictTensor(x)
}

// PredictImage classifies a decoded image.
func (p *Predictor) PredictImage(img image.Image) (string, error) {
	return p.PredictTensor(p.pre.Tensor(img))
}

// PredictTensor classifies an already preprocessed 1×3×S×S tensor.
func (p *Predictor) PredictTensor(x *network.Tensor) (string, error) {
	logits, err := p.net.Forward(x)
	if err != nil {
		return "", err
	}
	if len(logits) != p.classes.Len() {
		return "", fmt.Errorf("network produced %d scores, class table has %d", len(logits), p.classes.Len())
	}
	return p.classes.Label(Argmax(logits))
}

// Argmax returns the index of the largest value, the first one on ties.
// NaN entries never win; an all-NaN slice yields 0.
func Argmax(values []float32) int {
	best := 0
	top := float32(math.Inf(-1))
	for i, v := range values {
		if v > top {
			top = v
			best = i
		}
	}
	return best
}

// PredictFile loads the model at modelPath and classifies imagePath. It is
// the one-shot form used by the command-line tool.
func PredictFile(imagePath, modelPath string, opts model.Options) (string, error) {
	net, err := model.Load(modelPath, opts)
	if err != nil {
		return "", err
	}
	defer net.Close()

	return New(net, opts.Classes).PredictFile(imagePath)
}
