package predict

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/agri-assist/internal/classes"
	"github.com/Brownie44l1/agri-assist/internal/model"
	"github.com/Brownie44l1/agri-assist/internal/network"
)

type fakeNetwork struct {
	logits []float32
	calls  int
}

func (f *fakeNetwork) Forward(input *network.Tensor) ([]float32, error) {
	f.calls++
	return f.logits, nil
}
func (f *fakeNetwork) ImageSize() int       { return 256 }
func (f *fakeNetwork) Device() model.Device { return model.DeviceCPU }
func (f *fakeNetwork) Close() error         { return nil }

func leafImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 6), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	return img
}

func writeLeaf(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaf.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, leafImage()))
	require.NoError(t, f.Close())
	return path
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, Argmax([]float32{0, 1, 5, 3}))
	assert.Equal(t, 1, Argmax([]float32{0, 4, 4}))
	nan := float32(math.NaN())
	assert.Equal(t, 1, Argmax([]float32{nan, -3, nan}))
	assert.Equal(t, 0, Argmax([]float32{nan, nan}))
}

func TestPredictImageMapsIndexToLabel(t *testing.T) {
	table := classes.Default()
	logits := make([]float32, 38)
	logits[29] = 3
	p := New(&fakeNetwork{logits: logits}, table)

	label, err := p.PredictImage(leafImage())
	require.NoError(t, err)
	assert.Equal(t, "Tomato___Early_blight", label)
}

func TestPredictRejectsWrongScoreCount(t *testing.T) {
	p := New(&fakeNetwork{logits: make([]float32, 5)}, classes.Default())
	_, err := p.PredictImage(leafImage())
	assert.Error(t, err)
}

func TestPredictFileWithRealNetwork(t *testing.T) {
	table := classes.Default()
	n, err := network.New(network.Config{InChannels: 3, NumClasses: 38, Widths: [4]int{4, 8, 8, 8}})
	require.NoError(t, err)
	modelPath := filepath.Join(t.TempDir(), "plant-disease-model.safetensors")
	require.NoError(t, model.WriteStateDict(modelPath, n.StateDict(), table.Labels(), false))
	imagePath := writeLeaf(t)

	first, err := PredictFile(imagePath, modelPath, model.Options{Classes: table})
	require.NoError(t, err)
	assert.True(t, table.Contains(first))

	for i := 0; i < 2; i++ {
		again, err := PredictFile(imagePath, modelPath, model.Options{Classes: table})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPredictFileMissingImage(t *testing.T) {
	p := New(&fakeNetwork{logits: make([]float32, 38)}, classes.Default())
	_, err := p.PredictFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
