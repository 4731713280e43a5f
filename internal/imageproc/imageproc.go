// Package imageproc turns image files into classifier input tensors.
package imageproc

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/agri-assist/internal/network"
)

// DefaultSize is the square resolution the classifier expects.
const DefaultSize = 256

// Preprocessor resizes images to Size×Size (ignoring aspect ratio) and
// converts them to a 1×3×Size×Size tensor scaled to [0,1]. No cropping and
// no mean/std normalization.
type Preprocessor struct {
	Size int
}

// New returns a preprocessor for size×size inputs.
func New(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Preprocessor{Size: size}
}

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// LoadFile decodes the image at path and converts it.
func (p *Preprocessor) LoadFile(path string) (*network.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p.Tensor(img), nil
}

// Tensor resizes img and lays it out channel-first. Alpha is dropped.
func (p *Preprocessor) Tensor(img image.Image) *network.Tensor {
	size := uint(p.Size)
	resized := resize.Resize(size, size, img, resize.Bilinear)

	b := resized.Bounds()
	width, height := b.Dx(), b.Dy()
	t := network.NewTensor(1, 3, height, width)
	plane := width * height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(resized.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := y*width + x
			t.Data[i] = float32(c.R) / 255
			t.Data[plane+i] = float32(c.G) / 255
			t.Data[2*plane+i] = float32(c.B) / 255
		}
	}
	return t
}
