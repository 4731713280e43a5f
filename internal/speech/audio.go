package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-audio/wav"
)

// ErrInvalidAudio means the uploaded bytes are not a readable WAV file.
var ErrInvalidAudio = errors.New("audio is not a valid WAV file")

// Clip is a decoded recording, downmixed to mono.
type Clip struct {
	SampleRate int
	// Samples are normalized to [-1, 1].
	Samples []float32
	// Raw is the WAV file as uploaded.
	Raw []byte
}

// DecodeWAV parses a PCM WAV recording. An empty buffer decodes to an empty
// clip.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) == 0 {
		return &Clip{}, nil
	}
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, ErrInvalidAudio
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	channels := int(d.NumChans)
	if channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidAudio)
	}
	depth := int(d.BitDepth)
	if depth == 0 || depth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidAudio, depth)
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			v := buf.Data[i*channels+c]
			if depth == 8 {
				// 8-bit WAV is unsigned
				v -= 128
			}
			sum += float32(v) / scale
		}
		samples[i] = sum / float32(channels)
	}
	return &Clip{SampleRate: int(d.SampleRate), Samples: samples, Raw: data}, nil
}

// Duration is the clip length.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// RMS is the root mean square level in [0, 1].
func (c *Clip) RMS() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(c.Samples)))
}

// Silent reports whether the clip is empty or quieter than threshold.
func (c *Clip) Silent(threshold float64) bool {
	return len(c.Samples) == 0 || c.RMS() < threshold
}

// PCM16 returns headerless little-endian signed 16-bit mono samples.
func (c *Clip) PCM16() []byte {
	out := make([]byte, 2*len(c.Samples))
	for i, s := range c.Samples {
		v := math.Round(float64(s) * 32767)
		v = math.Max(-32768, math.Min(32767, v))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}
