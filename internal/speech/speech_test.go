package speech

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWAV encodes 16-bit PCM samples with the given channel count.
func makeWAV(t *testing.T, samples []int, rate, channels int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func tone(n int, amplitude float64) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

type stubRecognizer struct {
	text  string
	err   error
	calls int
	clip  *Clip
	lang  Language
}

func (s *stubRecognizer) Recognize(ctx context.Context, clip *Clip, lang Language) (string, error) {
	s.calls++
	s.clip = clip
	s.lang = lang
	return s.text, s.err
}

func (s *stubRecognizer) Name() string { return "stub" }

func hindi(t *testing.T) Language {
	t.Helper()
	l, err := LookupLanguage("hi-IN")
	require.NoError(t, err)
	return l
}

func TestDecodeWAV(t *testing.T) {
	data := makeWAV(t, tone(16000, 0.5), 16000, 1)
	clip, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, clip.SampleRate)
	assert.Len(t, clip.Samples, 16000)
	assert.Equal(t, "1s", clip.Duration().String())
	assert.InDelta(t, 0.5/math.Sqrt2, clip.RMS(), 0.01)
	assert.Len(t, clip.PCM16(), 32000)
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// left +1/2, right -1/2 cancels to silence
	samples := make([]int, 2*800)
	for i := 0; i < len(samples); i += 2 {
		samples[i] = 16384
		samples[i+1] = -16384
	}
	clip, err := DecodeWAV(makeWAV(t, samples, 8000, 2))
	require.NoError(t, err)
	assert.Len(t, clip.Samples, 800)
	assert.True(t, clip.Silent(0.001))
}

func TestDecodeWAVInvalid(t *testing.T) {
	_, err := DecodeWAV([]byte("definitely not RIFF data"))
	assert.True(t, errors.Is(err, ErrInvalidAudio))
}

func TestServiceSilentAudio(t *testing.T) {
	rec := &stubRecognizer{text: "should not be called"}
	svc := NewService(rec, 0.005)

	for name, data := range map[string][]byte{
		"empty":  nil,
		"silent": makeWAV(t, make([]int, 8000), 16000, 1),
	} {
		_, err := svc.Transcribe(context.Background(), data, hindi(t))
		assert.True(t, errors.Is(err, ErrUnknownValue), name)
		assert.Contains(t, strings.ToLower(Message(err)), "could not understand audio", name)
	}
	assert.Zero(t, rec.calls)

	// still usable afterwards
	rec.text = "नमस्ते"
	text, err := svc.Transcribe(context.Background(), makeWAV(t, tone(8000, 0.3), 16000, 1), hindi(t))
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते", text)
	assert.Equal(t, "hi-IN", rec.lang.Code)
}

func TestServicePropagatesErrors(t *testing.T) {
	speech := makeWAV(t, tone(8000, 0.3), 16000, 1)

	rec := &stubRecognizer{err: &RequestError{Provider: "stub", StatusCode: 403, Message: "API key not valid"}}
	_, err := NewService(rec, 0.005).Transcribe(context.Background(), speech, hindi(t))
	assert.Equal(t, "API Error: stub recognition request failed (403): API key not valid", Message(err))

	rec = &stubRecognizer{text: "   "}
	_, err = NewService(rec, 0.005).Transcribe(context.Background(), speech, hindi(t))
	assert.True(t, errors.Is(err, ErrUnknownValue))

	_, err = NewService(rec, 0.005).Transcribe(context.Background(), []byte("garbage"), hindi(t))
	assert.True(t, strings.HasPrefix(Message(err), "Error: "))
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, "Error: boom", Message(errors.New("boom")))
	wrapped := &RequestError{Provider: "google", Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "API Error: google recognition request failed: dial tcp: refused", Message(wrapped))
}

func TestLanguages(t *testing.T) {
	langs := Languages()
	require.Len(t, langs, 11)
	assert.Equal(t, "en-IN", langs[0].Code)

	l, err := LookupLanguage("ta-in")
	require.NoError(t, err)
	assert.Equal(t, "ta-IN", l.Code)
	assert.Equal(t, "ta", l.Base())

	l, err = LookupLanguage("")
	require.NoError(t, err)
	assert.Equal(t, "en-IN", l.Code)

	_, err = LookupLanguage("fr-FR")
	assert.Error(t, err)
	_, err = LookupLanguage("not a tag!")
	assert.Error(t, err)
}

func TestNewRecognizer(t *testing.T) {
	r, err := NewRecognizer(Config{Provider: "google", GoogleAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "google", r.Name())

	r, err = NewRecognizer(Config{Provider: "OpenAI", OpenAIAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", r.Name())

	_, err = NewRecognizer(Config{Provider: "vosk"})
	assert.Error(t, err)
}
