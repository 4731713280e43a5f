// Package speech forwards recorded audio to a hosted recognition service and
// classifies the outcome for the speech-to-text UI.
package speech

import (
	"context"
	"fmt"
	"strings"
)

// Provider names a recognition backend.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderOpenAI Provider = "openai"
)

// Recognizer turns a clip into text. Implementations return ErrUnknownValue
// when the service heard nothing and *RequestError when the call failed.
type Recognizer interface {
	Recognize(ctx context.Context, clip *Clip, lang Language) (string, error)
	Name() string
}

// Config selects and configures a recognizer.
type Config struct {
	Provider Provider

	GoogleAPIKey   string
	GoogleEndpoint string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// NewRecognizer builds the recognizer named by cfg.Provider.
func NewRecognizer(cfg Config) (Recognizer, error) {
	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case ProviderGoogle, "":
		return NewGoogleRecognizer(
			WithAPIKey(cfg.GoogleAPIKey),
			WithEndpoint(cfg.GoogleEndpoint),
		), nil
	case ProviderOpenAI:
		return NewOpenAIRecognizer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	}
	return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
}

// Service runs the silence gate in front of a recognizer.
type Service struct {
	recognizer       Recognizer
	silenceThreshold float64
}

// NewService wraps recognizer. Clips whose RMS level is below
// silenceThreshold are rejected without calling the service.
func NewService(recognizer Recognizer, silenceThreshold float64) *Service {
	return &Service{recognizer: recognizer, silenceThreshold: silenceThreshold}
}

// Recognizer returns the wrapped recognizer.
func (s *Service) Recognizer() Recognizer { return s.recognizer }

// Transcribe decodes a WAV upload and returns the recognized text.
func (s *Service) Transcribe(ctx context.Context, audio []byte, lang Language) (string, error) {
	clip, err := DecodeWAV(audio)
	if err != nil {
		return "", err
	}
	if clip.Silent(s.silenceThreshold) {
		return "", ErrUnknownValue
	}
	text, err := s.recognizer.Recognize(ctx, clip, lang)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrUnknownValue
	}
	return text, nil
}
