package speech

import (
	"bytes"
	"context"
	"errors"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAIRecognizer transcribes through the OpenAI audio transcription API.
type OpenAIRecognizer struct {
	client *openai.Client
	model  string
	hasKey bool
}

// NewOpenAIRecognizer creates a recognizer. Empty apiKey and baseURL fall
// back to OPENAI_API_KEY and the public endpoint.
func NewOpenAIRecognizer(apiKey, baseURL, model string) *OpenAIRecognizer {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = openai.Whisper1
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIRecognizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		hasKey: apiKey != "",
	}
}

func (o *OpenAIRecognizer) Name() string { return string(ProviderOpenAI) }

// Recognize uploads the original WAV with the language's ISO 639-1 code.
func (o *OpenAIRecognizer) Recognize(ctx context.Context, clip *Clip, lang Language) (string, error) {
	if !o.hasKey {
		return "", &RequestError{Provider: o.Name(), Message: "missing API key (set OPENAI_API_KEY in env)"}
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "recording.wav",
		Reader:   bytes.NewReader(clip.Raw),
		Language: lang.Base(),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &RequestError{Provider: o.Name(), StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", &RequestError{Provider: o.Name(), StatusCode: reqErr.HTTPStatusCode, Err: err}
		}
		return "", &RequestError{Provider: o.Name(), Err: err}
	}
	if resp.Text == "" {
		return "", ErrUnknownValue
	}
	return resp.Text, nil
}
