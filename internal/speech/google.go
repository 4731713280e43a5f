package speech

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// DefaultGoogleEndpoint is the Cloud Speech-to-Text v1 REST base.
const DefaultGoogleEndpoint = "https://speech.googleapis.com/v1"

// GoogleRecognizer calls Cloud Speech-to-Text speech:recognize with
// LINEAR16 audio.
type GoogleRecognizer struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// GoogleOption configures a GoogleRecognizer.
type GoogleOption func(*GoogleRecognizer)

// WithAPIKey sets the API key.
func WithAPIKey(key string) GoogleOption {
	return func(g *GoogleRecognizer) {
		g.apiKey = key
	}
}

// WithEndpoint overrides the REST base URL.
func WithEndpoint(endpoint string) GoogleOption {
	return func(g *GoogleRecognizer) {
		g.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) GoogleOption {
	return func(g *GoogleRecognizer) {
		g.httpClient = c
	}
}

// NewGoogleRecognizer creates a recognizer. The key falls back to
// GOOGLE_SPEECH_API_KEY.
func NewGoogleRecognizer(opts ...GoogleOption) *GoogleRecognizer {
	g := &GoogleRecognizer{}
	for _, opt := range opts {
		opt(g)
	}
	if g.apiKey == "" {
		g.apiKey = os.Getenv("GOOGLE_SPEECH_API_KEY")
	}
	if g.endpoint == "" {
		g.endpoint = DefaultGoogleEndpoint
	}
	if g.httpClient == nil {
		g.httpClient = http.DefaultClient
	}
	return g
}

func (g *GoogleRecognizer) Name() string { return string(ProviderGoogle) }

type googleRecognizeRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  googleRecognitionAudio  `json:"audio"`
}

type googleRecognitionConfig struct {
	Encoding          string `json:"encoding"`
	SampleRateHertz   int    `json:"sampleRateHertz"`
	LanguageCode      string `json:"languageCode"`
	AudioChannelCount int    `json:"audioChannelCount"`
}

type googleRecognitionAudio struct {
	Content string `json:"content"`
}

type googleRecognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Recognize sends clip and joins the top alternative of every result.
func (g *GoogleRecognizer) Recognize(ctx context.Context, clip *Clip, lang Language) (string, error) {
	if g.apiKey == "" {
		return "", &RequestError{Provider: g.Name(), Message: "missing API key (set GOOGLE_SPEECH_API_KEY in env)"}
	}

	body, err := json.Marshal(googleRecognizeRequest{
		Config: googleRecognitionConfig{
			Encoding:          "LINEAR16",
			SampleRateHertz:   clip.SampleRate,
			LanguageCode:      lang.Code,
			AudioChannelCount: 1,
		},
		Audio: googleRecognitionAudio{Content: base64.StdEncoding.EncodeToString(clip.PCM16())},
	})
	if err != nil {
		return "", err
	}

	u := strings.TrimRight(g.endpoint, "/") + "/speech:recognize?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Provider: g.Name(), Err: redactKey(err, g.apiKey)}
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", &RequestError{Provider: g.Name(), StatusCode: resp.StatusCode, Err: err}
		}
		defer gz.Close()
		r = gz
	}

	if resp.StatusCode != http.StatusOK {
		var e googleErrorResponse
		msg := resp.Status
		if err := json.NewDecoder(r).Decode(&e); err == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return "", &RequestError{Provider: g.Name(), StatusCode: resp.StatusCode, Message: msg}
	}

	var rr googleRecognizeResponse
	if err := json.NewDecoder(r).Decode(&rr); err != nil {
		return "", &RequestError{Provider: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("bad response: %w", err)}
	}
	var parts []string
	for _, res := range rr.Results {
		if len(res.Alternatives) > 0 && res.Alternatives[0].Transcript != "" {
			parts = append(parts, strings.TrimSpace(res.Alternatives[0].Transcript))
		}
	}
	if len(parts) == 0 {
		return "", ErrUnknownValue
	}
	return strings.Join(parts, " "), nil
}

// redactKey strips the API key from transport errors, which quote the URL.
func redactKey(err error, key string) error {
	escaped := url.QueryEscape(key)
	if key == "" || !strings.Contains(err.Error(), escaped) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), escaped, "REDACTED"))
}
