// Package config reads process configuration from the environment, after
// loading a .env file when one is present.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultModelFile is the artifact name looked up next to the executable.
const DefaultModelFile = "plant-disease-model.safetensors"

// Config holds settings for both the CLI and the server.
type Config struct {
	Port string

	ModelPath         string
	ModelSHA256       string
	Device            string
	ORTLibraryPath    string
	ModelMetadataPath string

	STTProvider          string
	GoogleSpeechAPIKey   string
	GoogleSpeechEndpoint string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	SilenceThreshold     float64

	MaxUploadBytes int64
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Ignoring unreadable .env: %v", err)
	}

	cfg := &Config{
		Port:                 getenv("PORT", "8080"),
		ModelPath:            getenv("MODEL_PATH", DefaultModelPath()),
		ModelSHA256:          os.Getenv("MODEL_SHA256"),
		Device:               getenv("DEVICE", "auto"),
		ORTLibraryPath:       os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
		ModelMetadataPath:    os.Getenv("MODEL_METADATA_PATH"),
		STTProvider:          getenv("STT_PROVIDER", "google"),
		GoogleSpeechAPIKey:   os.Getenv("GOOGLE_SPEECH_API_KEY"),
		GoogleSpeechEndpoint: getenv("GOOGLE_SPEECH_ENDPOINT", "https://speech.googleapis.com/v1"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:          getenv("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
	}

	var err error
	if cfg.SilenceThreshold, err = strconv.ParseFloat(getenv("SILENCE_THRESHOLD", "0.005"), 64); err != nil {
		return nil, fmt.Errorf("invalid SILENCE_THRESHOLD: %w", err)
	}
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold >= 1 {
		return nil, fmt.Errorf("SILENCE_THRESHOLD must be in [0,1), got %v", cfg.SilenceThreshold)
	}
	mb, err := strconv.Atoi(getenv("MAX_UPLOAD_MB", "10"))
	if err != nil || mb <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB %q", os.Getenv("MAX_UPLOAD_MB"))
	}
	cfg.MaxUploadBytes = int64(mb) << 20

	return cfg, nil
}

// DefaultModelPath is <executable dir>/models/plant-disease-model.safetensors,
// falling back to the working directory when the executable can't be found.
func DefaultModelPath() string {
	dir, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			dir = resolved
		}
		dir = filepath.Dir(dir)
	} else {
		dir = "."
	}
	return filepath.Join(dir, "models", DefaultModelFile)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
