package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/Brownie44l1/agri-assist/internal/classes"
	"github.com/Brownie44l1/agri-assist/internal/config"
	"github.com/Brownie44l1/agri-assist/internal/handlers"
	"github.com/Brownie44l1/agri-assist/internal/model"
	"github.com/Brownie44l1/agri-assist/internal/predict"
	"github.com/Brownie44l1/agri-assist/internal/speech"
	"github.com/Brownie44l1/agri-assist/internal/web"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Speech provider: %s", srv.recognizer.Name())
	log.Println("Endpoints:")
	log.Println("  GET  /                      - Speech-to-text UI")
	log.Println("  GET  /health                - Health check")
	log.Println("  GET  /api/languages         - Supported recognition languages")
	log.Println("  POST /api/transcribe        - Transcribe a WAV recording")
	log.Println("  GET  /api/diseases/{label}  - Advice for a class label")
	log.Println("  POST /predict               - Raw array prediction")
	log.Println("  POST /predict/image         - Predict from image upload")
	log.Printf("Upload test: curl -X POST -F \"image=@leaf.jpg\" http://localhost:%s/predict/image", cfg.Port)

	return http.ListenAndServe(":"+cfg.Port, srv.handler)
}

// server owns the loaded network for the lifetime of the process.
type server struct {
	handler    http.Handler
	recognizer speech.Recognizer
	net        model.Network
}

func newServer(cfg *config.Config) (*server, error) {
	predictor, net, err := loadPredictor(cfg)
	if err != nil {
		return nil, err
	}

	recognizer, err := speech.NewRecognizer(speech.Config{
		Provider:       speech.Provider(cfg.STTProvider),
		GoogleAPIKey:   cfg.GoogleSpeechAPIKey,
		GoogleEndpoint: cfg.GoogleSpeechEndpoint,
		OpenAIAPIKey:   cfg.OpenAIAPIKey,
		OpenAIBaseURL:  cfg.OpenAIBaseURL,
		OpenAIModel:    cfg.OpenAIModel,
	})
	if err != nil {
		if net != nil {
			net.Close()
		}
		return nil, fmt.Errorf("failed to initialize speech recognizer: %w", err)
	}
	speechService := speech.NewService(recognizer, cfg.SilenceThreshold)

	h := handlers.NewHandler(predictor, speechService, web.FS(), cfg.MaxUploadBytes)
	return &server{handler: h.Routes(), recognizer: recognizer, net: net}, nil
}

// Close releases the network, if one was loaded.
func (s *server) Close() error {
	if s.net == nil {
		return nil
	}
	return s.net.Close()
}

// loadPredictor returns a nil predictor and network when the model is absent
// so the speech UI can still be served.
func loadPredictor(cfg *config.Config) (*predict.Predictor, model.Network, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		log.Printf("Model file not found at %s, image prediction disabled", cfg.ModelPath)
		return nil, nil, nil
	}

	device, err := model.ParseDevice(cfg.Device)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid DEVICE: %w", err)
	}

	log.Printf("Loading model from: %s", cfg.ModelPath)
	table := classes.Default()
	net, err := model.Load(cfg.ModelPath, model.Options{
		Classes:           table,
		Device:            device,
		SHA256:            cfg.ModelSHA256,
		MetadataPath:      cfg.ModelMetadataPath,
		SharedLibraryPath: cfg.ORTLibraryPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model: %w", err)
	}
	log.Printf("Model loaded on %s, %d classes", net.Device(), table.Len())
	return predict.New(net, table), net, nil
}
