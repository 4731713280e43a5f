package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/agri-assist/internal/classes"
	"github.com/Brownie44l1/agri-assist/internal/imageproc"
	"github.com/Brownie44l1/agri-assist/internal/network"
	"github.com/Brownie44l1/agri-assist/internal/predict"
	"github.com/Brownie44l1/agri-assist/internal/speech"
)

// Handler serves the plant-disease and speech-to-text endpoints.
type Handler struct {
	predictor *predict.Predictor
	speech    *speech.Service
	static    fs.FS
	maxUpload int64
}

// NewHandler wires the handler. predictor may be nil when no model is
// installed; the prediction endpoints then answer 503.
func NewHandler(predictor *predict.Predictor, speechService *speech.Service, static fs.FS, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		predictor: predictor,
		speech:    speechService,
		static:    static,
		maxUpload: maxUpload,
	}
}

// Routes registers every endpoint and wraps them with CORS.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/predict/image", h.PredictFromImage)
	mux.HandleFunc("/api/diseases/{label}", h.Disease)
	mux.HandleFunc("/api/languages", h.Languages)
	mux.HandleFunc("/api/transcribe", h.Transcribe)
	if h.static != nil {
		mux.Handle("/", http.FileServerFS(h.static))
	}
	return enableCORS(mux)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthResponse{Status: "healthy", ModelLoaded: h.predictor != nil}
	if h.speech != nil {
		status.SpeechProvider = h.speech.Recognizer().Name()
	}
	writeJSON(w, http.StatusOK, status)
}

// Predict classifies a preprocessed 1×3×S×S tensor sent as a flat array.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, "Model not loaded", "")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err.Error())
		return
	}

	var req PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	size := h.predictor.ImageSize()
	x, err := network.FromData(1, 3, size, size, req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input shape", err.Error())
		return
	}

	label, err := h.predictor.PredictTensor(x)
	if err != nil {
		log.Printf("Prediction error: %v", err)
		writeError(w, http.StatusInternalServerError, "Prediction failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newPredictionResponse(label))
}

// PredictFromImage classifies an uploaded image (field "image" or "file").
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, "Model not loaded", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form", err.Error())
		return
	}

	file, header, err := formFile(r, "image", "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded", "Use 'image' or 'file' as the form field name")
		return
	}
	defer file.Close()

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, format, err := imageproc.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image format", err.Error())
		return
	}

	log.Printf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	label, err := h.predictor.PredictImage(img)
	if err != nil {
		log.Printf("Prediction error: %v", err)
		writeError(w, http.StatusInternalServerError, "Prediction failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newPredictionResponse(label))
}

func formFile(r *http.Request, names ...string) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, n := range names {
		f, h, err := r.FormFile(n)
		if err == nil {
			return f, h, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

func newPredictionResponse(label string) PredictionResponse {
	advice := classes.AdviceFor(label)
	return PredictionResponse{Prediction: label, Info: &advice}
}

// Disease returns the advice entry for a class label.
func (h *Handler) Disease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	label := r.PathValue("label")
	table := classes.Default()
	if h.predictor != nil {
		table = h.predictor.Classes()
	}
	if !table.Contains(label) {
		writeError(w, http.StatusNotFound, "Unknown label", label)
		return
	}
	writeJSON(w, http.StatusOK, newPredictionResponse(label))
}

func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, speech.Languages())
}

// Transcribe forwards a recorded WAV to the recognition service.
// Recognition failures are answered with 200 and success=false: they are UI
// states, and the client may simply record again.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := uuid.New().String()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, TranscriptionResponse{RequestID: id, Error: "Failed to parse form: " + err.Error()})
		return
	}

	lang, err := speech.LookupLanguage(r.FormValue("language"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, TranscriptionResponse{RequestID: id, Error: err.Error()})
		return
	}

	var audio []byte
	if file, _, err := r.FormFile("audio"); err == nil {
		audio, err = io.ReadAll(file)
		file.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, TranscriptionResponse{RequestID: id, Error: "Failed to read audio: " + err.Error()})
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeJSON(w, http.StatusBadRequest, TranscriptionResponse{RequestID: id, Error: err.Error()})
		return
	}

	start := time.Now()
	text, err := h.speech.Transcribe(r.Context(), audio, lang)
	if err != nil {
		log.Printf("[%s] transcription (%s, %d bytes) failed after %s: %v", id, lang.Code, len(audio), time.Since(start), err)
		writeJSON(w, http.StatusOK, TranscriptionResponse{RequestID: id, Language: lang.Code, Error: speech.Message(err)})
		return
	}

	log.Printf("[%s] transcribed %d bytes of %s audio in %s", id, len(audio), lang.Code, time.Since(start))
	writeJSON(w, http.StatusOK, TranscriptionResponse{RequestID: id, Success: true, Language: lang.Code, Text: text})
}
