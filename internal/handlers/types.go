package handlers

import "github.com/Brownie44l1/agri-assist/internal/classes"

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Prediction string          `json:"prediction"`
	Info       *classes.Advice `json:"info,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ModelLoaded    bool   `json:"model_loaded"`
	SpeechProvider string `json:"speech_provider,omitempty"`
}

type TranscriptionResponse struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Language  string `json:"language,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
}
