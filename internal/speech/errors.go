package speech

import (
	"errors"
	"fmt"
)

// ErrUnknownValue means the recording held no recognizable speech.
var ErrUnknownValue = errors.New("could not understand audio")

// RequestError is a failure talking to the recognition service.
type RequestError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s recognition request failed (%d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s recognition request failed: %s", e.Provider, msg)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Message renders err the way the UI shows it.
func Message(err error) string {
	var reqErr *RequestError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownValue):
		return "Could not understand audio. Please try speaking more clearly."
	case errors.As(err, &reqErr):
		return "API Error: " + reqErr.Error()
	default:
		return "Error: " + err.Error()
	}
}
