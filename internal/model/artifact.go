package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Brownie44l1/agri-assist/internal/safetensors"
)

// Kind is the shape of a model artifact, resolved once when it is opened.
type Kind int

const (
	// FullModel is a self-describing graph run by ONNX Runtime.
	FullModel Kind = iota + 1
	// StateDict is a flat mapping of parameter names to tensors.
	StateDict
	// NestedStateDict is a StateDict whose names all sit under "state_dict.".
	NestedStateDict
)

const nestedPrefix = "state_dict."

func (k Kind) String() string {
	switch k {
	case FullModel:
		return "full-model"
	case StateDict:
		return "state-dict"
	case NestedStateDict:
		return "nested-state-dict"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	// ErrClassMismatch means the artifact was produced for a different class
	// table than the one configured.
	ErrClassMismatch = errors.New("artifact classes do not match class table")
	// ErrChecksumMismatch means the artifact failed its integrity pin.
	ErrChecksumMismatch = errors.New("artifact checksum mismatch")
	// ErrClosed is returned by Forward after Close.
	ErrClosed = errors.New("network is closed")
)

// Artifact is an opened model file.
type Artifact struct {
	Path    string
	Kind    Kind
	Weights *safetensors.File // nil for FullModel
}

// Open reads the artifact at path and classifies it. Weights-only artifacts
// are parsed fully; full models are left for ONNX Runtime to read.
func Open(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	prefix := make([]byte, 9)
	n, err := io.ReadFull(f, prefix)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	if !safetensors.Sniff(prefix[:n]) {
		return &Artifact{Path: path, Kind: FullModel}, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	weights, err := safetensors.Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse weights %s: %w", path, err)
	}
	return &Artifact{Path: path, Kind: stateDictKind(weights), Weights: weights}, nil
}

func stateDictKind(f *safetensors.File) Kind {
	names := f.Names()
	if len(names) == 0 {
		return StateDict
	}
	for _, n := range names {
		if !strings.HasPrefix(n, nestedPrefix) {
			return StateDict
		}
	}
	return NestedStateDict
}

// VerifyChecksum compares the SHA-256 of the file at path with want (hex).
func VerifyChecksum(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash model: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, strings.TrimSpace(want)) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, want)
	}
	return nil
}
