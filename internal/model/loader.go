package model

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/agri-assist/internal/classes"
	"github.com/Brownie44l1/agri-assist/internal/safetensors"
)

// classesMetadataKey is the safetensors metadata entry holding the label
// list as a JSON array.
const classesMetadataKey = "classes"

// Options control how an artifact is loaded.
type Options struct {
	// Classes is the table the network's outputs index into.
	Classes classes.Table
	// Device selects the compute target. Zero value means auto.
	Device Device
	// SHA256, when set, pins the artifact's hex digest.
	SHA256 string
	// MetadataPath overrides the full-model sidecar location
	// (default: model path with a .json extension).
	MetadataPath string
	// SharedLibraryPath points at the ONNX Runtime library.
	SharedLibraryPath string
}

// Load opens the artifact at path and returns a network in inference mode.
// Artifacts are trusted local files: their content is used as-is unless a
// checksum is pinned.
func Load(path string, opts Options) (Network, error) {
	if opts.Classes.Len() == 0 {
		return nil, fmt.Errorf("no class table configured")
	}
	if opts.Device == "" {
		opts.Device = DeviceAuto
	}
	if opts.SHA256 != "" {
		if err := VerifyChecksum(path, opts.SHA256); err != nil {
			return nil, err
		}
	}

	a, err := Open(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Model artifact %s resolved as %s", path, a.Kind)

	switch a.Kind {
	case FullModel:
		return loadFullModel(a, opts)
	case StateDict, NestedStateDict:
		if opts.Device == DeviceCUDA {
			return nil, fmt.Errorf("CUDA requested but %s artifacts run on the CPU backend", a.Kind)
		}
		if err := checkClasses(opts.Classes, a.Weights.Metadata[classesMetadataKey], path); err != nil {
			return nil, err
		}
		return newNativeNetwork(a, opts.Classes.Len())
	}
	return nil, fmt.Errorf("unsupported artifact kind %s", a.Kind)
}

func loadFullModel(a *Artifact, opts Options) (Network, error) {
	metaPath := opts.MetadataPath
	if metaPath == "" {
		metaPath = strings.TrimSuffix(a.Path, filepath.Ext(a.Path)) + ".json"
	}
	meta, err := readMetadata(metaPath)
	if err != nil {
		return nil, err
	}
	if len(meta.Classes) == 0 {
		log.Printf("Warning: %s does not list classes; class ordering is unchecked", metaPath)
	} else if err := opts.Classes.Verify(meta.Classes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassMismatch, err)
	}
	meta = meta.withDefaults(opts.Classes.Len())
	if n := meta.OutputShape[len(meta.OutputShape)-1]; int(n) != opts.Classes.Len() {
		return nil, fmt.Errorf("%w: model produces %d classes, table has %d", ErrClassMismatch, n, opts.Classes.Len())
	}
	return newONNXNetwork(a.Path, meta, opts.Device, opts.SharedLibraryPath)
}

func checkClasses(table classes.Table, encoded, path string) error {
	if encoded == "" {
		log.Printf("Warning: %s does not embed its classes; class ordering is unchecked", path)
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(encoded), &labels); err != nil {
		return fmt.Errorf("invalid class metadata in %s: %w", path, err)
	}
	if err := table.Verify(labels); err != nil {
		return fmt.Errorf("%w: %v", ErrClassMismatch, err)
	}
	return nil
}

func encodeClasses(labels []string) (string, error) {
	b, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeFile(path string, tensors []safetensors.Tensor, meta map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := safetensors.Write(f, tensors, meta); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
