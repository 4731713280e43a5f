package model

import (
	"fmt"
	"strings"

	"github.com/Brownie44l1/agri-assist/internal/network"
)

// Metadata describes a full-model artifact. It is read from the JSON sidecar
// next to the ONNX graph.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
}

// Device is the compute target.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ParseDevice accepts auto, cpu, or cuda (case-insensitive). Empty means auto.
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DeviceAuto, nil
	case DeviceAuto, DeviceCPU, DeviceCUDA:
		return d, nil
	}
	return "", fmt.Errorf("unknown device %q (want auto, cpu or cuda)", s)
}

// Network is a loaded classifier in inference mode.
type Network interface {
	// Forward runs one pass over a 1×3×S×S input, S = ImageSize, and
	// returns the raw class scores.
	Forward(input *network.Tensor) ([]float32, error)
	// ImageSize is the square input resolution.
	ImageSize() int
	// Device reports where inference runs.
	Device() Device
	Close() error
}
