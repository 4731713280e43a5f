package model

import (
	"fmt"
	"strings"

	"github.com/Brownie44l1/agri-assist/internal/network"
	"github.com/Brownie44l1/agri-assist/internal/safetensors"
)

// nativeImageSize is the resolution the ResNet9 weights were trained at.
const nativeImageSize = 256

// nativeNetwork runs weights-only artifacts on the in-process ResNet9.
type nativeNetwork struct {
	net *network.ResNet9
}

// newNativeNetwork builds a ResNet9 sized from the tensor shapes and loads
// the weights into it.
func newNativeNetwork(a *Artifact, numClasses int) (*nativeNetwork, error) {
	sd, err := toStateDict(a)
	if err != nil {
		return nil, err
	}

	shapes := make(map[string][]int, len(sd))
	for name, p := range sd {
		shapes[name] = p.Shape
	}
	cfg, err := network.InferConfig(shapes)
	if err != nil {
		return nil, fmt.Errorf("unrecognized weights layout: %w", err)
	}
	if cfg.InChannels != 3 {
		return nil, fmt.Errorf("weights expect %d input channels, want 3", cfg.InChannels)
	}
	if cfg.NumClasses != numClasses {
		return nil, fmt.Errorf("%w: weights produce %d classes, table has %d", ErrClassMismatch, cfg.NumClasses, numClasses)
	}

	net, err := network.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := net.LoadStateDict(sd); err != nil {
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}
	net.Eval()
	return &nativeNetwork{net: net}, nil
}

func toStateDict(a *Artifact) (network.StateDict, error) {
	sd := make(network.StateDict, a.Weights.Len())
	for _, name := range a.Weights.Names() {
		t, _ := a.Weights.Tensor(name)
		key := name
		if a.Kind == NestedStateDict {
			key = strings.TrimPrefix(name, nestedPrefix)
		}
		if strings.HasSuffix(key, ".num_batches_tracked") {
			continue
		}
		values, err := t.Float32s()
		if err != nil {
			return nil, err
		}
		sd[key] = network.Parameter{Shape: t.Shape, Values: values}
	}
	return sd, nil
}

// WriteStateDict serializes sd as a safetensors file, optionally nested under
// "state_dict." and carrying the class list in its metadata.
func WriteStateDict(path string, sd network.StateDict, labels []string, nested bool) error {
	tensors := make([]safetensors.Tensor, 0, len(sd))
	for name, p := range sd {
		if nested {
			name = nestedPrefix + name
		}
		tensors = append(tensors, safetensors.FromFloat32(name, p.Shape, p.Values))
	}
	meta := map[string]string{"format": "pt"}
	if labels != nil {
		enc, err := encodeClasses(labels)
		if err != nil {
			return err
		}
		meta[classesMetadataKey] = enc
	}
	return writeFile(path, tensors, meta)
}

func (n *nativeNetwork) Forward(input *network.Tensor) ([]float32, error) {
	if n.net == nil {
		return nil, ErrClosed
	}
	out, err := n.net.Forward(input)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (n *nativeNetwork) ImageSize() int { return nativeImageSize }

func (n *nativeNetwork) Device() Device { return DeviceCPU }

func (n *nativeNetwork) Close() error {
	n.net = nil
	return nil
}
