package model

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/agri-assist/internal/network"
)

var (
	ortMu          sync.Mutex
	ortInitialized bool
)

func initRuntime(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortInitialized {
		return nil
	}
	if libPath == "" {
		libPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	if libPath != "" {
		log.Printf("Using ONNX Runtime library: %s", libPath)
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	ortInitialized = true
	return nil
}

func shutdownRuntime() {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ortInitialized {
		ort.DestroyEnvironment()
		ortInitialized = false
	}
}

// onnxNetwork runs a full-model artifact through ONNX Runtime with
// preallocated input and output tensors.
type onnxNetwork struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	device       Device
}

func readMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return meta, nil
}

// withDefaults fills the ResNet9 input/output layout for fields the sidecar
// leaves out.
func (m Metadata) withDefaults(numClasses int) Metadata {
	if m.ImageSize == 0 {
		m.ImageSize = nativeImageSize
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, 3, int64(m.ImageSize), int64(m.ImageSize)}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(numClasses)}
	}
	return m
}

func newONNXNetwork(modelPath string, meta Metadata, device Device, libPath string) (*onnxNetwork, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, err
	}

	inputName, outputName := meta.InputName, meta.OutputName
	if inputName == "" || outputName == "" {
		inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read model inputs: %w", err)
		}
		if len(inputs) != 1 || len(outputs) != 1 {
			return nil, fmt.Errorf("model has %d inputs and %d outputs, want 1 and 1", len(inputs), len(outputs))
		}
		inputName, outputName = inputs[0].Name, outputs[0].Name
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	selected := DeviceCPU
	if device == DeviceAuto || device == DeviceCUDA {
		if err := appendCUDA(options); err != nil {
			if device == DeviceCUDA {
				inputTensor.Destroy()
				outputTensor.Destroy()
				return nil, fmt.Errorf("CUDA requested but unavailable: %w", err)
			}
			log.Printf("CUDA not available, using CPU: %v", err)
		} else {
			selected = DeviceCUDA
		}
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxNetwork{
		session:      session,
		metadata:     meta,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		device:       selected,
	}, nil
}

func appendCUDA(options *ort.SessionOptions) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return err
	}
	defer cuda.Destroy()
	return options.AppendExecutionProviderCUDA(cuda)
}

func (s *onnxNetwork) Forward(input *network.Tensor) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrClosed
	}

	dst := s.inputTensor.GetData()
	if len(input.Data) != len(dst) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input.Data), len(dst))
	}
	copy(dst, input.Data)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.outputTensor.GetData()
	logits := make([]float32, len(out))
	copy(logits, out)
	return logits, nil
}

func (s *onnxNetwork) ImageSize() int { return s.metadata.ImageSize }

func (s *onnxNetwork) Device() Device { return s.device }

func (s *onnxNetwork) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	s.inputTensor.Destroy()
	s.outputTensor.Destroy()
	s.session.Destroy()
	s.inputTensor, s.outputTensor, s.session = nil, nil, nil
	shutdownRuntime()
	return nil
}
