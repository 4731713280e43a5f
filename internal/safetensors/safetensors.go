// Package safetensors reads and writes the safetensors container: an 8-byte
// little-endian header length, a JSON header describing each tensor, then the
// raw tensor bytes.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// MaxHeaderSize bounds the JSON header so a corrupt length cannot force a
// huge allocation.
const MaxHeaderSize = 100 << 20

const metadataKey = "__metadata__"

// DType is a tensor element type as spelled in the header.
type DType string

const (
	F64  DType = "F64"
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
	I64  DType = "I64"
	I32  DType = "I32"
	U8   DType = "U8"
)

func (d DType) size() (int, error) {
	switch d {
	case F64, I64:
		return 8, nil
	case F32, I32:
		return 4, nil
	case F16, BF16:
		return 2, nil
	case U8:
		return 1, nil
	}
	return 0, fmt.Errorf("unsupported dtype %q", d)
}

// Tensor is one named entry of a safetensors file.
type Tensor struct {
	Name  string
	DType DType
	Shape []int
	Data  []byte
}

// NumElements returns the product of the shape. Negative dimensions and
// products that overflow int are errors.
func (t Tensor) NumElements() (int, error) {
	empty := false
	for _, d := range t.Shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor %s: negative dimension in shape %v", t.Name, t.Shape)
		}
		empty = empty || d == 0
	}
	if empty {
		return 0, nil
	}
	n := 1
	for _, d := range t.Shape {
		if n > math.MaxInt/d {
			return 0, fmt.Errorf("tensor %s: shape %v overflows", t.Name, t.Shape)
		}
		n *= d
	}
	return n, nil
}

// byteSize is NumElements times the dtype width.
func (t Tensor) byteSize() (int, error) {
	size, err := t.DType.size()
	if err != nil {
		return 0, fmt.Errorf("tensor %s: %w", t.Name, err)
	}
	n, err := t.NumElements()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt/size {
		return 0, fmt.Errorf("tensor %s: shape %v overflows", t.Name, t.Shape)
	}
	return n * size, nil
}

// Float32s decodes the tensor as float32 values. Floating point dtypes are
// converted; integer dtypes are rejected.
func (t Tensor) Float32s() ([]float32, error) {
	switch t.DType {
	case F32, F64, F16, BF16:
	default:
		return nil, fmt.Errorf("tensor %s: cannot read dtype %s as float32", t.Name, t.DType)
	}
	want, err := t.byteSize()
	if err != nil {
		return nil, err
	}
	if len(t.Data) != want {
		return nil, fmt.Errorf("tensor %s: %d bytes for shape %v of %s, want %d", t.Name, len(t.Data), t.Shape, t.DType, want)
	}
	n, _ := t.NumElements()
	out := make([]float32, n)
	switch t.DType {
	case F32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:]))
		}
	case F64:
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(t.Data[8*i:])))
		}
	case BF16:
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(t.Data[2*i:])) << 16)
		}
	case F16:
		for i := range out {
			out[i] = halfToFloat32(binary.LittleEndian.Uint16(t.Data[2*i:]))
		}
	}
	return out, nil
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff
	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		for frac&0x400 == 0 {
			frac <<= 1
			exp--
		}
		exp++
		frac &= 0x3ff
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
}

// File is a fully loaded safetensors container.
type File struct {
	Metadata map[string]string
	tensors  map[string]Tensor
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.tensors))
	for n := range f.tensors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Tensor looks up a tensor by name.
func (f *File) Tensor(name string) (Tensor, bool) {
	t, ok := f.tensors[name]
	return t, ok
}

// Len returns the number of tensors.
func (f *File) Len() int { return len(f.tensors) }

type headerEntry struct {
	DType       DType  `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// Sniff reports whether prefix looks like the start of a safetensors file.
// At least 9 bytes are needed.
func Sniff(prefix []byte) bool {
	if len(prefix) < 9 {
		return false
	}
	n := binary.LittleEndian.Uint64(prefix[:8])
	return n > 1 && n <= MaxHeaderSize && prefix[8] == '{'
}

// Open reads the file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a safetensors stream.
func Read(r io.Reader) (*File, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read header length: %w", err)
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if n == 0 || n > MaxHeaderSize {
		return nil, fmt.Errorf("invalid header length %d", n)
	}
	header := make([]byte, n)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	file := &File{tensors: make(map[string]Tensor, len(raw))}
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &file.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		var e headerEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		t := Tensor{Name: name, DType: e.DType, Shape: e.Shape}
		want, err := t.byteSize()
		if err != nil {
			return nil, err
		}
		begin, end := e.DataOffsets[0], e.DataOffsets[1]
		if begin < 0 || end < begin || end > len(data) {
			return nil, fmt.Errorf("tensor %s: offsets [%d,%d) outside data of %d bytes", name, begin, end, len(data))
		}
		if end-begin != want {
			return nil, fmt.Errorf("tensor %s: %d bytes for shape %v of %s, want %d", name, end-begin, e.Shape, e.DType, want)
		}
		t.Data = data[begin:end]
		file.tensors[name] = t
	}
	return file, nil
}

// FromFloat32 builds an F32 tensor.
func FromFloat32(name string, shape []int, values []float32) Tensor {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return Tensor{Name: name, DType: F32, Shape: shape, Data: data}
}

// Write serializes tensors and metadata. Tensors are laid out in name order.
func Write(w io.Writer, tensors []Tensor, metadata map[string]string) error {
	sorted := make([]Tensor, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	offset := 0
	for _, t := range sorted {
		if t.Name == metadataKey {
			return fmt.Errorf("tensor name %q is reserved", metadataKey)
		}
		if _, dup := header[t.Name]; dup {
			return fmt.Errorf("duplicate tensor %s", t.Name)
		}
		shape := t.Shape
		if shape == nil {
			shape = []int{}
		}
		header[t.Name] = headerEntry{DType: t.DType, Shape: shape, DataOffsets: [2]int{offset, offset + len(t.Data)}}
		offset += len(t.Data)
	}
	hb, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	// pad with spaces to an 8-byte boundary
	if pad := len(hb) % 8; pad != 0 {
		hb = append(hb, bytes.Repeat([]byte{' '}, 8-pad)...)
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(hb)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(hb); err != nil {
		return err
	}
	for _, t := range sorted {
		if _, err := w.Write(t.Data); err != nil {
			return err
		}
	}
	return nil
}
