package safetensors

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []Tensor{
		FromFloat32("b.bias", []int{2}, []float32{0.5, -1}),
		FromFloat32("a.weight", []int{2, 2}, []float32{1, 2, 3, 4}),
	}, map[string]string{"format": "pt"})
	require.NoError(t, err)
	require.True(t, Sniff(buf.Bytes()))

	f, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.weight", "b.bias"}, f.Names())
	assert.Equal(t, "pt", f.Metadata["format"])

	w, ok := f.Tensor("a.weight")
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, w.Shape)
	vals, err := w.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, vals)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.safetensors")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(fh, []Tensor{FromFloat32("x", []int{1}, []float32{7})}, nil))
	require.NoError(t, fh.Close())

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
	assert.Nil(t, f.Metadata)
}

func TestHalfPrecision(t *testing.T) {
	half := []uint16{0x3C00, 0xC000, 0x0001, 0x7C00, 0x8000}
	data := make([]byte, 2*len(half))
	for i, h := range half {
		binary.LittleEndian.PutUint16(data[2*i:], h)
	}
	vals, err := Tensor{Name: "h", DType: F16, Shape: []int{5}, Data: data}.Float32s()
	require.NoError(t, err)
	assert.Equal(t, float32(1), vals[0])
	assert.Equal(t, float32(-2), vals[1])
	assert.Equal(t, float32(math.Ldexp(1, -24)), vals[2])
	assert.True(t, math.IsInf(float64(vals[3]), 1))
	assert.True(t, math.Signbit(float64(vals[4])))

	bf := make([]byte, 2)
	binary.LittleEndian.PutUint16(bf, 0x3F80)
	vals, err = Tensor{Name: "b", DType: BF16, Shape: []int{1}, Data: bf}.Float32s()
	require.NoError(t, err)
	assert.Equal(t, float32(1), vals[0])
}

func TestIntegerTensorNotFloat(t *testing.T) {
	_, err := Tensor{Name: "n", DType: I64, Shape: []int{}, Data: make([]byte, 8)}.Float32s()
	assert.Error(t, err)
}

func TestReadRejectsCorruptInput(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err, "short length prefix")

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], math.MaxUint32)
	_, err = Read(bytes.NewReader(lenBuf[:]))
	assert.Error(t, err, "oversized header")

	header := []byte(`{"x":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`)
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(header)))
	stream := append(append(lenBuf[:], header...), make([]byte, 8)...)
	_, err = Read(bytes.NewReader(stream))
	assert.Error(t, err, "offsets past end of data")

	header = []byte(`{"x":{"dtype":"F32","shape":[3],"data_offsets":[0,8]}}`)
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(header)))
	stream = append(append(lenBuf[:], header...), make([]byte, 8)...)
	_, err = Read(bytes.NewReader(stream))
	assert.Error(t, err, "size disagrees with shape")
}

func TestSniff(t *testing.T) {
	assert.False(t, Sniff([]byte("\x08\x01\x12\x04onnx")))
	assert.False(t, Sniff(nil))
}

func TestWriteRejectsDuplicates(t *testing.T) {
	x := FromFloat32("x", []int{1}, []float32{1})
	assert.Error(t, Write(&bytes.Buffer{}, []Tensor{x, x}, nil))
}

func rawFile(header string, dataLen int) []byte {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(header)))
	return append(append(lenBuf[:], header...), make([]byte, dataLen)...)
}

func TestReadRejectsImpossibleShapes(t *testing.T) {
	for name, header := range map[string]string{
		// 2^32 * 2^32 wraps to 0 elements, matching an empty data range
		"overflow":     `{"w":{"dtype":"F32","shape":[4294967296,4294967296,1,1],"data_offsets":[0,0]}}`,
		"byte size":    `{"w":{"dtype":"F64","shape":[1152921504606846976,2],"data_offsets":[0,0]}}`,
		"negative":     `{"w":{"dtype":"F32","shape":[-1,-4],"data_offsets":[0,16]}}`,
		"negative dim": `{"w":{"dtype":"F32","shape":[-4],"data_offsets":[0,0]}}`,
	} {
		_, err := Read(bytes.NewReader(rawFile(header, 16)))
		assert.Error(t, err, name)
	}

	f, err := Read(bytes.NewReader(rawFile(`{"w":{"dtype":"F32","shape":[3,0],"data_offsets":[0,0]}}`, 0)))
	require.NoError(t, err)
	w, _ := f.Tensor("w")
	vals, err := w.Float32s()
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestNumElements(t *testing.T) {
	n, err := Tensor{Shape: []int{2, 3, 4}}.NumElements()
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = Tensor{Shape: []int{}}.NumElements()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = Tensor{Shape: []int{1 << 32, 1 << 32}}.NumElements()
	assert.Error(t, err)
	_, err = Tensor{Shape: []int{2, -3}}.NumElements()
	assert.Error(t, err)
	_, err = Tensor{Shape: []int{0, -3}}.NumElements()
	assert.Error(t, err)
}

func TestFloat32sChecksDataLength(t *testing.T) {
	_, err := Tensor{Name: "w", DType: F32, Shape: []int{4}, Data: make([]byte, 8)}.Float32s()
	assert.Error(t, err)
}
