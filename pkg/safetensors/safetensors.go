// Package safetensors reads and writes the safetensors tensor container:
// an 8-byte little-endian header length, a JSON header mapping tensor names
// to {dtype, shape, data_offsets}, and a single raw data buffer.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/x448/float16"
)

const maxHeaderSize = 100 * 1024 * 1024

// Tensor is a named weight decoded to float32, row-major.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NumElements returns the product of the tensor's dimensions.
func (t *Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ShapeEquals reports whether the tensor has exactly the given shape.
func (t *Tensor) ShapeEquals(shape []int) bool {
	if len(t.Shape) != len(shape) {
		return false
	}
	for i, d := range t.Shape {
		if d != shape[i] {
			return false
		}
	}
	return true
}

type headerEntry struct {
	Dtype       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets [2]uint64 `json:"data_offsets"`
}

// Load reads every tensor in the file at path. F32 and F16 payloads are
// supported; F16 values are widened to float32.
func Load(path string) (map[string]*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open safetensors file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes a safetensors stream.
func Read(r io.Reader) (map[string]*Tensor, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("failed to read header length: %w", err)
	}
	if headerLen == 0 || headerLen > maxHeaderSize {
		return nil, fmt.Errorf("invalid safetensors header length: %d", headerLen)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	entries := make(map[string]headerEntry, len(header))
	var bufSize uint64
	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}

		var entry headerEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("invalid header entry for %q: %w", name, err)
		}
		if entry.DataOffsets[1] < entry.DataOffsets[0] {
			return nil, fmt.Errorf("invalid data offsets for %q", name)
		}
		if entry.DataOffsets[1] > bufSize {
			bufSize = entry.DataOffsets[1]
		}
		entries[name] = entry
	}

	buf := make([]byte, bufSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	tensors := make(map[string]*Tensor, len(entries))
	for name, entry := range entries {
		data, err := decode(entry, buf)
		if err != nil {
			return nil, fmt.Errorf("failed to decode tensor %q: %w", name, err)
		}
		tensors[name] = &Tensor{Shape: entry.Shape, Data: data}
	}

	return tensors, nil
}

func decode(entry headerEntry, buf []byte) ([]float32, error) {
	raw := buf[entry.DataOffsets[0]:entry.DataOffsets[1]]

	numel := 1
	for _, d := range entry.Shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension %d", d)
		}
		numel *= d
	}

	switch entry.Dtype {
	case "F32":
		if len(raw) != numel*4 {
			return nil, fmt.Errorf("F32 payload is %d bytes, want %d", len(raw), numel*4)
		}
		data := make([]float32, numel)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return data, nil
	case "F16":
		if len(raw) != numel*2 {
			return nil, fmt.Errorf("F16 payload is %d bytes, want %d", len(raw), numel*2)
		}
		data := make([]float32, numel)
		for i := range data {
			data[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", entry.Dtype)
	}
}

// Save writes tensors to path as F32, with names in sorted order so the
// output is deterministic.
func Save(path string, tensors map[string]*Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]headerEntry, len(tensors))
	var offset uint64
	for _, name := range names {
		t := tensors[name]
		size := uint64(t.NumElements()) * 4
		header[name] = headerEntry{
			Dtype:       "F32",
			Shape:       t.Shape,
			DataOffsets: [2]uint64{offset, offset + size},
		}
		offset += size
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create safetensors file: %w", err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return err
	}
	if _, err := f.Write(headerBytes); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := f.Write(buf); err != nil {
				return err
			}
		}
	}

	return nil
}
