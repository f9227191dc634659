package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Encode writes header and tensors to w in .mmrg format.
//
// Tensor offsets, flags, the producer version and the checksum are filled in
// here; callers only provide branch records, layer flags and metadata.
// Tensors are written in the given order.
func Encode(w io.Writer, header Header, tensors []Tensor) error {
	header.FormatVersion = FormatVersion
	header.Producer = producerVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Calculate tensor offsets and collect tensor data
	var currentOffset int64
	var dataBuf []byte
	header.Tensors = make([]TensorMeta, 0, len(tensors))
	seen := make(map[string]struct{}, len(tensors))

	for _, t := range tensors {
		if t.Value == nil || t.Value.IsEmpty() {
			return fmt.Errorf("tensor %s is empty", t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTensor, t.Name)
		}
		seen[t.Name] = struct{}{}

		rows, cols := t.Value.Dims()
		size := int64(rows * cols * ElementSize)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   t.Name,
			Shape:  []int{rows, cols},
			Offset: currentOffset,
			Size:   size,
		})
		currentOffset += size
		dataBuf = appendDense(dataBuf, t)
	}

	checksum := ComputeChecksum(dataBuf)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	headerSize := uint64(len(headerJSON))
	dataSize := uint64(len(dataBuf))

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Weights != "" {
		flags |= FlagHasWeights
	}

	fixedHeader := make([]byte, FixedHeaderSize)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	// 0x0C-0x0F: reserved
	binary.LittleEndian.PutUint64(fixedHeader[16:24], headerSize)
	binary.LittleEndian.PutUint64(fixedHeader[24:32], dataSize)
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize on read, conversion is safe
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(dataBuf); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}

	return nil
}

// EncodeFile writes a .mmrg file at path.
func EncodeFile(path string, header Header, tensors []Tensor) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := Encode(file, header, tensors); err != nil {
		_ = file.Close() // Best effort close on error
		return err
	}

	return file.Close()
}

// appendDense appends the row-major float64 contents of t to buf.
func appendDense(buf []byte, t Tensor) []byte {
	rows, cols := t.Value.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(t.Value.At(i, j)))
		}
	}
	return buf
}
