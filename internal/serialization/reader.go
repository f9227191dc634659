package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ReaderOptions configures the behavior of Decode.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// DefaultReaderOptions returns options with checksum validation and strict header validation.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{ValidationLevel: ValidationStrict}
}

// Decode reads a complete .mmrg file from r.
func Decode(r io.Reader, opts ReaderOptions) (*File, error) {
	fixedHeader := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixedHeader); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixedHeader[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}

	file := &File{
		Version: binary.LittleEndian.Uint32(fixedHeader[4:8]),
		Flags:   binary.LittleEndian.Uint32(fixedHeader[8:12]),
	}
	if file.Version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, file.Version, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(fixedHeader[16:24])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[24:32])
	copy(file.Checksum[:], fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	if dataSize > MaxDataSize {
		return nil, &ValidationError{
			Type:    "out_of_bounds",
			Details: fmt.Sprintf("data size %d exceeds max %d", dataSize, uint64(MaxDataSize)),
		}
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &file.Header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: headerSize checked against MaxHeaderSize above
	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), file.Checksum); err != nil {
			return nil, err
		}
	}

	//nolint:gosec // G115: dataSize checked against MaxDataSize above
	if err := ValidateHeader(&file.Header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	file.Tensors = make(map[string]*mat.Dense, len(file.Header.Tensors))
	for _, meta := range file.Header.Tensors {
		t, err := decodeDense(meta, data)
		if err != nil {
			return nil, err
		}
		file.Tensors[meta.Name] = t
	}

	return file, nil
}

// DecodeFile reads a .mmrg file from path.
func DecodeFile(path string, opts ReaderOptions) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, opts)
}

// BranchTensors returns the tensors of branch i keyed by their short name,
// i.e. with the "branch.<i>." prefix removed. Names without that prefix
// belong to another branch and are skipped.
func (f *File) BranchTensors(i int) map[string]*mat.Dense {
	prefix := BranchTensorPrefix(i)
	out := make(map[string]*mat.Dense, len(f.Header.Branches[i].Tensors))
	for _, name := range f.Header.Branches[i].Tensors {
		if t, ok := f.Tensors[name]; ok && len(name) > len(prefix) && strings.HasPrefix(name, prefix) {
			out[name[len(prefix):]] = t
		}
	}
	return out
}

// BranchTensorPrefix is the name prefix of tensors belonging to branch i.
func BranchTensorPrefix(i int) string {
	return fmt.Sprintf("branch.%d.", i)
}

// decodeDense builds a matrix for meta from the data section.
func decodeDense(meta TensorMeta, data []byte) (*mat.Dense, error) {
	n, ok := numElements(meta.Shape)
	if len(meta.Shape) != 2 || !ok {
		return nil, &ValidationError{
			Type:    "invalid_shape",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("shape %v is not a positive [rows, cols] pair of at most %d elements", meta.Shape, maxElements),
		}
	}
	if n*ElementSize != meta.Size || meta.Offset < 0 || meta.Offset+meta.Size > int64(len(data)) {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", meta.Shape, n*ElementSize, meta.Size),
		}
	}

	values := make([]float64, n)
	raw := data[meta.Offset : meta.Offset+meta.Size]
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*ElementSize:]))
	}
	return mat.NewDense(meta.Shape[0], meta.Shape[1], values), nil
}
