package serialization

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Format constants.
const (
	MagicBytes      = "MMRG"
	FormatVersion   = 2    // v2: fixed 64-byte header with SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	ElementSize     = 8    // float64
)

// Flags for the .mmrg format.
const (
	FlagHasMetadata uint32 = 1 << 0 // bit 0: custom metadata included
	FlagHasWeights  uint32 = 1 << 1 // bit 1: layer weight aggregate included
)

const producerVersion = "0.1.0"

// Header represents the JSON header in a .mmrg file.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the .mmrg format
	Producer      string            `json:"producer"`       // Version of the library that wrote the file
	LayerType     string            `json:"layer_type"`     // Layer type (e.g., "MultiplyMerge")
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	Model         bool              `json:"model"`          // Layer model flag
	Run           bool              `json:"run"`            // Layer run flag
	OwnsLayer     bool              `json:"owns_layer"`     // Layer ownership mode
	Weights       string            `json:"weights,omitempty"`
	Branches      []BranchMeta      `json:"branches"` // Branch records, collection order
	Tensors       []TensorMeta      `json:"tensors"`  // Tensor metadata
	Metadata      map[string]string `json:"metadata"` // Custom metadata
}

// BranchMeta describes one branch of the persisted collection.
type BranchMeta struct {
	Kind    string   `json:"kind"`    // Registered kind tag (e.g., "linear")
	Tensors []string `json:"tensors"` // Names of the tensors holding this branch's state
}

// TensorMeta describes a tensor in the .mmrg file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "branch.0.weight")
	Shape  []int  `json:"shape"`  // [rows, cols]
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// Tensor is a named matrix written to or read from the data section.
type Tensor struct {
	Name  string
	Value *mat.Dense
}

// File is a decoded .mmrg file.
type File struct {
	Version  uint32
	Flags    uint32
	Checksum [32]byte
	Header   Header
	Tensors  map[string]*mat.Dense
}

// maxElements is the largest element count a data section can hold.
const maxElements = MaxDataSize / ElementSize

// numElements returns rows*cols of a [rows, cols] shape. ok is false when a
// dimension is not positive or the count exceeds maxElements.
func numElements(shape []int) (n int64, ok bool) {
	n = 1
	for _, d := range shape {
		if d <= 0 || int64(d) > maxElements/n {
			return 0, false
		}
		n *= int64(d)
	}
	return n, true
}
