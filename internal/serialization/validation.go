package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxDataSize      = 1 << 32           // 4GB - maximum data section size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxBranchCount   = 10_000            // Maximum number of branches in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default, recommended for production).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal performs basic validation checks only.
	ValidationNormal
	// ValidationNone skips validation (dangerous! Use only with trusted input).
	ValidationNone
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}

		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects names that are too long or carry path-like patterns.
func ValidateTensorName(name string) error {
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}

	if name == "" {
		return &ValidationError{
			Type:    "invalid_name",
			Details: "empty tensor name",
		}
	}

	if strings.Contains(name, "..") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains '..' (path traversal attempt)",
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator (/ or \\)",
		}
	}

	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains null byte",
		}
	}

	return nil
}

// ValidateBranches checks that every branch record has a kind and that it
// only references tensors present in the header.
func ValidateBranches(h *Header) error {
	if len(h.Branches) > MaxBranchCount {
		return &ValidationError{
			Type:    "too_many_branches",
			Details: fmt.Sprintf("got %d, max %d", len(h.Branches), MaxBranchCount),
		}
	}

	known := make(map[string]struct{}, len(h.Tensors))
	for _, t := range h.Tensors {
		if _, dup := known[t.Name]; dup {
			return &ValidationError{
				Type:    "duplicate_tensor",
				Tensor:  t.Name,
				Details: "tensor listed more than once",
			}
		}
		known[t.Name] = struct{}{}
	}

	for i, b := range h.Branches {
		if b.Kind == "" {
			return &ValidationError{
				Type:    "invalid_branch",
				Details: fmt.Sprintf("branch %d has no kind", i),
			}
		}
		prefix := BranchTensorPrefix(i)
		for _, name := range b.Tensors {
			if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
				return &ValidationError{
					Type:    "invalid_branch",
					Tensor:  name,
					Details: fmt.Sprintf("branch %d tensors must be named %s<name>", i, prefix),
				}
			}
			if _, ok := known[name]; !ok {
				return &ValidationError{
					Type:    "missing_tensor",
					Tensor:  name,
					Details: fmt.Sprintf("referenced by branch %d (%s)", i, b.Kind),
				}
			}
		}
	}

	if h.Weights != "" {
		if _, ok := known[h.Weights]; !ok {
			return &ValidationError{
				Type:    "missing_tensor",
				Tensor:  h.Weights,
				Details: "referenced as layer weights",
			}
		}
	}

	return nil
}

// ValidateHeader performs comprehensive header validation.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
	}

	if err := ValidateBranches(h); err != nil {
		return err
	}

	// Offsets only in strict mode.
	if level == ValidationStrict {
		if err := ValidateTensorOffsets(h.Tensors, dataSize); err != nil {
			return err
		}
	}

	return nil
}
