package merge

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrReleased             = errors.New("layer has been released")
	ErrNilBranch            = errors.New("nil branch")
	ErrNilTensor            = errors.New("nil tensor")
	ErrDuplicateBranch      = errors.New("branch already held by an owning collection")
	ErrNotCloneable         = errors.New("branch cannot be cloned")
	ErrNotPersistable       = errors.New("branch cannot be persisted")
	ErrUnknownKind          = errors.New("unknown branch kind")
	ErrDuplicateKind        = errors.New("branch kind already registered")
)

// ShapeMismatchError reports a branch whose output or delta does not match
// the shape of the first branch.
type ShapeMismatchError struct {
	Op       string // "forward" or "backward"
	Index    int    // Branch index in the collection
	WantRows int
	WantCols int
	GotRows  int
	GotCols  int
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: branch %d: shape mismatch: want %dx%d, got %dx%d",
		e.Op, e.Index, e.WantRows, e.WantCols, e.GotRows, e.GotCols)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}
