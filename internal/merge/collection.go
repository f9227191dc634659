package merge

import (
	"reflect"

	"github.com/pkg/errors"
)

// Collection is an ordered sequence of branch handles with a fixed
// ownership mode.
//
// An owning collection releases every handle exactly once when cleared.
// A borrowing collection only drops its references.
type Collection struct {
	branches []Branch
	owning   bool
}

// NewCollection creates an empty collection.
func NewCollection(owning bool) *Collection {
	return &Collection{owning: owning}
}

// Owning reports whether the collection releases its branches.
func (c *Collection) Owning() bool {
	return c.owning
}

// Append adds b at the end of the collection.
//
// An owning collection refuses a handle it already holds, since releasing
// it twice would break the exactly-once guarantee.
func (c *Collection) Append(b Branch) error {
	if b == nil {
		return ErrNilBranch
	}
	if c.owning {
		for i, held := range c.branches {
			if sameHandle(held, b) {
				return errors.Wrapf(ErrDuplicateBranch, "already at index %d", i)
			}
		}
	}
	c.branches = append(c.branches, b)
	return nil
}

// Len returns the number of branches.
func (c *Collection) Len() int {
	return len(c.branches)
}

// At returns the branch at index i.
//
// Panics if index is out of bounds.
func (c *Collection) At(i int) Branch {
	if i < 0 || i >= len(c.branches) {
		panic("Collection.At: index out of bounds")
	}
	return c.branches[i]
}

// Branches returns a copy of the handle slice.
func (c *Collection) Branches() []Branch {
	out := make([]Branch, len(c.branches))
	copy(out, c.branches)
	return out
}

// Each calls fn for every branch in order and stops at the first error.
func (c *Collection) Each(fn func(i int, b Branch) error) error {
	for i, b := range c.branches {
		if err := fn(i, b); err != nil {
			return err
		}
	}
	return nil
}

// Clear empties the collection, releasing every branch if it is owning.
// Calling Clear again is a no-op.
func (c *Collection) Clear() {
	c.ClearExcept(nil)
}

// ClearExcept empties the collection like Clear, but never releases a
// branch that keep also holds. It is used when keep replaces c and may
// share handles with it.
func (c *Collection) ClearExcept(keep *Collection) {
	branches := c.branches
	c.branches = nil
	if !c.owning {
		return
	}
	for _, b := range branches {
		if keep != nil && keep.contains(b) {
			continue
		}
		b.Release()
	}
}

// contains reports whether b is held by c.
func (c *Collection) contains(b Branch) bool {
	for _, held := range c.branches {
		if sameHandle(held, b) {
			return true
		}
	}
	return false
}

// Detach empties the collection and returns the handles without releasing
// them. The caller becomes responsible for them.
func (c *Collection) Detach() []Branch {
	branches := c.branches
	c.branches = nil
	return branches
}

// Clone copies the collection according to its ownership mode: an owning
// collection deep-clones every branch, a borrowing one shares the handles.
func (c *Collection) Clone() (*Collection, error) {
	out := &Collection{owning: c.owning}
	if !c.owning {
		out.branches = c.Branches()
		return out, nil
	}

	out.branches = make([]Branch, 0, len(c.branches))
	for i, b := range c.branches {
		cloner, ok := b.(Cloner)
		if !ok {
			out.Clear()
			return nil, errors.Wrapf(ErrNotCloneable, "branch %d (%T)", i, b)
		}
		out.branches = append(out.branches, cloner.Clone())
	}
	return out, nil
}

// sameHandle reports whether a and b are the same handle. Non-comparable
// dynamic types are never considered equal.
func sameHandle(a, b Branch) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
