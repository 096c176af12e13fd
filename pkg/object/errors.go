package object

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound means the id is in no pack index and has no loose file.
	ErrObjectNotFound = errors.New("object not found")
	// ErrCorruptObject means stored data for the id could not be decoded or its
	// delta chain could not be resolved.
	ErrCorruptObject = errors.New("corrupt object")
)

// ObjectError reports a failed lookup of one object id.
type ObjectError struct {
	ID  Hash
	Op  string
	Err error
}

func (e *ObjectError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("object %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *ObjectError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func notFound(op string, id Hash) error {
	return &ObjectError{ID: id, Op: op, Err: ErrObjectNotFound}
}

func corrupt(op string, id Hash, format string, args ...any) error {
	return &ObjectError{ID: id, Op: op, Err: fmt.Errorf("%w: %s", ErrCorruptObject, fmt.Sprintf(format, args...))}
}
