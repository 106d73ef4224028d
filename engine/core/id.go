package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID identifies an execution or a task-run: a k-sortable KSUID string, so
// execution history sorts chronologically by ID without a separate
// timestamp column.
type ID string

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// NewID mints a fresh execution or task-run ID.
func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate new ID: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID mints a fresh ID, panicking on the (practically unreachable)
// random-source failure. Used at call sites that cannot propagate an error,
// such as building a failed-seed execution inline.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}
