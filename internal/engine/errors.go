package engine

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput        = errors.New("no usable records")
	ErrInvalidThreshold  = errors.New("invalid threshold")
	ErrResourceExhausted = errors.New("input exceeds resource budget")
)

// Error carries the operation and input size of a failed detection pass.
type Error struct {
	Op      string
	Records int
	Runes   int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (records=%d runes=%d): %v", e.Op, e.Records, e.Runes, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
