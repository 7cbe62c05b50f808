package fcs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrIO                 = errors.New("i/o error")
	ErrInvalidHeader      = errors.New("invalid header")
	ErrUnsupportedVersion = errors.New("unsupported FCS version")
	ErrInvalidText        = errors.New("invalid TEXT segment")
	ErrMissingKeyword     = errors.New("missing required keyword")
	ErrInvalidMetadata    = errors.New("invalid metadata")
	ErrInvalidData        = errors.New("invalid DATA segment")
	ErrColumnNotFound     = errors.New("column not found")

	// ErrTooLarge is returned when the input exceeds the configured file size
	// or event count limits.
	ErrTooLarge = errors.New("input too large")

	// ErrInvalidScale is returned by transforms given a non-positive or non-finite scale.
	ErrInvalidScale = errors.New("invalid scale")
)

// IOError reports a failure to open or read the underlying file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("fcs: %v", e.Err)
	}
	return fmt.Sprintf("fcs: %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// MissingKeywordError reports a mandatory TEXT keyword that is absent.
type MissingKeywordError struct {
	Keyword string
}

func (e *MissingKeywordError) Error() string {
	return fmt.Sprintf("missing required keyword %s", e.Keyword)
}

func (e *MissingKeywordError) Is(target error) bool { return target == ErrMissingKeyword }

// ColumnNotFoundError reports a column name unknown to a FlowSample.
type ColumnNotFoundError struct {
	Name string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found", e.Name)
}

func (e *ColumnNotFoundError) Is(target error) bool { return target == ErrColumnNotFound }
