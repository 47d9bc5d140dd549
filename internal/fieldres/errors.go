package fieldres

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessorNotFound means an object source does not expose the accessor
	// derived from the field descriptor. The descriptor and the object shape
	// have diverged; this is a configuration error.
	ErrAccessorNotFound = errors.New("fieldres: accessor not found")

	// ErrAccessorFailed means the accessor exists but failed when invoked.
	ErrAccessorFailed = errors.New("fieldres: accessor failed")
)

// AccessorError reports an accessor problem on an object source.
type AccessorError struct {
	Accessor   string
	SourceType string
	// Kind is ErrAccessorNotFound or ErrAccessorFailed.
	Kind error
	// Err is the failure raised by the accessor, if any.
	Err error
}

func (e *AccessorError) Error() string {
	if errors.Is(e.Kind, ErrAccessorNotFound) {
		return fmt.Sprintf("fieldres: method '%s' which was expected on '%s' does not exist", e.Accessor, e.SourceType)
	}
	return fmt.Sprintf("fieldres: failed to invoke method '%s' on '%s': %v", e.Accessor, e.SourceType, e.Err)
}

func (e *AccessorError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
