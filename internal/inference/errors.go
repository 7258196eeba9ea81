package inference

import (
	"fmt"

	"github.com/sells-group/forecourt/internal/model"
)

// UnsupportedFormatError is returned when an artifact's extension has no
// MIME mapping for the target backend.
type UnsupportedFormatError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported image format %q for %s", e.Ext, e.Name)
}

// InferenceError wraps any failure of a backend call, including timeouts.
type InferenceError struct {
	Backend model.Backend
	Cause   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Backend, e.Cause)
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}
