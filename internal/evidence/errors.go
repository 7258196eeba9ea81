// Package evidence locates the site photos that are sent to the inference
// backends. Stores are either a local directory or a GCS bucket prefix.
package evidence

import "fmt"

// NotFoundError reports a missing evidence root. It is fatal to a run.
type NotFoundError struct {
	Root  string
	Cause error
}

func (e *NotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evidence root not found: %s: %v", e.Root, e.Cause)
	}
	return fmt.Sprintf("evidence root not found: %s", e.Root)
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}
