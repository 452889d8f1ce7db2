package ir

import "fmt"

// InvariantViolationError reports a broken core invariant: an unknown
// tag, a re-registration with a conflicting mapping, or a reference
// that crosses arena boundaries. It is fatal — callers should treat it
// as a programming error in the pass that raised it rather than
// something to retry.
type InvariantViolationError struct {
	Tag     Tag
	Message string
}

func (e *InvariantViolationError) Error() string {
	if e.Tag == TagInvalid {
		return fmt.Sprintf("ir: invariant violated: %s", e.Message)
	}
	return fmt.Sprintf("ir: invariant violated on %s: %s", e.Tag, e.Message)
}
