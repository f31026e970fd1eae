package quiz

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when the store holds no non-blank values.
	ErrNoData = errors.New("no quiz data available")
	// ErrInvalidSelection is returned for unknown stages, items or keys.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrWrongPhase is returned for operations the current phase does not accept.
	ErrWrongPhase = errors.New("operation not valid in current phase")
	// ErrReviewCooldown is returned while answers are disabled after a review.
	ErrReviewCooldown = errors.New("answers are disabled during review")
)

// CollaboratorError wraps a failure of the item store or results sink.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
