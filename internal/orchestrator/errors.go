package orchestrator

import (
	"errors"
)

var (
	// ErrBusy reports a conversion request while another conversion runs.
	ErrBusy = errors.New("a conversion is already in progress")
	// ErrMissingPath reports an empty input or output path.
	ErrMissingPath = &pathError{msg: "input and output paths are required"}
	// ErrOutputIsInput reports a conversion that would overwrite its input.
	ErrOutputIsInput = &pathError{msg: "output path is the same as the input"}
	// ErrNotRunning reports a request before Start or after Stop.
	ErrNotRunning = errors.New("orchestrator is not running")
	// ErrQueueFull reports that the task queue has no free slot.
	ErrQueueFull = errors.New("task queue is full")
)

type pathError struct {
	msg string
}

func (e *pathError) Error() string { return e.msg }

func (e *pathError) ErrorKind() string { return KindValidation }

// Failure kinds reported by FailureKind.
const (
	KindProvisioning = "provisioning"
	KindProbe        = "probe"
	KindConversion   = "conversion"
	KindValidation   = "validation"
	KindBusy         = "busy"
	KindUnknown      = "unknown"
)

// ErrorClassifier is implemented by errors that carry a failure kind.
type ErrorClassifier interface {
	ErrorKind() string
}

// FailureKind maps err to one of the Kind constants. A nil error yields "".
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrBusy) {
		return KindBusy
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return KindUnknown
}
