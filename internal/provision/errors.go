package provision

import (
	"errors"
	"strings"
)

// ErrEntryNotFound reports an archive without the requested entry.
var ErrEntryNotFound = errors.New("archive entry not found")

// Error reports that no usable transcoder executable could be located or
// extracted. Resource and Package carry the causes from the two extraction
// paths; Err carries any other cause.
type Error struct {
	Resource error
	Package  error
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var parts []string
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if e.Resource != nil {
		parts = append(parts, "resource archive: "+e.Resource.Error())
	}
	if e.Package != nil {
		parts = append(parts, "distributable package: "+e.Package.Error())
	}
	if len(parts) == 0 {
		return "provision transcoder: unknown failure"
	}
	return "provision transcoder: " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	var errs []error
	for _, err := range []error{e.Err, e.Resource, e.Package} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ErrorKind classifies the failure for callers that branch on error kinds.
func (e *Error) ErrorKind() string { return "provisioning" }
