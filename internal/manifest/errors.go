package manifest

import (
	"errors"
	"fmt"
)

// Validation failure kinds. Match with errors.Is.
var (
	ErrNoPlatforms          = errors.New("no platforms declared")
	ErrUnnamedPlatform      = errors.New("platform identifier is empty")
	ErrDuplicatePlatform    = errors.New("platform declared more than once")
	ErrAmbiguousDependency  = errors.New("dependency must reference exactly one of a hangar project or a url")
	ErrMissingArtifact      = errors.New("platform has neither a file nor a url")
	ErrConflictingArtifact  = errors.New("platform has both a file and a url")
	ErrArtifactUnresolvable = errors.New("artifact path cannot be resolved")
	ErrEmptyPlatformGroup   = errors.New("file group has no platforms")
)

// ValidationError reports invalid publication input. Subject is the
// dependency or platform at fault.
type ValidationError struct {
	Kind    error
	Subject string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Kind.Error()
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s", e.Subject, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind
}
