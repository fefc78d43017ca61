package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies planning failures. All of them are fatal and
// detected before any InstallStep is returned: the planner never yields
// a partially valid plan.
type ErrorKind string

const (
	// KindConfiguration marks contradictory or missing parameters.
	KindConfiguration ErrorKind = "configuration"

	// KindVersionParse marks a malformed version spec that was needed
	// for a required comparison.
	KindVersionParse ErrorKind = "version_parse"

	// KindUnknownFramework marks a rule referencing a framework absent
	// from the configuration surface.
	KindUnknownFramework ErrorKind = "unknown_framework"

	// KindInternal marks invariant violations inside the planner.
	KindInternal ErrorKind = "internal"
)

// PlanError is a classified planning error with optional subject context.
type PlanError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Subject is the configuration field, framework or step at fault.
	Subject string `json:"subject,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("[%s] %s (subject=%s)%s", e.Kind, e.Message, e.Subject, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%s] %s%s", e.Kind, e.Message, e.unwrapSuffix())
}

func (e *PlanError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Unwrap returns the underlying error for chain inspection.
func (e *PlanError) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can test classifications with errors.Is.
func (e *PlanError) Is(target error) bool {
	t, ok := target.(*PlanError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithSubject attaches subject context to the error.
func (e *PlanError) WithSubject(subject string) *PlanError {
	e.Subject = subject
	return e
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string, err error) *PlanError {
	return &PlanError{Kind: KindConfiguration, Message: message, Err: err}
}

// NewVersionParseError creates a version-parse error.
func NewVersionParseError(message string, err error) *PlanError {
	return &PlanError{Kind: KindVersionParse, Message: message, Err: err}
}

// NewUnknownFrameworkError creates an unknown-framework error.
func NewUnknownFrameworkError(message string, err error) *PlanError {
	return &PlanError{Kind: KindUnknownFramework, Message: message, Err: err}
}

// NewInternalError creates an internal invariant error.
func NewInternalError(message string, err error) *PlanError {
	return &PlanError{Kind: KindInternal, Message: message, Err: err}
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return kindOf(err) == KindConfiguration
}

// IsVersionParseError reports whether err is a version-parse error.
func IsVersionParseError(err error) bool {
	return kindOf(err) == KindVersionParse
}

// IsUnknownFrameworkError reports whether err is an unknown-framework error.
func IsUnknownFrameworkError(err error) bool {
	return kindOf(err) == KindUnknownFramework
}

func kindOf(err error) ErrorKind {
	var e *PlanError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
