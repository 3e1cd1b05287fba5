// Package simerr defines the error taxonomy shared by the simulation packages.
package simerr

import "fmt"

// Category classifies a simulation failure.
type Category string

const (
	// Validation covers bad constructor arguments, genetics values outside
	// their trait domain and references to traits the schema does not define.
	Validation Category = "validation"

	// Configuration covers programmer errors such as an unrecognized terrain
	// segment handed to the physics update.
	Configuration Category = "configuration"
)

// Error is a categorized simulation error.
type Error struct {
	Category Category
	Subject  string // field, trait or value the error is about
	Message  string
}

// Sentinels for errors.Is matching by category.
var (
	ErrValidation    = &Error{Category: Validation}
	ErrConfiguration = &Error{Category: Configuration}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Category, e.Subject, e.Message)
}

// Is reports whether target is the category sentinel for e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Subject == "" && t.Message == "" && t.Category == e.Category
}

// Validationf builds a validation error about subject.
func Validationf(subject, format string, args ...any) *Error {
	return &Error{Category: Validation, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Configurationf builds a configuration error about subject.
func Configurationf(subject, format string, args ...any) *Error {
	return &Error{Category: Configuration, Subject: subject, Message: fmt.Sprintf(format, args...)}
}
