// Package errdefs holds the error classes shared by the record, range and
// service packages. Callers classify errors with errors.Is and errors.As.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every "no such record/range" error.
	ErrNotFound = errors.New("not found")
	// ErrConflict is wrapped by duplicate-key and overlap errors.
	ErrConflict = errors.New("conflict")
)

// Kind names the validation rule that was violated.
type Kind string

const (
	KindUnknownType       Kind = "UnknownType"
	KindCountOutOfRange   Kind = "CountOutOfRange"
	KindMalformedAddress  Kind = "MalformedAddress"
	KindInvalidWeight     Kind = "InvalidWeight"
	KindFamilyMismatch    Kind = "FamilyMismatch"
	KindInvalidRange      Kind = "InvalidRange"
	KindMissingTargetID   Kind = "MissingTargetID"
	KindDuplicateTargetID Kind = "DuplicateTargetID"
	KindInvalidFQDN       Kind = "InvalidFQDN"
	KindInvalidReport     Kind = "InvalidReport"
)

// ValidationError reports caller input that can be corrected and resubmitted.
// Subject is the offending target id, address or fqdn when there is one.
type ValidationError struct {
	Kind    Kind
	Subject string
	Detail  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Subject != "" && e.Detail != "":
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Subject, e.Detail)
	case e.Subject != "":
		return fmt.Sprintf("%s(%s)", e.Kind, e.Subject)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

// Invalid builds a ValidationError.
func Invalid(kind Kind, subject, detail string) error {
	return &ValidationError{Kind: kind, Subject: subject, Detail: detail}
}

// AsValidation unwraps err into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsValidation reports whether err carries a ValidationError of the given
// kind. An empty kind matches any validation error.
func IsValidation(err error, kind Kind) bool {
	ve, ok := AsValidation(err)
	if !ok {
		return false
	}
	return kind == "" || ve.Kind == kind
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
