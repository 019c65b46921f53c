// Package coreerr defines the closed error taxonomy of the key-management
// core. Callers branch on stable codes, never on message text.
package coreerr

import (
	"errors"
	"fmt"
)

// Category groups codes by the kind of failure.
type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryKeyManagement Category = "key-management"
	CategoryFactor        Category = "factor"
	CategoryLifecycle     Category = "lifecycle"
)

// Code is a stable numeric error code. The thousands digit selects the
// category; codes are append-only.
type Code int

const (
	// Configuration.
	CodeInvalidClientID Code = 1001
	CodeInvalidKeyType  Code = 1002
	CodeInvalidOptions  Code = 1003

	// Key management.
	CodeMetadataUninitialized   Code = 2001
	CodeDuplicateTSSIndex       Code = 2002
	CodeServerDetailsMissing    Code = 2003
	CodeKeyImportNotAllowed     Code = 2004
	CodeAccountIndexUnsupported Code = 2005
	CodeEpochConflict           Code = 2006
	CodeReconstructionFailed    Code = 2007
	CodeRecoveryUnsupported     Code = 2008

	// Factor / authentication.
	CodeFactorKeyMissing           Code = 3001
	CodeFactorAlreadyExists        Code = 3002
	CodeCannotDeleteLastFactor     Code = 3003
	CodeFactorInUseCannotBeDeleted Code = 3004
	CodeInvalidRecoveryAnswer      Code = 3005
	CodeSignaturesMissing          Code = 3006
	CodeMaximumFactorsReached      Code = 3007
	CodeFactorNotFound             Code = 3008
	CodeInvalidShareType           Code = 3009

	// Lifecycle.
	CodeCommitRequired     Code = 4001
	CodeNotInitialized     Code = 4002
	CodeNotLoggedIn        Code = 4003
	CodeSessionInvalid     Code = 4004
	CodeAlreadyInitialized Code = 4005
)

// Category returns the category a code belongs to.
func (c Code) Category() Category {
	switch {
	case c < 2000:
		return CategoryConfiguration
	case c < 3000:
		return CategoryKeyManagement
	case c < 4000:
		return CategoryFactor
	default:
		return CategoryLifecycle
	}
}

// Error is a typed core error carrying a stable code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New returns a typed error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf returns a typed error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Code.Category(), e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code.Category(), e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors carrying the same code, enabling
// errors.Is(err, coreerr.New(code, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the code from err, if it carries one.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
