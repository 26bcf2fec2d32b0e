// Package kinderr classifies errors raised by the core into the taxonomy of
// kinds the façade maps to transport status codes. The core never imports
// an HTTP package; kinderr is the seam between the two.
package kinderr

import "errors"

// Kind identifies one class of failure from the error taxonomy.
type Kind string

const (
	KindInvalidID               Kind = "invalid-id"
	KindMissingRecord           Kind = "missing-record"
	KindDuplicateRecord         Kind = "duplicate-record"
	KindChildElementsExist      Kind = "child-elements-exist"
	KindLeafParent               Kind = "leaf-parent"
	KindInvalidAction            Kind = "invalid-action"
	KindDuplicatePropertyName     Kind = "duplicate-property-name"
	KindInvalidPropertyType      Kind = "invalid-property-type"
	KindMissingMandatoryProperty Kind = "missing-mandatory-property"
	KindWriteConflict            Kind = "write-conflict"
	KindDatabaseIntegrity        Kind = "database-integrity"
	KindObjectStorageAuth        Kind = "object-storage-auth"
	KindObjectStorageServer      Kind = "object-storage-server"
)

// kindError wraps an underlying cause with a classification kind.
type kindError struct {
	kind    Kind
	message string
	cause   error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *kindError) Unwrap() error {
	return e.cause
}

// New builds a kind-classified error with no wrapped cause.
func New(kind Kind, message string) error {
	return &kindError{kind: kind, message: message}
}

// Wrap builds a kind-classified error wrapping cause.
func Wrap(kind Kind, message string, cause error) error {
	return &kindError{kind: kind, message: message, cause: cause}
}

// KindOf extracts the Kind from err, walking the Unwrap chain. The second
// return value is false if no classified error is found anywhere in the
// chain.
func KindOf(err error) (Kind, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind, true
	}
	return "", false
}

// Is reports whether err (or something it wraps) carries kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
