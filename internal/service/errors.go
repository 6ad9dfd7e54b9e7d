package service

import (
	"errors"
	"fmt"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned on a uniqueness violation, e.g. a duplicate document number
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the user may not perform an action
	ErrForbidden = errors.New("forbidden")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrClientNotFound is returned when a client does not exist for the user
	ErrClientNotFound = errors.New("client not found")

	// ErrServiceNotFound is returned when a catalog service does not exist for the user
	ErrServiceNotFound = errors.New("service not found")
)

// Document errors
var (
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidType is returned for a document type outside the vocabulary
	ErrInvalidType = errors.New("invalid document type")

	// ErrDocumentTypeNotAllowed is returned when the business type may not issue the document type
	ErrDocumentTypeNotAllowed = errors.New("document type not allowed for business type")

	// ErrEmptyDocument is returned when a non-credit document has no items
	ErrEmptyDocument = errors.New("document must have at least one item")

	// ErrInvalidItem is the root of every ItemError
	ErrInvalidItem = errors.New("invalid item")

	// ErrInvalidAmount is returned for a non-positive partial credit amount
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOriginalNotFound is returned when a credit note references a missing or foreign document
	ErrOriginalNotFound = errors.New("original document not found")

	// ErrInvalidOperation is returned for operations that make no sense on the target, e.g. crediting a credit note
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrAlreadyCancelled is returned when cancelling or crediting a cancelled document
	ErrAlreadyCancelled = errors.New("document already cancelled")

	// ErrImmutableDocument is returned for any mutation of a document that holds an allocation number
	ErrImmutableDocument = errors.New("document is immutable")

	// ErrInvalidStatus is returned for a status outside the enum
	ErrInvalidStatus = errors.New("invalid status")

	// ErrIllegalTransition is returned when strict transitions are on and the edge does not exist
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrCreditExceedsOriginal is returned when credits would exceed the original total
	ErrCreditExceedsOriginal = errors.New("credit total exceeds original document total")

	// ErrRenderingFailed is returned when the PDF could not be produced or stored in time
	ErrRenderingFailed = errors.New("document rendering failed")

	// ErrPDFNotAvailable is returned when a document has no stored PDF
	ErrPDFNotAvailable = errors.New("pdf not available")
)

// Allocation errors
var (
	ErrAllocationNotEligible       = errors.New("document is not eligible for an allocation number")
	ErrAllocationAlreadyRequested  = errors.New("allocation already requested for document")
	ErrAllocationNotFound          = errors.New("allocation request not found")
	ErrAllocationRequesterRejected = errors.New("allocation request rejected")
)

// Report errors
var (
	ErrUnknownReport = errors.New("unknown report type")
)

// ItemError identifies the offending line item. Index is 1-based.
// It matches ErrInvalidItem and its cause with errors.Is.
type ItemError struct {
	Index int
	Field string
	Err   error
}

func (e *ItemError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("item %d: invalid %s", e.Index, e.Field)
	}
	return fmt.Sprintf("item %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *ItemError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidItem}
	}
	return []error{ErrInvalidItem, e.Err}
}
