package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentType is the closed vocabulary of issuable documents
type DocumentType string

const (
	DocumentTypeQuote       DocumentType = "quote"
	DocumentTypeWorkOrder   DocumentType = "work_order"
	DocumentTypeDealInvoice DocumentType = "deal_invoice"
	DocumentTypeReceipt     DocumentType = "receipt"
	DocumentTypeTaxInvoice  DocumentType = "tax_invoice"
	DocumentTypeCreditNote  DocumentType = "credit_note"
	DocumentTypeTransaction DocumentType = "transaction"
)

// AllDocumentTypes lists every document type in display order
var AllDocumentTypes = []DocumentType{
	DocumentTypeQuote,
	DocumentTypeWorkOrder,
	DocumentTypeDealInvoice,
	DocumentTypeReceipt,
	DocumentTypeTaxInvoice,
	DocumentTypeCreditNote,
	DocumentTypeTransaction,
}

var documentTypeLabels = map[DocumentType]string{
	DocumentTypeQuote:       "הצעת מחיר",
	DocumentTypeWorkOrder:   "הזמנת עבודה",
	DocumentTypeDealInvoice: "חשבונית עסקה",
	DocumentTypeReceipt:     "קבלה",
	DocumentTypeTaxInvoice:  "חשבונית מס",
	DocumentTypeCreditNote:  "זיכוי",
	DocumentTypeTransaction: "עסקה",
}

// documentTypeAliases maps accepted input spellings to canonical types
var documentTypeAliases = map[string]DocumentType{
	"credit":  DocumentTypeCreditNote,
	"invoice": DocumentTypeTaxInvoice,
}

// IsValid checks if the document type is part of the vocabulary
func (t DocumentType) IsValid() bool {
	_, ok := documentTypeLabels[t]
	return ok
}

// Label returns the Hebrew label printed on documents
func (t DocumentType) Label() string {
	return documentTypeLabels[t]
}

// ParseDocumentType resolves a caller-supplied type, including the legacy aliases
func ParseDocumentType(s string) (DocumentType, bool) {
	s = strings.TrimSpace(s)
	if t := DocumentType(s); t.IsValid() {
		return t, true
	}
	if t, ok := documentTypeAliases[s]; ok {
		return t, true
	}
	return "", false
}

// DocumentStatus is the lifecycle status of a document
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusSent      DocumentStatus = "sent"
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusPaid      DocumentStatus = "paid"
	DocumentStatusOverdue   DocumentStatus = "overdue"
	DocumentStatusCancelled DocumentStatus = "cancelled"
)

// IsValid checks if the status is part of the enum
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusSent, DocumentStatusPending,
		DocumentStatusPaid, DocumentStatusOverdue, DocumentStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave the status
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusPaid || s == DocumentStatusCancelled
}

var statusTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentStatusDraft:   {DocumentStatusSent, DocumentStatusCancelled},
	DocumentStatusSent:    {DocumentStatusPending, DocumentStatusCancelled},
	DocumentStatusPending: {DocumentStatusPaid, DocumentStatusOverdue, DocumentStatusCancelled},
	DocumentStatusOverdue: {DocumentStatusPaid, DocumentStatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the status state machine.
// Staying in the same status is always allowed.
func CanTransition(from, to DocumentStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InitialStatus returns the status a new document of the given type starts in
func InitialStatus(t DocumentType) DocumentStatus {
	switch t {
	case DocumentTypeReceipt, DocumentTypeCreditNote:
		return DocumentStatusPaid
	default:
		return DocumentStatusDraft
	}
}

const (
	// DocumentNumberWidth is the zero-padded width of sequential document numbers
	DocumentNumberWidth = 5
	// FirstDocumentNumber is issued to users with no documents and no configured start number
	FirstDocumentNumber = 10001
)

// FormatDocumentNumber renders a sequence value as a document number, e.g. 42 -> "00042"
func FormatDocumentNumber(n int) string {
	return fmt.Sprintf("%0*d", DocumentNumberWidth, n)
}

// ParseDocumentNumber parses a sequential document number.
// Numbers from the legacy year-prefixed scheme ("2024-007") are rejected.
func ParseDocumentNumber(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// NextDocumentNumber computes the next number from the last issued number (0 when none)
// and the user's watermark (0 when unset).
func NextDocumentNumber(last, watermark int) int {
	switch {
	case last > 0:
		if watermark > last {
			return watermark + 1
		}
		return last + 1
	case watermark > 0:
		return watermark
	default:
		return FirstDocumentNumber
	}
}

// AvailableDocumentTypes returns the types a business may issue.
// Exempt dealers (patur) cannot issue tax invoices.
func AvailableDocumentTypes(b BusinessType) []DocumentType {
	types := make([]DocumentType, 0, len(AllDocumentTypes))
	for _, t := range AllDocumentTypes {
		if IsDocumentTypeAllowed(b, t) {
			types = append(types, t)
		}
	}
	return types
}

// IsDocumentTypeAllowed reports whether the business type may issue the document type
func IsDocumentTypeAllowed(b BusinessType, t DocumentType) bool {
	if b == BusinessTypePatur && t == DocumentTypeTaxInvoice {
		return false
	}
	return true
}
