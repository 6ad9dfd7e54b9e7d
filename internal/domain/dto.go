package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// PaginatedResponse wraps a page of results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// ============================================================================
// Documents
// ============================================================================

// ItemInput is a caller-supplied line item. Quantity and UnitPrice are pointers so that
// missing values can be reported with the offending item index.
type ItemInput struct {
	Description string           `json:"description" validate:"max=1000"`
	Quantity    *int             `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	ServiceID   *uuid.UUID       `json:"serviceId,omitempty"`

	// MalformedField names quantity or unitPrice when the body carried a value of the wrong kind
	MalformedField string `json:"-"`
}

// UnmarshalJSON decodes an item without failing the whole body on a malformed quantity or
// unit price, so the builder can reject the item by index.
func (in *ItemInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string          `json:"description"`
		Quantity    json.RawMessage `json:"quantity"`
		UnitPrice   json.RawMessage `json:"unitPrice"`
		ServiceID   *uuid.UUID      `json:"serviceId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*in = ItemInput{Description: raw.Description, ServiceID: raw.ServiceID}

	if present(raw.Quantity) {
		var q int
		if err := json.Unmarshal(raw.Quantity, &q); err != nil {
			in.MalformedField = "quantity"
			return nil
		}
		in.Quantity = &q
	}
	if present(raw.UnitPrice) {
		var p decimal.Decimal
		if err := p.UnmarshalJSON(raw.UnitPrice); err != nil {
			in.MalformedField = "unitPrice"
			return nil
		}
		in.UnitPrice = &p
	}
	return nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// CreateDocumentRequest is the input of document creation.
// OriginalDocumentID switches a credit_note into credit mode; PartialAmount makes the credit partial.
type CreateDocumentRequest struct {
	DocumentType       string           `json:"documentType" validate:"required,max=30"`
	ClientID           *uuid.UUID       `json:"clientId,omitempty"`
	Items              []ItemInput      `json:"items" validate:"dive"`
	IssueDate          *time.Time       `json:"issueDate,omitempty"`
	DueDate            *time.Time       `json:"dueDate,omitempty"`
	Currency           string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	Notes              string           `json:"notes,omitempty" validate:"max=2000"`
	PaymentMethod      string           `json:"paymentMethod,omitempty" validate:"omitempty,oneof=cash card bit paybox bank other"`
	OriginalDocumentID *uuid.UUID       `json:"originalDocumentId,omitempty"`
	PartialAmount      *decimal.Decimal `json:"partialAmount,omitempty"`
	Reason             string           `json:"reason,omitempty" validate:"max=500"`
}

// CancelDocumentRequest cancels a document by issuing a credit note
type CancelDocumentRequest struct {
	Reason        string           `json:"reason,omitempty" validate:"max=500"`
	PartialAmount *decimal.Decimal `json:"partialAmount,omitempty"`
}

// UpdateDocumentStatusRequest sets a new status
type UpdateDocumentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// DocumentItemDTO is the API view of a line item
type DocumentItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ServiceID   *uuid.UUID      `json:"serviceId,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	SortOrder   int             `json:"sortOrder"`
}

// DocumentDTO is the API view of a document
type DocumentDTO struct {
	ID                 uuid.UUID         `json:"id"`
	DocumentNumber     string            `json:"documentNumber"`
	DocumentType       DocumentType      `json:"documentType"`
	DocumentTypeLabel  string            `json:"documentTypeLabel"`
	Status             DocumentStatus    `json:"status"`
	ClientID           *uuid.UUID        `json:"clientId,omitempty"`
	Client             *ClientDTO        `json:"client,omitempty"`
	IssueDate          time.Time         `json:"issueDate"`
	DueDate            *time.Time        `json:"dueDate,omitempty"`
	Subtotal           decimal.Decimal   `json:"subtotal"`
	VATRate            decimal.Decimal   `json:"vatRate"`
	VATAmount          decimal.Decimal   `json:"vatAmount"`
	TotalAmount        decimal.Decimal   `json:"totalAmount"`
	Currency           string            `json:"currency"`
	Notes              string            `json:"notes,omitempty"`
	PaymentMethod      PaymentMethod     `json:"paymentMethod"`
	HasPDF             bool              `json:"hasPdf"`
	IsImmutable        bool              `json:"isImmutable"`
	OriginalDocumentID *uuid.UUID        `json:"originalDocumentId,omitempty"`
	AllocationNumber   string            `json:"allocationNumber,omitempty"`
	Items              []DocumentItemDTO `json:"items"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// CancelDocumentResponse returns both sides of a cancellation
type CancelDocumentResponse struct {
	CreditNote       DocumentDTO `json:"creditNote"`
	OriginalDocument DocumentDTO `json:"originalDocument"`
}

// DocumentTypeOption is a selectable document type
type DocumentTypeOption struct {
	Value DocumentType `json:"value"`
	Label string       `json:"label"`
}

// ============================================================================
// Clients
// ============================================================================

// ClientDTO is the API view of a client
type ClientDTO struct {
	ID           uuid.UUID  `json:"id"`
	DisplayName  string     `json:"displayName"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	BusinessName string     `json:"businessName,omitempty"`
	BusinessID   string     `json:"businessId,omitempty"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city,omitempty"`
	ZipCode      string     `json:"zipCode,omitempty"`
	ClientType   ClientType `json:"clientType"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// CreateClientRequest creates a client
type CreateClientRequest struct {
	FirstName    string `json:"firstName" validate:"max=100"`
	LastName     string `json:"lastName" validate:"max=100"`
	BusinessName string `json:"businessName" validate:"max=200"`
	BusinessID   string `json:"businessId" validate:"omitempty,numeric,max=20"`
	Email        string `json:"email" validate:"omitempty,email,max=255"`
	Phone        string `json:"phone" validate:"max=50"`
	Address      string `json:"address" validate:"max=500"`
	City         string `json:"city" validate:"max=100"`
	ZipCode      string `json:"zipCode" validate:"max=20"`
	ClientType   string `json:"clientType" validate:"required,oneof=individual business"`
}

// UpdateClientRequest updates a client; IsActive is optional
type UpdateClientRequest struct {
	CreateClientRequest
	IsActive *bool `json:"isActive,omitempty"`
}

// ============================================================================
// Services (catalog)
// ============================================================================

// ServiceDTO is the API view of a catalog service
type ServiceDTO struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Unit      string          `json:"unit,omitempty"`
	Category  string          `json:"category,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	IsActive  bool            `json:"isActive"`
	TimesUsed int             `json:"timesUsed"`
	CreatedAt time.Time       `json:"createdAt"`
}

// CreateServiceRequest creates a catalog service
type CreateServiceRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Unit     string          `json:"unit" validate:"max=50"`
	Category string          `json:"category" validate:"max=100"`
	Notes    string          `json:"notes" validate:"max=2000"`
}

// UpdateServiceRequest updates a catalog service; IsActive is optional
type UpdateServiceRequest struct {
	CreateServiceRequest
	IsActive *bool `json:"isActive,omitempty"`
}

// ============================================================================
// Users
// ============================================================================

// UserDTO is the API view of the authenticated business owner
type UserDTO struct {
	ID                 uuid.UUID      `json:"id"`
	Email              string         `json:"email"`
	BusinessName       string         `json:"businessName"`
	BusinessID         string         `json:"businessId,omitempty"`
	BusinessType       BusinessType   `json:"businessType"`
	StartReceiptNumber int            `json:"startReceiptNumber"`
	Role               UserRole       `json:"role"`
	IsActive           bool           `json:"isActive"`
	AvailableTypes     []DocumentType `json:"availableDocumentTypes"`
}

// CreateUserRequest creates a business owner account
type CreateUserRequest struct {
	Email              string `json:"email" validate:"required,email,max=255"`
	BusinessName       string `json:"businessName" validate:"required,max=200"`
	BusinessID         string `json:"businessId" validate:"omitempty,numeric,max=20"`
	BusinessType       string `json:"businessType" validate:"required,oneof=patur morsheh baam"`
	Role               string `json:"role" validate:"omitempty,oneof=user accountant admin"`
	StartReceiptNumber int    `json:"startReceiptNumber" validate:"gte=0"`
}

// UpdateNumberingRequest sets the starting document number
type UpdateNumberingRequest struct {
	StartReceiptNumber int `json:"startReceiptNumber" validate:"required,gte=1"`
}

// ============================================================================
// Allocation
// ============================================================================

// AllocationRequestDTO is the API view of an allocation request
type AllocationRequestDTO struct {
	ID               uuid.UUID        `json:"id"`
	DocumentID       uuid.UUID        `json:"documentId"`
	DocumentNumber   string           `json:"documentNumber,omitempty"`
	Status           AllocationStatus `json:"status"`
	AllocationNumber string           `json:"allocationNumber,omitempty"`
	ErrorMessage     string           `json:"errorMessage,omitempty"`
	RequestedAt      time.Time        `json:"requestedAt"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
}

// ============================================================================
// Audit
// ============================================================================

// AuditLogDTO is the API view of an audit entry
type AuditLogDTO struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"userId"`
	Action      AuditAction `json:"action"`
	EntityType  string      `json:"entityType"`
	EntityID    *uuid.UUID  `json:"entityId,omitempty"`
	Details     string      `json:"details,omitempty"`
	IPAddress   string      `json:"ipAddress,omitempty"`
	RequestID   string      `json:"requestId,omitempty"`
	PerformedAt time.Time   `json:"performedAt"`
}
