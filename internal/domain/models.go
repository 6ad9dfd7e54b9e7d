package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BaseModel holds the identity and timestamps shared by every table.
// IDs are assigned in Go before insert so the same models work on postgres and sqlite.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BusinessType is the Israeli business registration tier of a user
type BusinessType string

const (
	BusinessTypePatur   BusinessType = "patur"
	BusinessTypeMorsheh BusinessType = "morsheh"
	BusinessTypeBaam    BusinessType = "baam"
)

// IsValid checks if the business type is valid
func (b BusinessType) IsValid() bool {
	switch b {
	case BusinessTypePatur, BusinessTypeMorsheh, BusinessTypeBaam:
		return true
	}
	return false
}

// UserRole represents the role of an account
type UserRole string

const (
	UserRoleUser       UserRole = "user"
	UserRoleAccountant UserRole = "accountant"
	UserRoleAdmin      UserRole = "admin"
)

// IsValid checks if the role is valid
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleUser, UserRoleAccountant, UserRoleAdmin:
		return true
	}
	return false
}

// User is a business owner issuing documents
type User struct {
	BaseModel
	Email        string       `gorm:"type:varchar(255);not null;uniqueIndex"`
	BusinessName string       `gorm:"type:varchar(200)"`
	BusinessID   string       `gorm:"type:varchar(20);column:business_id"`
	BusinessType BusinessType `gorm:"type:varchar(20);not null"`
	// StartReceiptNumber is the numbering watermark: the highest document number ever issued,
	// or the configured starting number before the first document.
	StartReceiptNumber int      `gorm:"not null;default:0"`
	Role               UserRole `gorm:"type:varchar(20);not null"`
	IsActive           bool     `gorm:"not null"`
	Phone              string   `gorm:"type:varchar(50)"`
	Address            string   `gorm:"type:varchar(500)"`
}

// ClientType distinguishes private clients from registered businesses
type ClientType string

const (
	ClientTypeIndividual ClientType = "individual"
	ClientTypeBusiness   ClientType = "business"
)

// IsValid checks if the client type is valid
func (c ClientType) IsValid() bool {
	return c == ClientTypeIndividual || c == ClientTypeBusiness
}

// Client is a customer of a user
type Client struct {
	BaseModel
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	FirstName    string     `gorm:"type:varchar(100)"`
	LastName     string     `gorm:"type:varchar(100)"`
	BusinessName string     `gorm:"type:varchar(200)"`
	BusinessID   string     `gorm:"type:varchar(20);column:business_id"`
	Email        string     `gorm:"type:varchar(255)"`
	Phone        string     `gorm:"type:varchar(50)"`
	Address      string     `gorm:"type:varchar(500)"`
	City         string     `gorm:"type:varchar(100)"`
	ZipCode      string     `gorm:"type:varchar(20)"`
	ClientType   ClientType `gorm:"type:varchar(20);not null"`
	IsActive     bool       `gorm:"not null"`
}

// DisplayName returns the business name for businesses and the full name otherwise
func (c *Client) DisplayName() string {
	if c.ClientType == ClientTypeBusiness && c.BusinessName != "" {
		return c.BusinessName
	}
	name := c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	if name == "" {
		return c.BusinessName
	}
	return name
}

// Service is a catalog entry a line item may reference
type Service struct {
	BaseModel
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency  string          `gorm:"type:varchar(3);not null"`
	Unit      string          `gorm:"type:varchar(50)"`
	Category  string          `gorm:"type:varchar(100)"`
	Notes     string          `gorm:"type:text"`
	IsActive  bool            `gorm:"not null"`
	TimesUsed int             `gorm:"not null;default:0"`
}

// PaymentMethod records how a document was (or will be) paid
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodBit    PaymentMethod = "bit"
	PaymentMethodPaybox PaymentMethod = "paybox"
	PaymentMethodBank   PaymentMethod = "bank"
	PaymentMethodOther  PaymentMethod = "other"
)

// IsValid checks if the payment method is valid
func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodBit, PaymentMethodPaybox, PaymentMethodBank, PaymentMethodOther:
		return true
	}
	return false
}

// Document is an issued business document: quote, invoice, receipt or credit note.
// Documents are never physically deleted; cancellation is a status.
type Document struct {
	BaseModel
	UserID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_documents_user_number,priority:1"`
	ClientID           *uuid.UUID      `gorm:"type:uuid;index"`
	Client             *Client         `gorm:"foreignKey:ClientID"`
	DocumentNumber     string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_documents_user_number,priority:2"`
	DocumentType       DocumentType    `gorm:"type:varchar(30);not null"`
	Status             DocumentStatus  `gorm:"type:varchar(20);not null;index"`
	IssueDate          time.Time       `gorm:"not null"`
	DueDate            *time.Time      `gorm:"index"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	VATRate            decimal.Decimal `gorm:"type:decimal(5,4);not null;column:vat_rate"`
	VATAmount          decimal.Decimal `gorm:"type:decimal(12,2);not null;column:vat_amount"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency           string          `gorm:"type:varchar(3);not null"`
	Notes              string          `gorm:"type:text"`
	PaymentMethod      PaymentMethod   `gorm:"type:varchar(20);not null"`
	PDFPath            string          `gorm:"type:varchar(500);column:pdf_path"`
	IsImmutable        bool            `gorm:"not null;default:false"`
	OriginalDocumentID *uuid.UUID      `gorm:"type:uuid;index"`
	AllocationNumber   string          `gorm:"type:varchar(50)"`
	Items              []DocumentItem  `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

// IsCreditNote reports whether the document is a credit note
func (d *Document) IsCreditNote() bool {
	return d.DocumentType == DocumentTypeCreditNote
}

// DocumentItem is a line of a document. TotalPrice is always derived from Quantity and UnitPrice.
type DocumentItem struct {
	BaseModel
	DocumentID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ServiceID   *uuid.UUID      `gorm:"type:uuid"`
	Description string          `gorm:"type:text;not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SortOrder   int             `gorm:"not null"`
}

// DocumentSequence holds the last number issued for a user.
// The row is locked for the duration of a document creation.
type DocumentSequence struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	LastNumber int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// AllocationStatus is the state of a tax-authority allocation request
type AllocationStatus string

const (
	AllocationStatusPending AllocationStatus = "pending"
	AllocationStatusSuccess AllocationStatus = "success"
	AllocationStatusFailed  AllocationStatus = "failed"
)

// AllocationRequest tracks the request for an allocation number for one document
type AllocationRequest struct {
	BaseModel
	DocumentID       uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex"`
	Document         *Document        `gorm:"foreignKey:DocumentID"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index"`
	Status           AllocationStatus `gorm:"type:varchar(20);not null"`
	AllocationNumber string           `gorm:"type:varchar(50)"`
	ErrorMessage     string           `gorm:"type:text"`
	RequestedAt      time.Time        `gorm:"not null"`
	CompletedAt      *time.Time
}

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreate            AuditAction = "create"
	AuditActionUpdate            AuditAction = "update"
	AuditActionCancel            AuditAction = "cancel"
	AuditActionStatusChange      AuditAction = "status_change"
	AuditActionMarkImmutable     AuditAction = "mark_immutable"
	AuditActionAllocationRequest AuditAction = "allocation_request"
)

// AuditLog is an append-only record of a mutation
type AuditLog struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey"`
	UserID      string      `gorm:"type:varchar(100);column:user_id;index"`
	Action      AuditAction `gorm:"type:varchar(30);not null"`
	EntityType  string      `gorm:"type:varchar(50);not null"`
	EntityID    *uuid.UUID  `gorm:"type:uuid;index"`
	Details     string      `gorm:"type:text"`
	IPAddress   string      `gorm:"type:varchar(64);column:ip_address"`
	RequestID   string      `gorm:"type:varchar(100)"`
	PerformedAt time.Time   `gorm:"not null;index"`
	CreatedAt   time.Time   `gorm:"not null"`
}
