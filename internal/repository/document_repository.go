package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zmanup/invoicing-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentFilter narrows document listings
type DocumentFilter struct {
	DocumentType *domain.DocumentType
	Status       *domain.DocumentStatus
	ClientID     *uuid.UUID
	From         *time.Time
	To           *time.Time
	Number       string
}

// documentSortFields whitelists sortable API fields
var documentSortFields = map[string]string{
	"createdAt":      "created_at",
	"issueDate":      "issue_date",
	"documentNumber": "document_number",
	"totalAmount":    "total_amount",
	"status":         "status",
}

// DocumentRepository handles document persistence. Documents are never deleted.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Transaction runs fn in a database transaction
func (r *DocumentRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	})
}

// Create inserts a document together with its items
func (r *DocumentRepository) Create(ctx context.Context, tx *gorm.DB, doc *domain.Document) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Client").Create(doc).Error
}

// GetByID loads a document with its items and client, scoped to the owner. tx may be nil.
func (r *DocumentRepository) GetByID(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := withItems(conn(r.db, tx).WithContext(ctx)).
		Preload("Client").
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetForUpdate loads and row-locks a document inside tx, scoped to the owner
func (r *DocumentRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := withItems(conn(r.db, tx).WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetForUpdateUnscoped row-locks a document by id regardless of owner, for the gate, jobs and the CLI
func (r *DocumentRepository) GetForUpdateUnscoped(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListNumbers returns every document number of a user, for seeding and reconciling the sequence
func (r *DocumentRepository) ListNumbers(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]string, error) {
	var numbers []string
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Document{}).
		Scopes(OwnedBy(userID)).
		Pluck("document_number", &numbers).Error
	return numbers, err
}

// UpdateStatus sets the status of a document
func (r *DocumentRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status domain.DocumentStatus) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{"status": status})
}

// UpdatePDFPath records the storage key of the rendered PDF
func (r *DocumentRepository) UpdatePDFPath(ctx context.Context, tx *gorm.DB, id uuid.UUID, path string) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{"pdf_path": path})
}

// SetImmutable flips the immutability flag. The flag is never cleared.
func (r *DocumentRepository) SetImmutable(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{"is_immutable": true})
}

// SetAllocationNumber stores the tax authority allocation number on a document
func (r *DocumentRepository) SetAllocationNumber(ctx context.Context, tx *gorm.DB, id uuid.UUID, number string) error {
	return r.updateColumns(ctx, tx, id, map[string]interface{}{"allocation_number": number})
}

func (r *DocumentRepository) updateColumns(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SumCredits returns the absolute sum of non-cancelled credit notes issued against a document
func (r *DocumentRepository) SumCredits(ctx context.Context, tx *gorm.DB, originalID uuid.UUID) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Document{}).
		Where("original_document_id = ? AND document_type = ? AND status <> ?",
			originalID, domain.DocumentTypeCreditNote, domain.DocumentStatusCancelled).
		Pluck("total_amount", &totals).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum credit notes: %w", err)
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t.Abs())
	}
	return sum, nil
}

// List returns a page of a user's documents
func (r *DocumentRepository) List(ctx context.Context, userID uuid.UUID, filter *DocumentFilter, page, pageSize int, sort SortConfig) ([]domain.Document, int64, error) {
	var docs []domain.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Document{}).Scopes(OwnedBy(userID))
	query = applyDocumentFilter(query, filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := withItems(query).
		Preload("Client").
		Order(BuildOrderClause(sort, documentSortFields, "created_at")).
		Offset(offset).
		Limit(pageSize).
		Find(&docs).Error

	return docs, total, err
}

// ListForPeriod returns every document of a user issued in [from, to), for reports
func (r *DocumentRepository) ListForPeriod(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.WithContext(ctx).
		Preload("Client").
		Scopes(OwnedBy(userID)).
		Where("issue_date >= ? AND issue_date < ?", from, to).
		Order("document_number ASC").
		Find(&docs).Error
	return docs, err
}

// MarkOverdue moves one document to overdue if it is still pending and mutable.
// Returns false when the row no longer qualifies.
func (r *DocumentRepository) MarkOverdue(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ? AND status = ? AND is_immutable = ?", id, domain.DocumentStatusPending, false).
		Updates(map[string]interface{}{
			"status":     domain.DocumentStatusOverdue,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark document overdue: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListOverdueIDs returns pending, mutable documents whose due date is before asOf
func (r *DocumentRepository) ListOverdueIDs(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("status = ? AND is_immutable = ? AND due_date IS NOT NULL AND due_date < ?",
			domain.DocumentStatusPending, false, asOf).
		Pluck("id", &ids).Error
	return ids, err
}

func applyDocumentFilter(query *gorm.DB, filter *DocumentFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if filter.DocumentType != nil {
		query = query.Where("document_type = ?", *filter.DocumentType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.From != nil {
		query = query.Where("issue_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("issue_date < ?", *filter.To)
	}
	if filter.Number != "" {
		query = query.Where("document_number LIKE ?", "%"+filter.Number+"%")
	}
	return query
}
