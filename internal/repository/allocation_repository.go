package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"gorm.io/gorm"
)

// AllocationRepository stores tax authority allocation requests, one per document
type AllocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository creates a new AllocationRepository
func NewAllocationRepository(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// Create inserts a request. The unique document_id index rejects a second request.
func (r *AllocationRepository) Create(ctx context.Context, tx *gorm.DB, req *domain.AllocationRequest) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Document").Create(req).Error
}

// Save persists the outcome of a request
func (r *AllocationRepository) Save(ctx context.Context, tx *gorm.DB, req *domain.AllocationRequest) error {
	if err := conn(r.db, tx).WithContext(ctx).Omit("Document").Save(req).Error; err != nil {
		return fmt.Errorf("failed to save allocation request: %w", err)
	}
	return nil
}

// GetByDocument returns the request for a document owned by userID
func (r *AllocationRepository) GetByDocument(ctx context.Context, tx *gorm.DB, userID, documentID uuid.UUID) (*domain.AllocationRequest, error) {
	var req domain.AllocationRequest
	err := conn(r.db, tx).WithContext(ctx).
		Preload("Document").
		Scopes(OwnedBy(userID)).
		Where("document_id = ?", documentID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns a page of a user's requests, newest first
func (r *AllocationRepository) List(ctx context.Context, userID uuid.UUID, status *domain.AllocationStatus, page, pageSize int) ([]domain.AllocationRequest, int64, error) {
	var reqs []domain.AllocationRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.AllocationRequest{}).Scopes(OwnedBy(userID))
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Document").
		Order("requested_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&reqs).Error
	return reqs, total, err
}
