package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"gorm.io/gorm"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

// GetByID loads a client owned by userID. tx may be nil.
func (r *ClientRepository) GetByID(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	err := conn(r.db, tx).WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) Update(ctx context.Context, client *domain.Client) error {
	return r.db.WithContext(ctx).Save(client).Error
}

// Deactivate hides a client from pickers. Clients referenced by documents are never deleted.
func (r *ClientRepository) Deactivate(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Client{}).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ClientRepository) List(ctx context.Context, userID uuid.UUID, page, pageSize int, search string, activeOnly bool) ([]domain.Client, int64, error) {
	var clients []domain.Client
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Client{}).Scopes(OwnedBy(userID))

	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(business_name) LIKE ? OR business_id LIKE ?",
			searchPattern, searchPattern, searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&clients).Error

	return clients, total, err
}
