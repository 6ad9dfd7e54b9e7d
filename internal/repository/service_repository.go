package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"gorm.io/gorm"
)

// ServiceRepository handles the per-user catalog of billable services
type ServiceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) Create(ctx context.Context, svc *domain.Service) error {
	return r.db.WithContext(ctx).Create(svc).Error
}

// GetByID loads a catalog service owned by userID. tx may be nil.
func (r *ServiceRepository) GetByID(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.Service, error) {
	var svc domain.Service
	err := conn(r.db, tx).WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Where("id = ?", id).
		First(&svc).Error
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// ExistingIDs returns the subset of ids that are services owned by userID
func (r *ServiceRepository) ExistingIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []uuid.UUID
	err := conn(r.db, tx).WithContext(ctx).
		Model(&domain.Service{}).
		Scopes(OwnedBy(userID)).
		Where("id IN ?", ids).
		Pluck("id", &existing).Error
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// IncrementUsage bumps the usage counter of every referenced service by one per reference
func (r *ServiceRepository) IncrementUsage(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	for _, id := range ids {
		err := conn(r.db, tx).WithContext(ctx).
			Model(&domain.Service{}).
			Where("id = ?", id).
			UpdateColumn("times_used", gorm.Expr("times_used + ?", 1)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ServiceRepository) Update(ctx context.Context, svc *domain.Service) error {
	return r.db.WithContext(ctx).Save(svc).Error
}

func (r *ServiceRepository) List(ctx context.Context, userID uuid.UUID, page, pageSize int, search string, activeOnly bool) ([]domain.Service, int64, error) {
	var services []domain.Service
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Service{}).Scopes(OwnedBy(userID))

	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(category) LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("times_used DESC, name ASC").Find(&services).Error

	return services, total, err
}
