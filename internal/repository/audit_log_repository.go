package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"gorm.io/gorm"
)

// purgeBatchSize bounds the rows removed by a single retention DELETE
const purgeBatchSize = 5000

// AuditLogFilter narrows an audit trail query. ActorID is the user_id column:
// a user UUID, "system" or an API key actor.
type AuditLogFilter struct {
	ActorID    string
	Action     *domain.AuditAction
	EntityType string
	EntityID   *uuid.UUID
	From       *time.Time
	To         *time.Time
}

func (f *AuditLogFilter) scope(db *gorm.DB) *gorm.DB {
	if f == nil {
		return db
	}
	if f.ActorID != "" {
		db = db.Where("user_id = ?", f.ActorID)
	}
	if f.Action != nil {
		db = db.Where("action = ?", *f.Action)
	}
	if f.EntityType != "" {
		db = db.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		db = db.Where("entity_id = ?", *f.EntityID)
	}
	if f.From != nil {
		db = db.Where("performed_at >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where("performed_at <= ?", *f.To)
	}
	return db
}

// AuditLogRepository is the append-only store behind the audit trail
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create appends an entry inside tx, or on its own when tx is nil
func (r *AuditLogRepository) Create(ctx context.Context, tx *gorm.DB, entry *domain.AuditLog) error {
	return conn(r.db, tx).WithContext(ctx).Create(entry).Error
}

// List returns one page of entries, newest first
func (r *AuditLogRepository) List(ctx context.Context, filter *AuditLogFilter, page, pageSize int) ([]domain.AuditLog, int64, error) {
	page, pageSize = NormalizePage(page, pageSize)
	query := r.db.WithContext(ctx).Model(&domain.AuditLog{}).Scopes(filter.scope)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []domain.AuditLog
	err := query.
		Order("performed_at DESC").
		Order("id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	return entries, total, err
}

// DeleteOlderThan purges entries performed before the cutoff in batches and
// returns how many were removed. Only the retention job calls this.
func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		batch := r.db.Model(&domain.AuditLog{}).
			Select("id").
			Where("performed_at < ?", before).
			Limit(purgeBatchSize)
		result := r.db.WithContext(ctx).
			Where("id IN (?)", batch).
			Delete(&domain.AuditLog{})
		if result.Error != nil {
			return deleted, result.Error
		}
		deleted += result.RowsAffected
		if result.RowsAffected < purgeBatchSize {
			return deleted, nil
		}
	}
}
