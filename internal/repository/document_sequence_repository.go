package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentSequenceRepository handles the per-user document number counter.
// All reads that lead to issuing a number must run inside the caller's transaction
// so the row lock is held until the document row is committed.
type DocumentSequenceRepository struct {
	db *gorm.DB
}

// NewDocumentSequenceRepository creates a new DocumentSequenceRepository
func NewDocumentSequenceRepository(db *gorm.DB) *DocumentSequenceRepository {
	return &DocumentSequenceRepository{db: db}
}

// LockForUser reads the user's sequence row with SELECT FOR UPDATE.
// Returns gorm.ErrRecordNotFound when the user has no sequence yet.
func (r *DocumentSequenceRepository) LockForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*domain.DocumentSequence, error) {
	var seq domain.DocumentSequence
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&seq).Error
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// CreateIfAbsent inserts a sequence row seeded with lastNumber.
// A concurrent insert for the same user wins silently; callers lock the row afterwards.
func (r *DocumentSequenceRepository) CreateIfAbsent(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lastNumber int) error {
	now := time.Now()
	seq := domain.DocumentSequence{
		ID:         uuid.New(),
		UserID:     userID,
		LastNumber: lastNumber,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&seq).Error
	if err != nil {
		return fmt.Errorf("failed to create document sequence: %w", err)
	}
	return nil
}

// SetLastNumber stores the last issued number on a locked sequence row
func (r *DocumentSequenceRepository) SetLastNumber(ctx context.Context, tx *gorm.DB, id uuid.UUID, lastNumber int) error {
	result := conn(r.db, tx).WithContext(ctx).
		Model(&domain.DocumentSequence{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_number": lastNumber,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update document sequence: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetCurrent returns the last issued number without locking. Returns 0 when no sequence exists.
func (r *DocumentSequenceRepository) GetCurrent(ctx context.Context, userID uuid.UUID) (int, error) {
	var seq domain.DocumentSequence
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get document sequence: %w", err)
	}
	return seq.LastNumber, nil
}

// Raise sets the sequence to value if value is higher than the stored number.
// Used when importing documents numbered outside the service. Never lowers the sequence.
func (r *DocumentSequenceRepository) Raise(ctx context.Context, userID uuid.UUID, value int) (int, error) {
	var current int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.CreateIfAbsent(ctx, tx, userID, value); err != nil {
			return err
		}
		seq, err := r.LockForUser(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("failed to lock document sequence: %w", err)
		}
		current = seq.LastNumber
		if value > seq.LastNumber {
			current = value
			return r.SetLastNumber(ctx, tx, seq.ID, value)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return current, nil
}

// List returns all sequences ordered by user
func (r *DocumentSequenceRepository) List(ctx context.Context) ([]domain.DocumentSequence, error) {
	var sequences []domain.DocumentSequence
	err := r.db.WithContext(ctx).
		Order("user_id ASC").
		Find(&sequences).Error
	return sequences, err
}
