package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImmutabilityGate freezes documents that received a tax authority allocation number.
// Once frozen a document can no longer change status or be cancelled.
type ImmutabilityGate struct {
	docRepo *repository.DocumentRepository
	logger  *zap.Logger
}

// NewImmutabilityGate creates a new ImmutabilityGate
func NewImmutabilityGate(docRepo *repository.DocumentRepository, logger *zap.Logger) *ImmutabilityGate {
	return &ImmutabilityGate{docRepo: docRepo, logger: logger}
}

// MarkImmutable sets the immutability flag on a document. Marking twice is a no-op.
// tx may be nil to run in a transaction of its own.
func (g *ImmutabilityGate) MarkImmutable(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	if tx == nil {
		return g.docRepo.Transaction(ctx, func(tx *gorm.DB) error {
			return g.MarkImmutable(ctx, tx, documentID)
		})
	}

	doc, err := g.docRepo.GetForUpdateUnscoped(ctx, tx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.IsImmutable {
		return nil
	}
	if err := g.docRepo.SetImmutable(ctx, tx, documentID); err != nil {
		return err
	}

	g.logger.Info("document marked immutable",
		zap.String("document_id", documentID.String()),
		zap.String("document_number", doc.DocumentNumber))
	return nil
}

// EnsureMutable rejects mutations of frozen documents
func EnsureMutable(doc *domain.Document) error {
	if doc.IsImmutable {
		return fmt.Errorf("%w: document %s", ErrImmutableDocument, doc.DocumentNumber)
	}
	return nil
}
