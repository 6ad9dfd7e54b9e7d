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

// DocumentNumberService issues sequential, zero-padded document numbers per user.
//
// Format: NNNNN, e.g. "10001". Every document type shares one sequence.
//
// The sequence row is locked with SELECT ... FOR UPDATE inside the creation
// transaction, so two concurrent creations for the same user are serialized
// and never see the same last number.
type DocumentNumberService struct {
	seqRepo  *repository.DocumentSequenceRepository
	docRepo  *repository.DocumentRepository
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

// NewDocumentNumberService creates a new DocumentNumberService
func NewDocumentNumberService(
	seqRepo *repository.DocumentSequenceRepository,
	docRepo *repository.DocumentRepository,
	userRepo *repository.UserRepository,
	logger *zap.Logger,
) *DocumentNumberService {
	return &DocumentNumberService{
		seqRepo:  seqRepo,
		docRepo:  docRepo,
		userRepo: userRepo,
		logger:   logger,
	}
}

// Allocate reserves the next number for user inside tx and returns it formatted and as an int.
// user must have been read under a row lock in the same transaction.
//
// Rules: last issued + 1; the watermark when nothing was issued yet; 10001 otherwise.
// A watermark raised above the last issued number makes the sequence jump to it.
func (s *DocumentNumberService) Allocate(ctx context.Context, tx *gorm.DB, user *domain.User) (string, int, error) {
	seq, err := s.lockSequence(ctx, tx, user.ID)
	if err != nil {
		return "", 0, err
	}

	next := domain.NextDocumentNumber(seq.LastNumber, user.StartReceiptNumber)
	if err := s.seqRepo.SetLastNumber(ctx, tx, seq.ID, next); err != nil {
		return "", 0, fmt.Errorf("failed to reserve document number: %w", err)
	}

	number := domain.FormatDocumentNumber(next)
	s.logger.Debug("allocated document number",
		zap.String("user_id", user.ID.String()),
		zap.String("number", number),
		zap.Int("previous", seq.LastNumber),
		zap.Int("watermark", user.StartReceiptNumber))

	return number, next, nil
}

// AdvanceWatermark raises the user's start number to issued when issued is higher
func (s *DocumentNumberService) AdvanceWatermark(ctx context.Context, tx *gorm.DB, user *domain.User, issued int) error {
	if issued <= user.StartReceiptNumber {
		return nil
	}
	if err := s.userRepo.SetStartReceiptNumber(ctx, tx, user.ID, issued); err != nil {
		return fmt.Errorf("failed to advance numbering watermark: %w", err)
	}
	user.StartReceiptNumber = issued
	return nil
}

// lockSequence locks the user's sequence row, seeding it from existing documents on first use
func (s *DocumentNumberService) lockSequence(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*domain.DocumentSequence, error) {
	seq, err := s.seqRepo.LockForUser(ctx, tx, userID)
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to lock document sequence: %w", err)
	}

	last, err := s.highestIssued(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.seqRepo.CreateIfAbsent(ctx, tx, userID, last); err != nil {
		return nil, err
	}
	seq, err = s.seqRepo.LockForUser(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock document sequence: %w", err)
	}
	return seq, nil
}

// highestIssued returns the highest sequential number among the user's documents, or 0.
// Legacy year-prefixed numbers are skipped.
func (s *DocumentNumberService) highestIssued(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	numbers, err := s.docRepo.ListNumbers(ctx, tx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read existing document numbers: %w", err)
	}
	highest := 0
	for _, raw := range numbers {
		if n, ok := domain.ParseDocumentNumber(raw); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// Current returns the last number issued to a user, 0 when none
func (s *DocumentNumberService) Current(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.seqRepo.GetCurrent(ctx, userID)
}

// Sync raises the sequence to the highest number found among the user's documents.
// Used after importing documents numbered elsewhere. Never lowers the sequence.
func (s *DocumentNumberService) Sync(ctx context.Context, userID uuid.UUID) (int, error) {
	highest, err := s.highestIssued(ctx, nil, userID)
	if err != nil {
		return 0, err
	}
	current, err := s.seqRepo.Raise(ctx, userID, highest)
	if err != nil {
		return 0, fmt.Errorf("failed to sync document sequence: %w", err)
	}
	s.logger.Info("document sequence synced",
		zap.String("user_id", userID.String()),
		zap.Int("highest_document", highest),
		zap.Int("sequence", current))
	return current, nil
}
