package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/mapper"
	"github.com/zmanup/invoicing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const entityAllocation = "allocation_request"

// AllocationSubmission is what the tax authority receives for one invoice
type AllocationSubmission struct {
	BusinessID       string
	BusinessName     string
	ClientBusinessID string
	ClientName       string
	InvoiceNumber    string
	InvoiceDate      time.Time
	Amount           decimal.Decimal
}

// AllocationRequester obtains allocation numbers from the tax authority
type AllocationRequester interface {
	RequestAllocation(ctx context.Context, sub AllocationSubmission) (string, error)
}

// AllocationOptions tunes allocation eligibility and the requester call
type AllocationOptions struct {
	// Threshold is the minimum invoice total, VAT included, that needs an allocation number
	Threshold decimal.Decimal
	Timeout   time.Duration
}

// AllocationService requests allocation numbers for large tax invoices and freezes the documents that get one
type AllocationService struct {
	allocRepo  *repository.AllocationRepository
	docRepo    *repository.DocumentRepository
	userRepo   *repository.UserRepository
	clientRepo *repository.ClientRepository
	gate       *ImmutabilityGate
	audit      *AuditLogService
	requester  AllocationRequester
	opts       AllocationOptions
	logger     *zap.Logger
	db         *gorm.DB
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	allocRepo *repository.AllocationRepository,
	docRepo *repository.DocumentRepository,
	userRepo *repository.UserRepository,
	clientRepo *repository.ClientRepository,
	gate *ImmutabilityGate,
	audit *AuditLogService,
	requester AllocationRequester,
	opts AllocationOptions,
	logger *zap.Logger,
	db *gorm.DB,
) *AllocationService {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &AllocationService{
		allocRepo:  allocRepo,
		docRepo:    docRepo,
		userRepo:   userRepo,
		clientRepo: clientRepo,
		gate:       gate,
		audit:      audit,
		requester:  requester,
		opts:       opts,
		logger:     logger,
		db:         db,
	}
}

// RequestAllocation asks the tax authority for an allocation number for a document.
// A rejected request is recorded as failed and returned without error. A document gets one request only.
func (s *AllocationService) RequestAllocation(ctx context.Context, userID, documentID uuid.UUID) (*domain.AllocationRequestDTO, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.BusinessType != domain.BusinessTypeMorsheh && user.BusinessType != domain.BusinessTypeBaam {
		return nil, fmt.Errorf("%w: business type %s does not issue tax invoices", ErrAllocationNotEligible, user.BusinessType)
	}

	var req *domain.AllocationRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.docRepo.GetForUpdate(ctx, tx, userID, documentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return fmt.Errorf("failed to load document: %w", err)
		}

		if _, err := s.allocRepo.GetByDocument(ctx, tx, userID, documentID); err == nil {
			return ErrAllocationAlreadyRequested
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check allocation requests: %w", err)
		}

		client, err := s.checkEligible(ctx, tx, userID, doc)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		req = &domain.AllocationRequest{
			BaseModel:   domain.BaseModel{ID: uuid.New()},
			DocumentID:  doc.ID,
			UserID:      userID,
			Status:      domain.AllocationStatusPending,
			RequestedAt: now,
		}
		if err := s.allocRepo.Create(ctx, tx, req); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAllocationAlreadyRequested
			}
			return fmt.Errorf("failed to create allocation request: %w", err)
		}

		number, reqErr := s.submit(ctx, AllocationSubmission{
			BusinessID:       user.BusinessID,
			BusinessName:     user.BusinessName,
			ClientBusinessID: client.BusinessID,
			ClientName:       client.DisplayName(),
			InvoiceNumber:    doc.DocumentNumber,
			InvoiceDate:      doc.IssueDate,
			Amount:           doc.TotalAmount,
		})

		completed := time.Now().UTC()
		req.CompletedAt = &completed
		if reqErr != nil {
			req.Status = domain.AllocationStatusFailed
			req.ErrorMessage = reqErr.Error()
		} else {
			req.Status = domain.AllocationStatusSuccess
			req.AllocationNumber = number
			if err := s.docRepo.SetAllocationNumber(ctx, tx, doc.ID, number); err != nil {
				return err
			}
			if err := s.gate.MarkImmutable(ctx, tx, doc.ID); err != nil {
				return err
			}
		}
		if err := s.allocRepo.Save(ctx, tx, req); err != nil {
			return err
		}

		reqID := req.ID
		if err := s.audit.Record(ctx, tx, LogEntry{
			Action:     domain.AuditActionAllocationRequest,
			EntityType: entityAllocation,
			EntityID:   &reqID,
			Details: map[string]interface{}{
				"documentId":       doc.ID,
				"documentNumber":   doc.DocumentNumber,
				"status":           req.Status,
				"allocationNumber": req.AllocationNumber,
			},
		}); err != nil {
			return err
		}
		if req.Status == domain.AllocationStatusSuccess {
			docID := doc.ID
			if err := s.audit.Record(ctx, tx, LogEntry{
				Action:     domain.AuditActionMarkImmutable,
				EntityType: entityDocument,
				EntityID:   &docID,
				Details:    map[string]interface{}{"allocationNumber": number},
			}); err != nil {
				return err
			}
		}

		req.Document = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("allocation requested",
		zap.String("document_id", documentID.String()),
		zap.String("status", string(req.Status)),
		zap.String("allocation_number", req.AllocationNumber))

	dto := mapper.ToAllocationRequestDTO(req)
	return &dto, nil
}

// checkEligible returns the document's client when the document needs an allocation number
func (s *AllocationService) checkEligible(ctx context.Context, tx *gorm.DB, userID uuid.UUID, doc *domain.Document) (*domain.Client, error) {
	if doc.DocumentType != domain.DocumentTypeTaxInvoice {
		return nil, fmt.Errorf("%w: only tax invoices receive allocation numbers", ErrAllocationNotEligible)
	}
	if doc.Status == domain.DocumentStatusCancelled {
		return nil, fmt.Errorf("%w: document is cancelled", ErrAllocationNotEligible)
	}
	if doc.TotalAmount.LessThan(s.opts.Threshold) {
		return nil, fmt.Errorf("%w: total %s is below %s", ErrAllocationNotEligible, doc.TotalAmount.StringFixed(2), s.opts.Threshold.StringFixed(2))
	}
	if doc.ClientID == nil {
		return nil, fmt.Errorf("%w: document has no client", ErrAllocationNotEligible)
	}
	client, err := s.clientRepo.GetByID(ctx, tx, userID, *doc.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: document has no client", ErrAllocationNotEligible)
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if client.ClientType != domain.ClientTypeBusiness {
		return nil, fmt.Errorf("%w: client is not a business", ErrAllocationNotEligible)
	}
	return client, nil
}

func (s *AllocationService) submit(ctx context.Context, sub AllocationSubmission) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	number, err := s.requester.RequestAllocation(reqCtx, sub)
	if err != nil {
		s.logger.Warn("allocation request rejected",
			zap.String("invoice_number", sub.InvoiceNumber),
			zap.Error(err))
		return "", err
	}
	if number == "" {
		return "", fmt.Errorf("%w: empty allocation number", ErrAllocationRequesterRejected)
	}
	return number, nil
}

// GetStatus returns the allocation request of a document
func (s *AllocationService) GetStatus(ctx context.Context, userID, documentID uuid.UUID) (*domain.AllocationRequestDTO, error) {
	req, err := s.allocRepo.GetByDocument(ctx, nil, userID, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAllocationNotFound
		}
		return nil, fmt.Errorf("failed to get allocation request: %w", err)
	}
	dto := mapper.ToAllocationRequestDTO(req)
	return &dto, nil
}

// History returns a page of the user's allocation requests
func (s *AllocationService) History(ctx context.Context, userID uuid.UUID, status *domain.AllocationStatus, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	reqs, total, err := s.allocRepo.List(ctx, userID, status, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation requests: %w", err)
	}
	dtos := make([]domain.AllocationRequestDTO, len(reqs))
	for i := range reqs {
		dtos[i] = mapper.ToAllocationRequestDTO(&reqs[i])
	}
	return newPage(dtos, total, page, pageSize), nil
}
