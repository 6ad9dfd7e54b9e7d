package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/mapper"
	"github.com/zmanup/invoicing-api/internal/money"
	"github.com/zmanup/invoicing-api/internal/repository"
	"github.com/zmanup/invoicing-api/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPDFTimeout = 20 * time.Second
	entityDocument    = "document"
)

// PDFRenderer produces the printable artifact of a document and returns its storage key.
// The document passed in carries its items and client.
type PDFRenderer interface {
	Render(ctx context.Context, doc *domain.Document, user *domain.User) (string, error)
}

// DocumentOptions tunes the document lifecycle
type DocumentOptions struct {
	// PDFTimeout bounds rendering inside the creation transaction
	PDFTimeout time.Duration
	// StrictStatusTransitions rejects status changes that skip the state machine
	StrictStatusTransitions bool
	// EnforceCreditCeiling rejects credits that would exceed the original total
	EnforceCreditCeiling bool
	DefaultCurrency      string
}

// DocumentService implements creation, cancellation and status changes of documents
type DocumentService struct {
	docRepo     *repository.DocumentRepository
	userRepo    *repository.UserRepository
	clientRepo  *repository.ClientRepository
	serviceRepo *repository.ServiceRepository
	numbers     *DocumentNumberService
	items       *LineItemBuilder
	audit       *AuditLogService
	renderer    PDFRenderer
	store       storage.Storage
	opts        DocumentOptions
	logger      *zap.Logger
	db          *gorm.DB
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	docRepo *repository.DocumentRepository,
	userRepo *repository.UserRepository,
	clientRepo *repository.ClientRepository,
	serviceRepo *repository.ServiceRepository,
	numbers *DocumentNumberService,
	items *LineItemBuilder,
	audit *AuditLogService,
	renderer PDFRenderer,
	store storage.Storage,
	opts DocumentOptions,
	logger *zap.Logger,
	db *gorm.DB,
) *DocumentService {
	if opts.PDFTimeout <= 0 {
		opts.PDFTimeout = defaultPDFTimeout
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "ILS"
	}
	return &DocumentService{
		docRepo:     docRepo,
		userRepo:    userRepo,
		clientRepo:  clientRepo,
		serviceRepo: serviceRepo,
		numbers:     numbers,
		items:       items,
		audit:       audit,
		renderer:    renderer,
		store:       store,
		opts:        opts,
		logger:      logger,
		db:          db,
	}
}

// ============================================================================
// Create / cancel
// ============================================================================

// CreateDocument issues a document. With OriginalDocumentID set, a credit_note is created in credit mode:
// partial whenever PartialAmount is supplied, whatever its size, full otherwise.
// Numbering, inserts, watermark, PDF rendering and the artifact key commit together or not at all.
func (s *DocumentService) CreateDocument(ctx context.Context, userID uuid.UUID, req *domain.CreateDocumentRequest) (*domain.DocumentDTO, error) {
	docType, ok := domain.ParseDocumentType(req.DocumentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, req.DocumentType)
	}

	var created *domain.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		created, _, err = s.create(ctx, tx, user, docType, req, false)
		return err
	})
	if err != nil {
		return nil, s.writeFailed(ctx, userID, err)
	}

	s.logger.Info("document created",
		zap.String("document_id", created.ID.String()),
		zap.String("document_number", created.DocumentNumber),
		zap.String("document_type", string(created.DocumentType)),
		zap.String("user_id", userID.String()))

	dto := mapper.ToDocumentDTO(created)
	return &dto, nil
}

// CancelDocument credits a document. A missing amount, or one at or above the original total,
// cancels the original in full; a smaller amount leaves its status untouched.
func (s *DocumentService) CancelDocument(ctx context.Context, userID, documentID uuid.UUID, req *domain.CancelDocumentRequest) (*domain.CancelDocumentResponse, error) {
	var creditNote, original *domain.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		createReq := &domain.CreateDocumentRequest{
			DocumentType:       string(domain.DocumentTypeCreditNote),
			OriginalDocumentID: &documentID,
			PartialAmount:      req.PartialAmount,
			Reason:             req.Reason,
		}
		creditNote, original, err = s.create(ctx, tx, user, domain.DocumentTypeCreditNote, createReq, true)
		if errors.Is(err, ErrOriginalNotFound) {
			return ErrDocumentNotFound
		}
		return err
	})
	if err != nil {
		return nil, s.writeFailed(ctx, userID, err)
	}

	s.logger.Info("document cancelled",
		zap.String("document_id", original.ID.String()),
		zap.String("credit_note_id", creditNote.ID.String()),
		zap.String("credit_note_number", creditNote.DocumentNumber),
		zap.String("original_status", string(original.Status)))

	return &domain.CancelDocumentResponse{
		CreditNote:       mapper.ToDocumentDTO(creditNote),
		OriginalDocument: mapper.ToDocumentDTO(original),
	}, nil
}

// create runs the creation procedure inside tx. The returned original is non-nil in credit mode
// and reflects its status after the credit. promoteToFull turns a partial amount covering the
// whole original into a full credit; only cancellation asks for it.
func (s *DocumentService) create(ctx context.Context, tx *gorm.DB, user *domain.User, docType domain.DocumentType, req *domain.CreateDocumentRequest, promoteToFull bool) (*domain.Document, *domain.Document, error) {
	if !domain.IsDocumentTypeAllowed(user.BusinessType, docType) {
		return nil, nil, fmt.Errorf("%w: %s cannot issue %s", ErrDocumentTypeNotAllowed, user.BusinessType, docType)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		BaseModel:     domain.BaseModel{ID: uuid.New()},
		UserID:        user.ID,
		ClientID:      req.ClientID,
		DocumentType:  docType,
		IssueDate:     now,
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		Notes:         strings.TrimSpace(req.Notes),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	}
	if doc.PaymentMethod != "" && !doc.PaymentMethod.IsValid() {
		return nil, nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, req.PaymentMethod)
	}
	if req.IssueDate != nil {
		doc.IssueDate = req.IssueDate.UTC()
	}
	due := doc.IssueDate
	if req.DueDate != nil {
		due = req.DueDate.UTC()
	}
	doc.DueDate = &due

	var original *domain.Document
	var fullCredit bool
	var totals money.Totals
	var err error

	switch {
	case req.OriginalDocumentID != nil:
		if docType != domain.DocumentTypeCreditNote {
			return nil, nil, fmt.Errorf("%w: only credit notes may reference an original document", ErrInvalidOperation)
		}
		original, err = s.lockOriginal(ctx, tx, user.ID, *req.OriginalDocumentID)
		if err != nil {
			return nil, nil, err
		}
		totals, fullCredit, err = s.applyCredit(ctx, tx, doc, original, req, promoteToFull)
		if err != nil {
			return nil, nil, err
		}

	case docType == domain.DocumentTypeCreditNote:
		return nil, nil, fmt.Errorf("%w: a credit note requires an original document", ErrInvalidOperation)

	default:
		if len(req.Items) == 0 {
			return nil, nil, ErrEmptyDocument
		}
		doc.Items, err = s.items.Build(ctx, tx, user.ID, req.Items)
		if err != nil {
			return nil, nil, err
		}
		totals = money.ComputeForBusiness(LineTotals(doc.Items), user.BusinessType)
	}

	if req.ClientID != nil {
		if _, err := s.clientRepo.GetByID(ctx, tx, user.ID, *req.ClientID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrClientNotFound
			}
			return nil, nil, fmt.Errorf("failed to load client: %w", err)
		}
	}
	if doc.Currency == "" {
		doc.Currency = s.opts.DefaultCurrency
	}
	if doc.PaymentMethod == "" {
		doc.PaymentMethod = domain.PaymentMethodOther
	}

	doc.Subtotal = totals.Subtotal
	doc.VATRate = totals.VATRate
	doc.VATAmount = totals.VATAmount
	doc.TotalAmount = totals.Total

	number, issued, err := s.numbers.Allocate(ctx, tx, user)
	if err != nil {
		return nil, nil, err
	}
	doc.DocumentNumber = number
	doc.Status = domain.InitialStatus(docType)
	for i := range doc.Items {
		doc.Items[i].DocumentID = doc.ID
	}

	if err := s.docRepo.Create(ctx, tx, doc); err != nil {
		return nil, nil, fmt.Errorf("failed to create document: %w", err)
	}
	if original == nil {
		if err := s.serviceRepo.IncrementUsage(ctx, tx, ReferencedServices(doc.Items)); err != nil {
			return nil, nil, err
		}
	}
	if err := s.numbers.AdvanceWatermark(ctx, tx, user, issued); err != nil {
		return nil, nil, err
	}

	if fullCredit {
		if err := s.docRepo.UpdateStatus(ctx, tx, original.ID, domain.DocumentStatusCancelled); err != nil {
			return nil, nil, fmt.Errorf("failed to cancel original document: %w", err)
		}
		original.Status = domain.DocumentStatusCancelled
	}

	full, err := s.docRepo.GetByID(ctx, tx, user.ID, doc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload document: %w", err)
	}
	pdfPath, err := s.render(ctx, full, user)
	if err != nil {
		return nil, nil, err
	}
	if err := s.docRepo.UpdatePDFPath(ctx, tx, full.ID, pdfPath); err != nil {
		return nil, nil, err
	}
	full.PDFPath = pdfPath

	if err := s.recordCreation(ctx, tx, full, original, fullCredit); err != nil {
		return nil, nil, err
	}

	if original != nil {
		original, err = s.docRepo.GetByID(ctx, tx, user.ID, original.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to reload original document: %w", err)
		}
	}
	return full, original, nil
}

// applyCredit fills the items, notes and defaults of a credit note and returns its totals
func (s *DocumentService) applyCredit(ctx context.Context, tx *gorm.DB, doc, original *domain.Document, req *domain.CreateDocumentRequest, promoteToFull bool) (money.Totals, bool, error) {
	full := req.PartialAmount == nil
	if !full {
		if !req.PartialAmount.IsPositive() {
			return money.Totals{}, false, fmt.Errorf("%w: partial amount must be positive", ErrInvalidAmount)
		}
		full = promoteToFull && req.PartialAmount.GreaterThanOrEqual(original.TotalAmount)
	}

	var totals money.Totals
	if full {
		doc.Items = s.items.BuildFullCredit(original)
		totals = money.ComputeTotals(LineTotals(doc.Items), original.VATRate)
	} else {
		doc.Items = s.items.BuildPartialCredit(*req.PartialAmount, req.Reason)
		totals = money.PartialCreditTotals(*req.PartialAmount)
	}

	if s.opts.EnforceCreditCeiling {
		credited, err := s.docRepo.SumCredits(ctx, tx, original.ID)
		if err != nil {
			return money.Totals{}, false, err
		}
		if credited.Add(totals.Total.Abs()).GreaterThan(original.TotalAmount) {
			return money.Totals{}, false, fmt.Errorf("%w: %s already credited of %s",
				ErrCreditExceedsOriginal, money.Format(credited), money.Format(original.TotalAmount))
		}
	}

	originalID := original.ID
	doc.OriginalDocumentID = &originalID
	if doc.ClientID == nil {
		doc.ClientID = original.ClientID
	}
	if doc.Currency == "" {
		doc.Currency = original.Currency
	}
	if doc.PaymentMethod == "" {
		doc.PaymentMethod = original.PaymentMethod
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		doc.Notes = reason
	}
	if doc.Notes == "" {
		doc.Notes = fmt.Sprintf("זיכוי עבור %s מספר %s", original.DocumentType.Label(), original.DocumentNumber)
	}
	return totals, full, nil
}

// lockOriginal loads and locks the document being credited and checks it may be credited
func (s *DocumentService) lockOriginal(ctx context.Context, tx *gorm.DB, userID, id uuid.UUID) (*domain.Document, error) {
	original, err := s.docRepo.GetForUpdate(ctx, tx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOriginalNotFound, id)
		}
		return nil, fmt.Errorf("failed to load original document: %w", err)
	}
	switch {
	case original.IsCreditNote():
		return nil, fmt.Errorf("%w: cannot credit credit note %s", ErrInvalidOperation, original.DocumentNumber)
	case original.Status == domain.DocumentStatusCancelled:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCancelled, original.DocumentNumber)
	}
	if err := EnsureMutable(original); err != nil {
		return nil, err
	}
	return original, nil
}

func (s *DocumentService) lockUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

type renderResult struct {
	path string
	err  error
}

// render calls the renderer with a deadline. The transaction is never held open past it.
func (s *DocumentService) render(ctx context.Context, doc *domain.Document, user *domain.User) (string, error) {
	renderCtx, cancel := context.WithTimeout(ctx, s.opts.PDFTimeout)
	defer cancel()

	done := make(chan renderResult, 1)
	go func() {
		path, err := s.renderer.Render(renderCtx, doc, user)
		done <- renderResult{path: path, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			s.logger.Error("failed to render document",
				zap.String("document_id", doc.ID.String()),
				zap.Error(res.err))
			return "", fmt.Errorf("%w: %v", ErrRenderingFailed, res.err)
		}
		if res.path == "" {
			return "", fmt.Errorf("%w: renderer returned no artifact", ErrRenderingFailed)
		}
		return res.path, nil
	case <-renderCtx.Done():
		s.logger.Error("document rendering timed out",
			zap.String("document_id", doc.ID.String()),
			zap.Duration("timeout", s.opts.PDFTimeout))
		return "", fmt.Errorf("%w: timed out after %s", ErrRenderingFailed, s.opts.PDFTimeout)
	}
}

func (s *DocumentService) recordCreation(ctx context.Context, tx *gorm.DB, doc, original *domain.Document, fullCredit bool) error {
	details := map[string]interface{}{
		"documentNumber": doc.DocumentNumber,
		"documentType":   doc.DocumentType,
		"totalAmount":    money.Format(doc.TotalAmount),
	}
	if original != nil {
		details["originalDocumentId"] = original.ID
		details["fullCredit"] = fullCredit
	}
	docID := doc.ID
	if err := s.audit.Record(ctx, tx, LogEntry{
		Action:     domain.AuditActionCreate,
		EntityType: entityDocument,
		EntityID:   &docID,
		Details:    details,
	}); err != nil {
		return err
	}
	if !fullCredit {
		return nil
	}
	originalID := original.ID
	return s.audit.Record(ctx, tx, LogEntry{
		Action:     domain.AuditActionCancel,
		EntityType: entityDocument,
		EntityID:   &originalID,
		Details: map[string]interface{}{
			"documentNumber":   original.DocumentNumber,
			"creditNoteId":     doc.ID,
			"creditNoteNumber": doc.DocumentNumber,
		},
	})
}

// ============================================================================
// Status
// ============================================================================

// SetStatus changes the status of a document. Setting the current status is a no-op.
// With strict transitions enabled, only edges of the status state machine are accepted.
func (s *DocumentService) SetStatus(ctx context.Context, userID, documentID uuid.UUID, status string) (*domain.DocumentDTO, error) {
	next := domain.DocumentStatus(strings.TrimSpace(status))
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated *domain.Document
	var previous domain.DocumentStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc, err := s.docRepo.GetForUpdate(ctx, tx, userID, documentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDocumentNotFound
			}
			return fmt.Errorf("failed to load document: %w", err)
		}
		if err := EnsureMutable(doc); err != nil {
			return err
		}
		previous = doc.Status

		if doc.Status != next {
			if s.opts.StrictStatusTransitions && !domain.CanTransition(doc.Status, next) {
				return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, doc.Status, next)
			}
			if err := s.docRepo.UpdateStatus(ctx, tx, doc.ID, next); err != nil {
				return err
			}
			docID := doc.ID
			if err := s.audit.Record(ctx, tx, LogEntry{
				Action:     domain.AuditActionStatusChange,
				EntityType: entityDocument,
				EntityID:   &docID,
				Details: map[string]interface{}{
					"documentNumber": doc.DocumentNumber,
					"from":           doc.Status,
					"to":             next,
				},
			}); err != nil {
				return err
			}
		}

		updated, err = s.docRepo.GetByID(ctx, tx, userID, doc.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if previous != next {
		s.logger.Info("document status changed",
			zap.String("document_id", documentID.String()),
			zap.String("from", string(previous)),
			zap.String("to", string(next)))
	}

	dto := mapper.ToDocumentDTO(updated)
	return &dto, nil
}

// MarkOverdue moves pending, mutable documents whose due date passed before asOf to overdue.
// Rows that changed since the scan are skipped.
func (s *DocumentService) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.docRepo.ListOverdueIDs(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue documents: %w", err)
	}

	marked := 0
	for _, id := range ids {
		changed, err := s.docRepo.MarkOverdue(ctx, id)
		if err != nil {
			s.logger.Error("failed to mark document overdue",
				zap.String("document_id", id.String()),
				zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		marked++
		docID := id
		if err := s.audit.Record(ctx, nil, LogEntry{
			Action:     domain.AuditActionStatusChange,
			EntityType: entityDocument,
			EntityID:   &docID,
			ActorID:    systemActor,
			Details: map[string]interface{}{
				"from": domain.DocumentStatusPending,
				"to":   domain.DocumentStatusOverdue,
			},
		}); err != nil {
			s.logger.Warn("failed to audit overdue marking", zap.Error(err))
		}
	}
	return marked, nil
}

// ============================================================================
// Queries
// ============================================================================

// GetByID returns a document of the user
func (s *DocumentService) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.DocumentDTO, error) {
	doc, err := s.docRepo.GetByID(ctx, nil, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	dto := mapper.ToDocumentDTO(doc)
	return &dto, nil
}

// List returns a page of the user's documents
func (s *DocumentService) List(ctx context.Context, userID uuid.UUID, filter *repository.DocumentFilter, page, pageSize int, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	docs, total, err := s.docRepo.List(ctx, userID, filter, page, pageSize, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return newPage(mapper.ToDocumentDTOs(docs), total, page, pageSize), nil
}

// AvailableTypes lists the document types the user's business may issue
func (s *DocumentService) AvailableTypes(ctx context.Context, userID uuid.UUID) ([]domain.DocumentTypeOption, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return mapper.ToDocumentTypeOptions(domain.AvailableDocumentTypes(user.BusinessType)), nil
}

// GetPDF opens the stored artifact of a document. The caller closes the reader.
func (s *DocumentService) GetPDF(ctx context.Context, userID, id uuid.UUID) (io.ReadCloser, string, error) {
	doc, err := s.docRepo.GetByID(ctx, nil, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrDocumentNotFound
		}
		return nil, "", fmt.Errorf("failed to get document: %w", err)
	}
	if doc.PDFPath == "" {
		return nil, "", ErrPDFNotAvailable
	}

	rc, err := s.store.Get(ctx, doc.PDFPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrPDFNotAvailable
		}
		return nil, "", fmt.Errorf("failed to open pdf: %w", err)
	}
	return rc, fmt.Sprintf("%s_%s.pdf", doc.DocumentType, doc.DocumentNumber), nil
}

// writeFailed translates a failed creation transaction. A number collision means the sequence
// lags documents written elsewhere; it is raised past them so the caller can simply retry.
func (s *DocumentService) writeFailed(ctx context.Context, userID uuid.UUID, err error) error {
	err = translateWriteError(err)
	if !errors.Is(err, ErrConflict) {
		return err
	}
	if current, syncErr := s.numbers.Sync(context.WithoutCancel(ctx), userID); syncErr != nil {
		s.logger.Warn("failed to resync document sequence after conflict",
			zap.String("user_id", userID.String()),
			zap.Error(syncErr))
	} else {
		s.logger.Warn("document number collided, sequence resynced",
			zap.String("user_id", userID.String()),
			zap.Int("sequence", current))
	}
	return err
}

// translateWriteError maps storage-level uniqueness violations to ErrConflict
func translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
