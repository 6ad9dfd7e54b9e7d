package handler

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/repository"
	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	documentService *service.DocumentService
	logger          *zap.Logger
}

func NewDocumentHandler(documentService *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

// Create godoc
// @Summary Create document
// @Description Issue a new document. The number is allocated, totals are computed and the PDF is rendered in one transaction.
// @Description A credit_note with originalDocumentId credits that document, fully or by partialAmount.
// @Tags Documents
// @Accept json
// @Produce json
// @Param request body domain.CreateDocumentRequest true "Document data"
// @Success 201 {object} domain.DocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError "Document type not allowed for the business type"
// @Failure 404 {object} domain.APIError "Client, service or original document not found"
// @Failure 409 {object} domain.APIError
// @Failure 500 {object} domain.APIError "PDF rendering failed, nothing was saved"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents [post]
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := h.documentService.CreateDocument(r.Context(), currentUserID(r), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create document")
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+doc.ID.String())
	respondJSON(w, http.StatusCreated, doc)
}

// List godoc
// @Summary List documents
// @Description Paginated documents of the current user
// @Tags Documents
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param type query string false "Document type" Enums(quote, work_order, deal_invoice, receipt, tax_invoice, credit_note, transaction)
// @Param status query string false "Status" Enums(draft, sent, pending, paid, overdue, cancelled)
// @Param clientId query string false "Client ID" format(uuid)
// @Param from query string false "Issued on or after (YYYY-MM-DD)"
// @Param to query string false "Issued before (YYYY-MM-DD)"
// @Param number query string false "Document number prefix"
// @Param sortBy query string false "Sort field" Enums(createdAt, issueDate, documentNumber, totalAmount, status)
// @Param sortOrder query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.DocumentDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &repository.DocumentFilter{Number: q.Get("number")}

	if raw := q.Get("type"); raw != "" {
		t, ok := domain.ParseDocumentType(raw)
		if !ok {
			respondWithError(w, http.StatusBadRequest, "Invalid document type")
			return
		}
		filter.DocumentType = &t
	}
	if raw := q.Get("status"); raw != "" {
		s := domain.DocumentStatus(raw)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = &s
	}
	if raw := q.Get("clientId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid client ID format")
			return
		}
		filter.ClientID = &id
	}
	var err error
	if filter.From, err = parseDateParam(r, "from"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.To, err = parseDateParam(r, "to"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, pageSize := parsePagination(r)
	result, err := h.documentService.List(r.Context(), currentUserID(r), filter, page, pageSize, parseSort(r))
	if err != nil {
		handleServiceError(w, h.logger, err, "list documents")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {object} domain.DocumentDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return
	}
	doc, err := h.documentService.GetByID(r.Context(), currentUserID(r), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get document")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// Cancel godoc
// @Summary Cancel document
// @Description Issue a credit note against the document. A partialAmount below the total leaves the original open.
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param request body domain.CancelDocumentRequest false "Cancellation"
// @Success 201 {object} domain.CancelDocumentResponse
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Already cancelled or immutable"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/cancel [post]
func (h *DocumentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return
	}
	var req domain.CancelDocumentRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.documentService.CancelDocument(r.Context(), currentUserID(r), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "cancel document")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// UpdateStatus godoc
// @Summary Set document status
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Param request body domain.UpdateDocumentStatusRequest true "New status"
// @Success 200 {object} domain.DocumentDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Immutable document or illegal transition"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/status [put]
func (h *DocumentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return
	}
	var req domain.UpdateDocumentStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := h.documentService.SetStatus(r.Context(), currentUserID(r), id, req.Status)
	if err != nil {
		handleServiceError(w, h.logger, err, "set document status")
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// DownloadPDF godoc
// @Summary Download document PDF
// @Tags Documents
// @Produce application/pdf
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/pdf [get]
func (h *DocumentHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return
	}
	rc, filename, err := h.documentService.GetPDF(r.Context(), currentUserID(r), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "download pdf")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream pdf", zap.String("document_id", id.String()), zap.Error(err))
	}
}

// Types godoc
// @Summary Document types available to the current user
// @Description Exempt dealers (patur) cannot issue tax invoices
// @Tags Documents
// @Produce json
// @Success 200 {array} domain.DocumentTypeOption
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/types [get]
func (h *DocumentHandler) Types(w http.ResponseWriter, r *http.Request) {
	types, err := h.documentService.AvailableTypes(r.Context(), currentUserID(r))
	if err != nil {
		handleServiceError(w, h.logger, err, "list document types")
		return
	}
	respondJSON(w, http.StatusOK, types)
}
