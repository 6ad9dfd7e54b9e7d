package handler

import (
	"net/http"

	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

type AllocationHandler struct {
	allocationService *service.AllocationService
	logger            *zap.Logger
}

func NewAllocationHandler(allocationService *service.AllocationService, logger *zap.Logger) *AllocationHandler {
	return &AllocationHandler{allocationService: allocationService, logger: logger}
}

// Request godoc
// @Summary Request an allocation number
// @Description Submits the document to the tax authority. On success the document becomes immutable.
// @Tags Allocation
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Success 201 {object} domain.AllocationRequestDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Already requested"
// @Failure 422 {object} domain.APIError "Not eligible"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/allocation [post]
func (h *AllocationHandler) Request(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return
	}
	result, err := h.allocationService.RequestAllocation(r.Context(), currentUserID(r), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "request allocation")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// Status godoc
// @Summary Allocation request of a document
// @Tags Allocation
// @Produce json
// @Param id path string true "Document ID" format(uuid)
// @Success 200 {object} domain.AllocationRequestDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /documents/{id}/allocation [get]
func (h *AllocationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "document")
	if !ok {
		return
	}
	result, err := h.allocationService.GetStatus(r.Context(), currentUserID(r), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get allocation status")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// History godoc
// @Summary Allocation request history
// @Tags Allocation
// @Produce json
// @Param status query string false "Status" Enums(pending, success, failed)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.AllocationRequestDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /allocations [get]
func (h *AllocationHandler) History(w http.ResponseWriter, r *http.Request) {
	var status *domain.AllocationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.AllocationStatus(raw)
		status = &s
	}
	page, pageSize := parsePagination(r)
	result, err := h.allocationService.History(r.Context(), currentUserID(r), status, page, pageSize)
	if err != nil {
		handleServiceError(w, h.logger, err, "list allocations")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
