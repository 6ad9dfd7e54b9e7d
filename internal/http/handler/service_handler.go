package handler

import (
	"net/http"

	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

// ServiceHandler serves the catalog of billable services
type ServiceHandler struct {
	catalogService *service.CatalogService
	logger         *zap.Logger
}

func NewServiceHandler(catalogService *service.CatalogService, logger *zap.Logger) *ServiceHandler {
	return &ServiceHandler{catalogService: catalogService, logger: logger}
}

// List godoc
// @Summary List catalog services
// @Tags Services
// @Produce json
// @Param search query string false "Search by name or category"
// @Param active query bool false "Only active services" default(true)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ServiceDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services [get]
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	result, err := h.catalogService.List(r.Context(), currentUserID(r), page, pageSize,
		r.URL.Query().Get("search"), parseBoolParam(r, "active", true))
	if err != nil {
		handleServiceError(w, h.logger, err, "list services")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get catalog service
// @Tags Services
// @Produce json
// @Param id path string true "Service ID" format(uuid)
// @Success 200 {object} domain.ServiceDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services/{id} [get]
func (h *ServiceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "service")
	if !ok {
		return
	}
	svc, err := h.catalogService.GetByID(r.Context(), currentUserID(r), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get service")
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

// Create godoc
// @Summary Create catalog service
// @Tags Services
// @Accept json
// @Produce json
// @Param request body domain.CreateServiceRequest true "Service data"
// @Success 201 {object} domain.ServiceDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services [post]
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := h.catalogService.Create(r.Context(), currentUserID(r), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create service")
		return
	}
	respondJSON(w, http.StatusCreated, svc)
}

// Update godoc
// @Summary Update catalog service
// @Tags Services
// @Accept json
// @Produce json
// @Param id path string true "Service ID" format(uuid)
// @Param request body domain.UpdateServiceRequest true "Service data"
// @Success 200 {object} domain.ServiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services/{id} [put]
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "service")
	if !ok {
		return
	}
	var req domain.UpdateServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := h.catalogService.Update(r.Context(), currentUserID(r), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update service")
		return
	}
	respondJSON(w, http.StatusOK, svc)
}
