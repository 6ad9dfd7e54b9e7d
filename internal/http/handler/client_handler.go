package handler

import (
	"net/http"

	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

type ClientHandler struct {
	clientService *service.ClientService
	logger        *zap.Logger
}

func NewClientHandler(clientService *service.ClientService, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{clientService: clientService, logger: logger}
}

// List godoc
// @Summary List clients
// @Tags Clients
// @Produce json
// @Param search query string false "Search by name, business id or email"
// @Param active query bool false "Only active clients" default(true)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ClientDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /clients [get]
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	result, err := h.clientService.List(r.Context(), currentUserID(r), page, pageSize,
		r.URL.Query().Get("search"), parseBoolParam(r, "active", true))
	if err != nil {
		handleServiceError(w, h.logger, err, "list clients")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get client
// @Tags Clients
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Success 200 {object} domain.ClientDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /clients/{id} [get]
func (h *ClientHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "client")
	if !ok {
		return
	}
	client, err := h.clientService.GetByID(r.Context(), currentUserID(r), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// Create godoc
// @Summary Create client
// @Tags Clients
// @Accept json
// @Produce json
// @Param request body domain.CreateClientRequest true "Client data"
// @Success 201 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /clients [post]
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	client, err := h.clientService.Create(r.Context(), currentUserID(r), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create client")
		return
	}
	respondJSON(w, http.StatusCreated, client)
}

// Update godoc
// @Summary Update client
// @Tags Clients
// @Accept json
// @Produce json
// @Param id path string true "Client ID" format(uuid)
// @Param request body domain.UpdateClientRequest true "Client data"
// @Success 200 {object} domain.ClientDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /clients/{id} [put]
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "client")
	if !ok {
		return
	}
	var req domain.UpdateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	client, err := h.clientService.Update(r.Context(), currentUserID(r), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}
