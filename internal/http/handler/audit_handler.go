package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/repository"
	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

// AuditHandler serves the audit trail
type AuditHandler struct {
	auditService *service.AuditLogService
	logger       *zap.Logger
}

func NewAuditHandler(auditService *service.AuditLogService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// List godoc
// @Summary List audit logs
// @Description Paginated audit trail. Non-admin users only see their own entries.
// @Tags Audit
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 200)"
// @Param actorId query string false "Acting user ID, \"system\" or an API key actor (admins only)"
// @Param action query string false "Filter by action"
// @Param entityType query string false "Filter by entity type"
// @Param entityId query string false "Filter by entity ID"
// @Param from query string false "Performed at or after (YYYY-MM-DD or RFC3339)"
// @Param to query string false "Performed at or before (YYYY-MM-DD or RFC3339)"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.AuditLogDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &repository.AuditLogFilter{
		ActorID:    q.Get("actorId"),
		EntityType: q.Get("entityType"),
	}
	if raw := q.Get("action"); raw != "" {
		action := domain.AuditAction(raw)
		filter.Action = &action
	}
	if raw := q.Get("entityId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid entity ID format")
			return
		}
		filter.EntityID = &id
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
	result, err := h.auditService.List(r.Context(), filter, page, pageSize)
	if err != nil {
		handleServiceError(w, h.logger, err, "list audit logs")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
