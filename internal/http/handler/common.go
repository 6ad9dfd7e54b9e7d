package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/auth"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/repository"
	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondValidationError sends a standardized validation error response with specific field messages
func respondValidationError(w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[toJSONFieldName(fe.Namespace())] = formatValidationError(fe)
		}
	}

	respondProblem(w, &domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: fields,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "email":
		return "Must be a valid email address"
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName turns a validator namespace such as CreateDocumentRequest.Items[1].Description
// into items[1].description
func toJSONFieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondProblem(w, domain.NewAPIError(status, getErrorType(status), message))
}

func respondProblem(w http.ResponseWriter, problem *domain.APIError) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// getErrorType returns the appropriate error type for an HTTP status code
func getErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return domain.ErrorTypeBadRequest
	case http.StatusUnauthorized:
		return domain.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return domain.ErrorTypeForbidden
	case http.StatusNotFound:
		return domain.ErrorTypeNotFound
	case http.StatusConflict:
		return domain.ErrorTypeConflict
	case http.StatusUnprocessableEntity:
		return domain.ErrorTypeUnprocessable
	default:
		return domain.ErrorTypeInternal
	}
}

// serviceErrors maps service sentinels to problem responses. Order matters: ItemError
// also matches its cause, so ErrInvalidItem is checked first.
var serviceErrors = []struct {
	err     error
	status  int
	errType string
}{
	{service.ErrInvalidItem, http.StatusBadRequest, domain.ErrorTypeInvalidItem},
	{service.ErrImmutableDocument, http.StatusConflict, domain.ErrorTypeImmutable},
	{service.ErrAlreadyCancelled, http.StatusConflict, domain.ErrorTypeInvalidState},
	{service.ErrIllegalTransition, http.StatusConflict, domain.ErrorTypeInvalidState},
	{service.ErrAllocationAlreadyRequested, http.StatusConflict, domain.ErrorTypeConflict},
	{service.ErrConflict, http.StatusConflict, domain.ErrorTypeConflict},
	{service.ErrCreditExceedsOriginal, http.StatusUnprocessableEntity, domain.ErrorTypeUnprocessable},
	{service.ErrAllocationNotEligible, http.StatusUnprocessableEntity, domain.ErrorTypeUnprocessable},
	{service.ErrAllocationRequesterRejected, http.StatusBadGateway, domain.ErrorTypeUnprocessable},
	{service.ErrDocumentTypeNotAllowed, http.StatusForbidden, domain.ErrorTypeForbidden},
	{service.ErrForbidden, http.StatusForbidden, domain.ErrorTypeForbidden},
	{service.ErrUnauthorized, http.StatusUnauthorized, domain.ErrorTypeUnauthorized},
	{service.ErrDocumentNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrOriginalNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrClientNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrServiceNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrUserNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrAllocationNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrPDFNotAvailable, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrNotFound, http.StatusNotFound, domain.ErrorTypeNotFound},
	{service.ErrInvalidType, http.StatusBadRequest, domain.ErrorTypeValidation},
	{service.ErrEmptyDocument, http.StatusBadRequest, domain.ErrorTypeValidation},
	{service.ErrInvalidAmount, http.StatusBadRequest, domain.ErrorTypeValidation},
	{service.ErrInvalidOperation, http.StatusBadRequest, domain.ErrorTypeBadRequest},
	{service.ErrInvalidStatus, http.StatusBadRequest, domain.ErrorTypeValidation},
	{service.ErrUnknownReport, http.StatusBadRequest, domain.ErrorTypeBadRequest},
	{service.ErrInvalidInput, http.StatusBadRequest, domain.ErrorTypeValidation},
	{service.ErrRenderingFailed, http.StatusInternalServerError, domain.ErrorTypeRenderingFailed},
}

// handleServiceError writes the problem response for err. Unknown errors are logged and hidden.
func handleServiceError(w http.ResponseWriter, logger *zap.Logger, err error, operation string) {
	for _, m := range serviceErrors {
		if !errors.Is(err, m.err) {
			continue
		}
		problem := domain.NewAPIError(m.status, m.errType, err.Error())
		var itemErr *service.ItemError
		if errors.As(err, &itemErr) {
			problem.Errors = map[string]string{
				fmt.Sprintf("items[%d].%s", itemErr.Index, itemErr.Field): itemErr.Error(),
			}
		}
		if m.status >= http.StatusInternalServerError {
			logger.Error(operation+" failed", zap.Error(err))
			problem.Detail = "Document could not be rendered, nothing was saved"
		}
		respondProblem(w, problem)
		return
	}

	logger.Error(operation+" failed", zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "An unexpected error occurred")
}

// decodeJSON decodes and validates a request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

// currentUserID returns the business owner the request acts for
func currentUserID(r *http.Request) uuid.UUID {
	return auth.MustFromContext(r.Context()).UserID
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID format", what))
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	return repository.NormalizePage(page, pageSize)
}

func parseSort(r *http.Request) repository.SortConfig {
	sort := repository.DefaultSortConfig()
	if field := r.URL.Query().Get("sortBy"); field != "" {
		sort.Field = field
	}
	if order := r.URL.Query().Get("sortOrder"); order != "" {
		sort.Order = repository.ParseSortOrder(order)
	}
	return sort
}

// parseDateParam accepts YYYY-MM-DD or RFC 3339
func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s date %q", name, raw)
}

func parseBoolParam(r *http.Request, name string, fallback bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}
