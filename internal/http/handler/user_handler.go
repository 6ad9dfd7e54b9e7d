package handler

import (
	"net/http"

	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/service"
	"go.uber.org/zap"
)

// NumberingDTO reports the document numbering state of the current user
type NumberingDTO struct {
	LastIssued         int    `json:"lastIssued"`
	StartReceiptNumber int    `json:"startReceiptNumber"`
	NextNumber         string `json:"nextNumber"`
}

type UserHandler struct {
	userService   *service.UserService
	numberService *service.DocumentNumberService
	logger        *zap.Logger
}

func NewUserHandler(userService *service.UserService, numberService *service.DocumentNumberService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService:   userService,
		numberService: numberService,
		logger:        logger,
	}
}

// Me godoc
// @Summary Get current user
// @Description The authenticated business owner with the document types their business type may issue
// @Tags Users
// @Produce json
// @Success 200 {object} domain.UserDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Me(r.Context(), currentUserID(r))
	if err != nil {
		handleServiceError(w, h.logger, err, "get current user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Numbering godoc
// @Summary Document numbering state
// @Tags Users
// @Produce json
// @Success 200 {object} NumberingDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /me/numbering [get]
func (h *UserHandler) Numbering(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	user, err := h.userService.Me(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "get numbering")
		return
	}
	last, err := h.numberService.Current(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, err, "get numbering")
		return
	}
	respondJSON(w, http.StatusOK, NumberingDTO{
		LastIssued:         last,
		StartReceiptNumber: user.StartReceiptNumber,
		NextNumber:         domain.FormatDocumentNumber(domain.NextDocumentNumber(last, user.StartReceiptNumber)),
	})
}

// UpdateNumbering godoc
// @Summary Set the starting document number
// @Description Numbers already issued are never reused; a start below the last issued number has no effect.
// @Tags Users
// @Accept json
// @Produce json
// @Param request body domain.UpdateNumberingRequest true "Start number"
// @Success 200 {object} domain.UserDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /me/numbering [put]
func (h *UserHandler) UpdateNumbering(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNumberingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.userService.SetStartNumber(r.Context(), currentUserID(r), req.StartReceiptNumber)
	if err != nil {
		handleServiceError(w, h.logger, err, "set start number")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Create godoc
// @Summary Create a business owner account
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body domain.CreateUserRequest true "User data"
// @Success 201 {object} domain.UserDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Email already registered"
// @Security ApiKeyAuth
// @Router /admin/users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.userService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create user")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// List godoc
// @Summary List business owner accounts
// @Tags Admin
// @Produce json
// @Success 200 {array} domain.UserDTO
// @Security ApiKeyAuth
// @Router /admin/users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}
