package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/mapper"
	"github.com/zmanup/invoicing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService manages business owner accounts and their numbering settings
type UserService struct {
	userRepo *repository.UserRepository
	audit    *AuditLogService
	logger   *zap.Logger
	db       *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(userRepo *repository.UserRepository, audit *AuditLogService, logger *zap.Logger, db *gorm.DB) *UserService {
	return &UserService{userRepo: userRepo, audit: audit, logger: logger, db: db}
}

// Create registers a business owner
func (s *UserService) Create(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserDTO, error) {
	businessType := domain.BusinessType(req.BusinessType)
	if !businessType.IsValid() {
		return nil, fmt.Errorf("%w: unknown business type %q", ErrInvalidInput, req.BusinessType)
	}
	role := domain.UserRole(req.Role)
	if role == "" {
		role = domain.UserRoleUser
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}
	if req.StartReceiptNumber < 0 {
		return nil, fmt.Errorf("%w: start number must not be negative", ErrInvalidInput)
	}

	user := &domain.User{
		BaseModel:          domain.BaseModel{ID: uuid.New()},
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		BusinessName:       strings.TrimSpace(req.BusinessName),
		BusinessID:         strings.TrimSpace(req.BusinessID),
		BusinessType:       businessType,
		StartReceiptNumber: req.StartReceiptNumber,
		Role:               role,
		IsActive:           true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: email %s is taken", ErrConflict, user.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("business_type", string(user.BusinessType)))

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// Me returns the profile of a user
func (s *UserService) Me(ctx context.Context, userID uuid.UUID) (*domain.UserDTO, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// GetByEmail looks a user up by email
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetStartNumber sets the numbering watermark. It is applied under the same lock document creation takes,
// and never causes an already issued number to be reissued.
func (s *UserService) SetStartNumber(ctx context.Context, userID uuid.UUID, start int) (*domain.UserDTO, error) {
	if start < 1 {
		return nil, fmt.Errorf("%w: start number must be at least 1", ErrInvalidInput)
	}

	var user *domain.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = s.userRepo.GetForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load user: %w", err)
		}
		previous := user.StartReceiptNumber
		if err := s.userRepo.SetStartReceiptNumber(ctx, tx, userID, start); err != nil {
			return err
		}
		user.StartReceiptNumber = start

		id := user.ID
		return s.audit.Record(ctx, tx, LogEntry{
			Action:     domain.AuditActionUpdate,
			EntityType: "user",
			EntityID:   &id,
			Details: map[string]interface{}{
				"startReceiptNumber": start,
				"previous":           previous,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

// List returns every user, for the CLI
func (s *UserService) List(ctx context.Context) ([]domain.UserDTO, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	dtos := make([]domain.UserDTO, len(users))
	for i := range users {
		dtos[i] = mapper.ToUserDTO(&users[i])
	}
	return dtos, nil
}
