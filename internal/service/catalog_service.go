package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/mapper"
	"github.com/zmanup/invoicing-api/internal/money"
	"github.com/zmanup/invoicing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService manages the services line items may reference
type CatalogService struct {
	serviceRepo     *repository.ServiceRepository
	defaultCurrency string
	logger          *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(serviceRepo *repository.ServiceRepository, defaultCurrency string, logger *zap.Logger) *CatalogService {
	if defaultCurrency == "" {
		defaultCurrency = "ILS"
	}
	return &CatalogService{serviceRepo: serviceRepo, defaultCurrency: defaultCurrency, logger: logger}
}

// Create adds a catalog entry
func (s *CatalogService) Create(ctx context.Context, userID uuid.UUID, req *domain.CreateServiceRequest) (*domain.ServiceDTO, error) {
	svc := &domain.Service{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		UserID:    userID,
		IsActive:  true,
	}
	if err := s.applyFields(svc, req); err != nil {
		return nil, err
	}
	if err := s.serviceRepo.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	s.logger.Debug("service created", zap.String("service_id", svc.ID.String()))
	dto := mapper.ToServiceDTO(svc)
	return &dto, nil
}

// GetByID returns a catalog entry of the user
func (s *CatalogService) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.ServiceDTO, error) {
	svc, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToServiceDTO(svc)
	return &dto, nil
}

// Update replaces the editable fields of a catalog entry
func (s *CatalogService) Update(ctx context.Context, userID, id uuid.UUID, req *domain.UpdateServiceRequest) (*domain.ServiceDTO, error) {
	svc, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyFields(svc, &req.CreateServiceRequest); err != nil {
		return nil, err
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	if err := s.serviceRepo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	dto := mapper.ToServiceDTO(svc)
	return &dto, nil
}

// List returns a page of catalog entries, most used first
func (s *CatalogService) List(ctx context.Context, userID uuid.UUID, page, pageSize int, search string, activeOnly bool) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	services, total, err := s.serviceRepo.List(ctx, userID, page, pageSize, search, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	dtos := make([]domain.ServiceDTO, len(services))
	for i := range services {
		dtos[i] = mapper.ToServiceDTO(&services[i])
	}
	return newPage(dtos, total, page, pageSize), nil
}

func (s *CatalogService) get(ctx context.Context, userID, id uuid.UUID) (*domain.Service, error) {
	svc, err := s.serviceRepo.GetByID(ctx, nil, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}

func (s *CatalogService) applyFields(svc *domain.Service, req *domain.CreateServiceRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	svc.Name = name
	svc.Price = money.Round2(req.Price)
	svc.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if svc.Currency == "" {
		svc.Currency = s.defaultCurrency
	}
	svc.Unit = strings.TrimSpace(req.Unit)
	svc.Category = strings.TrimSpace(req.Category)
	svc.Notes = strings.TrimSpace(req.Notes)
	return nil
}
