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

// ClientService manages the clients documents are issued to
type ClientService struct {
	clientRepo *repository.ClientRepository
	audit      *AuditLogService
	logger     *zap.Logger
}

// NewClientService creates a new ClientService
func NewClientService(clientRepo *repository.ClientRepository, audit *AuditLogService, logger *zap.Logger) *ClientService {
	return &ClientService{clientRepo: clientRepo, audit: audit, logger: logger}
}

// Create adds a client for the user
func (s *ClientService) Create(ctx context.Context, userID uuid.UUID, req *domain.CreateClientRequest) (*domain.ClientDTO, error) {
	client := &domain.Client{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		UserID:    userID,
		IsActive:  true,
	}
	if err := applyClientFields(client, req); err != nil {
		return nil, err
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	clientID := client.ID
	if err := s.audit.Record(ctx, nil, LogEntry{
		Action:     domain.AuditActionCreate,
		EntityType: "client",
		EntityID:   &clientID,
		Details:    map[string]interface{}{"name": client.DisplayName()},
	}); err != nil {
		s.logger.Warn("failed to audit client creation", zap.Error(err))
	}

	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// GetByID returns a client of the user
func (s *ClientService) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.ClientDTO, error) {
	client, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// Update replaces the editable fields of a client
func (s *ClientService) Update(ctx context.Context, userID, id uuid.UUID, req *domain.UpdateClientRequest) (*domain.ClientDTO, error) {
	client, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := applyClientFields(client, &req.CreateClientRequest); err != nil {
		return nil, err
	}
	if req.IsActive != nil {
		client.IsActive = *req.IsActive
	}

	if err := s.clientRepo.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	clientID := client.ID
	if err := s.audit.Record(ctx, nil, LogEntry{
		Action:     domain.AuditActionUpdate,
		EntityType: "client",
		EntityID:   &clientID,
	}); err != nil {
		s.logger.Warn("failed to audit client update", zap.Error(err))
	}

	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

// List returns a page of the user's clients
func (s *ClientService) List(ctx context.Context, userID uuid.UUID, page, pageSize int, search string, activeOnly bool) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	clients, total, err := s.clientRepo.List(ctx, userID, page, pageSize, search, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	dtos := make([]domain.ClientDTO, len(clients))
	for i := range clients {
		dtos[i] = mapper.ToClientDTO(&clients[i])
	}
	return newPage(dtos, total, page, pageSize), nil
}

func (s *ClientService) get(ctx context.Context, userID, id uuid.UUID) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, nil, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// applyClientFields copies request fields onto client. Businesses need a business name,
// individuals a first or last name.
func applyClientFields(client *domain.Client, req *domain.CreateClientRequest) error {
	clientType := domain.ClientType(req.ClientType)
	if !clientType.IsValid() {
		return fmt.Errorf("%w: unknown client type %q", ErrInvalidInput, req.ClientType)
	}

	client.ClientType = clientType
	client.FirstName = strings.TrimSpace(req.FirstName)
	client.LastName = strings.TrimSpace(req.LastName)
	client.BusinessName = strings.TrimSpace(req.BusinessName)
	client.BusinessID = strings.TrimSpace(req.BusinessID)
	client.Email = strings.TrimSpace(req.Email)
	client.Phone = strings.TrimSpace(req.Phone)
	client.Address = strings.TrimSpace(req.Address)
	client.City = strings.TrimSpace(req.City)
	client.ZipCode = strings.TrimSpace(req.ZipCode)

	switch {
	case clientType == domain.ClientTypeBusiness && client.BusinessName == "":
		return fmt.Errorf("%w: business clients need a business name", ErrInvalidInput)
	case clientType == domain.ClientTypeIndividual && client.FirstName == "" && client.LastName == "":
		return fmt.Errorf("%w: individual clients need a name", ErrInvalidInput)
	}
	return nil
}
