package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/zmanup/invoicing-api/internal/auth"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/mapper"
	"github.com/zmanup/invoicing-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// systemActor is recorded for operations without an authenticated user (jobs, CLI)
const systemActor = "system"

// AuditLogService handles audit logging operations
type AuditLogService struct {
	auditRepo *repository.AuditLogRepository
	logger    *zap.Logger
}

// NewAuditLogService creates a new audit log service
func NewAuditLogService(auditRepo *repository.AuditLogRepository, logger *zap.Logger) *AuditLogService {
	return &AuditLogService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// LogEntry represents the input for creating an audit log entry
type LogEntry struct {
	Action     domain.AuditAction
	EntityType string
	EntityID   *uuid.UUID
	// ActorID overrides the user taken from the context
	ActorID string
	Details map[string]interface{}
}

// Record writes an audit entry. Passing the operation's tx makes the entry commit or roll back with it.
func (s *AuditLogService) Record(ctx context.Context, tx *gorm.DB, entry LogEntry) error {
	log := &domain.AuditLog{
		ID:          uuid.New(),
		UserID:      entry.ActorID,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Details:     "null",
		PerformedAt: time.Now().UTC(),
	}

	if log.UserID == "" {
		if userCtx, ok := auth.FromContext(ctx); ok {
			log.UserID = userCtx.UserID.String()
		} else {
			log.UserID = systemActor
		}
	}

	meta := auth.RequestMetaFromContext(ctx)
	log.IPAddress = meta.IPAddress
	log.RequestID = meta.RequestID

	if entry.Details != nil {
		if detailsJSON, err := json.Marshal(entry.Details); err == nil {
			log.Details = string(detailsJSON)
		}
	}

	if err := s.auditRepo.Create(ctx, tx, log); err != nil {
		s.logger.Error("failed to create audit log",
			zap.String("action", string(entry.Action)),
			zap.String("entity_type", entry.EntityType),
			zap.Error(err))
		return err
	}
	return nil
}

// List returns a page of audit entries. Non-admins only see their own entries.
func (s *AuditLogService) List(ctx context.Context, filter *repository.AuditLogFilter, page, pageSize int) (*domain.PaginatedResponse, error) {
	if filter == nil {
		filter = &repository.AuditLogFilter{}
	}
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if !userCtx.IsAdmin() {
		filter.ActorID = userCtx.UserID.String()
	}

	page, pageSize = repository.NormalizePage(page, pageSize)
	logs, total, err := s.auditRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	dtos := make([]domain.AuditLogDTO, len(logs))
	for i := range logs {
		dtos[i] = mapper.ToAuditLogDTO(&logs[i])
	}
	return newPage(dtos, total, page, pageSize), nil
}

// Purge deletes entries older than retentionDays. Zero keeps everything.
func (s *AuditLogService) Purge(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.auditRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("purged audit logs", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	return deleted, nil
}

// newPage builds a paginated response
func newPage(data interface{}, total int64, page, pageSize int) *domain.PaginatedResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
