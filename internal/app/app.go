// Package app wires repositories and services for the API server and the invoicectl CLI.
package app

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zmanup/invoicing-api/internal/config"
	"github.com/zmanup/invoicing-api/internal/pdf"
	"github.com/zmanup/invoicing-api/internal/report"
	"github.com/zmanup/invoicing-api/internal/repository"
	"github.com/zmanup/invoicing-api/internal/service"
	"github.com/zmanup/invoicing-api/internal/storage"
	"github.com/zmanup/invoicing-api/internal/taxauthority"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services is the service layer of the application
type Services struct {
	Users       *service.UserService
	Clients     *service.ClientService
	Catalog     *service.CatalogService
	Numbers     *service.DocumentNumberService
	Documents   *service.DocumentService
	Gate        *service.ImmutabilityGate
	Allocations *service.AllocationService
	Audit       *service.AuditLogService
	Reports     *service.ReportService

	UserRepo *repository.UserRepository
	Store    storage.Storage
}

// NewServices builds every service on top of db
func NewServices(cfg *config.Config, db *gorm.DB, log *zap.Logger) (*Services, error) {
	store, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	renderer, err := pdf.NewRenderer(store, cfg.PDF.FontPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pdf renderer: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	seqRepo := repository.NewDocumentSequenceRepository(db)
	allocRepo := repository.NewAllocationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	audit := service.NewAuditLogService(auditRepo, log)
	numbers := service.NewDocumentNumberService(seqRepo, docRepo, userRepo, log)
	gate := service.NewImmutabilityGate(docRepo, log)

	documents := service.NewDocumentService(
		docRepo, userRepo, clientRepo, serviceRepo,
		numbers, service.NewLineItemBuilder(serviceRepo), audit, renderer, store,
		service.DocumentOptions{
			PDFTimeout:              cfg.Documents.PDFTimeout(),
			StrictStatusTransitions: cfg.Documents.StrictStatusTransitions,
			EnforceCreditCeiling:    cfg.Documents.EnforceCreditCeiling,
			DefaultCurrency:         cfg.Documents.DefaultCurrency,
		},
		log, db,
	)

	allocations := service.NewAllocationService(
		allocRepo, docRepo, userRepo, clientRepo, gate, audit,
		taxauthority.NewMockClient(log),
		service.AllocationOptions{
			Threshold: decimal.NewFromFloat(cfg.Allocation.ThresholdAmount),
			Timeout:   cfg.Allocation.Timeout(),
		},
		log, db,
	)

	return &Services{
		Users:       service.NewUserService(userRepo, audit, log, db),
		Clients:     service.NewClientService(clientRepo, audit, log),
		Catalog:     service.NewCatalogService(serviceRepo, cfg.Documents.DefaultCurrency, log),
		Numbers:     numbers,
		Documents:   documents,
		Gate:        gate,
		Allocations: allocations,
		Audit:       audit,
		Reports:     service.NewReportService(docRepo, report.NewGenerator(), log),
		UserRepo:    userRepo,
		Store:       store,
	}, nil
}
