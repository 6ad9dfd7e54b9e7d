package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zmanup/invoicing-api/internal/auth"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/repository"
	"github.com/zmanup/invoicing-api/internal/service"
	"github.com/zmanup/invoicing-api/internal/storage"
	"github.com/zmanup/invoicing-api/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, doc *domain.Document, user *domain.User) (string, error) {
	args := m.Called(ctx, doc, user)
	return args.String(0), args.Error(1)
}

// fixture wires the document services against a fresh database
type fixture struct {
	db       *gorm.DB
	renderer *mockRenderer
	store    *storage.LocalStorage
	docRepo  *repository.DocumentRepository
	seqRepo  *repository.DocumentSequenceRepository
	numbers  *service.DocumentNumberService
	gate     *service.ImmutabilityGate
	audit    *service.AuditLogService
	docs     *service.DocumentService
}

func newFixture(t *testing.T, opts service.DocumentOptions) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	docRepo := repository.NewDocumentRepository(db)
	seqRepo := repository.NewDocumentSequenceRepository(db)
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), logger)
	numbers := service.NewDocumentNumberService(seqRepo, docRepo, userRepo, logger)
	items := service.NewLineItemBuilder(serviceRepo)
	renderer := &mockRenderer{}

	f := &fixture{
		db:       db,
		renderer: renderer,
		store:    store,
		docRepo:  docRepo,
		seqRepo:  seqRepo,
		numbers:  numbers,
		gate:     service.NewImmutabilityGate(docRepo, logger),
		audit:    audit,
	}
	f.docs = service.NewDocumentService(docRepo, userRepo, clientRepo, serviceRepo, numbers, items, audit,
		renderer, store, opts, logger, db)
	return f
}

// renderOK makes every render succeed with a path derived from the document number
func (f *fixture) renderOK() {
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Return("pdfs/test.pdf", nil)
}

func userContext(user *domain.User) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		BusinessType: user.BusinessType,
	})
}

func item(description string, qty int, price string) domain.ItemInput {
	p := decimal.RequireFromString(price)
	return domain.ItemInput{Description: description, Quantity: &qty, UnitPrice: &p}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func countDocuments(t *testing.T, db *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Document{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func countAudit(t *testing.T, db *gorm.DB, action domain.AuditAction, entityID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.AuditLog{}).
		Where("action = ? AND entity_id = ?", action, entityID).
		Count(&n).Error)
	return n
}

func reloadUser(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.User {
	t.Helper()
	var user domain.User
	require.NoError(t, db.First(&user, "id = ?", id).Error)
	return &user
}

func reloadDocument(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.Document {
	t.Helper()
	var doc domain.Document
	require.NoError(t, db.Preload("Items").First(&doc, "id = ?", id).Error)
	return &doc
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -n)
}

func defaultSort() repository.SortConfig {
	return repository.DefaultSortConfig()
}
