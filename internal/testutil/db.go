// Package testutil provides database fixtures for package tests
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/zmanup/invoicing-api/internal/database"
	"github.com/zmanup/invoicing-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// SetupTestDB opens a fresh SQLite database in a temp dir and migrates every model.
// A single connection serialises transactions the way row locks do on PostgreSQL.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), database.GormConfig(zap.NewNop()))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateTestUser inserts an active user of the given business type
func CreateTestUser(t *testing.T, db *gorm.DB, businessType domain.BusinessType) *domain.User {
	t.Helper()
	n := seq.Add(1)
	user := &domain.User{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		Email:        fmt.Sprintf("owner%d@example.co.il", n),
		BusinessName: fmt.Sprintf("Business %d", n),
		BusinessID:   fmt.Sprintf("5%08d", n),
		BusinessType: businessType,
		Role:         domain.UserRoleUser,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestClient inserts a client owned by userID
func CreateTestClient(t *testing.T, db *gorm.DB, userID uuid.UUID, clientType domain.ClientType) *domain.Client {
	t.Helper()
	n := seq.Add(1)
	client := &domain.Client{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		UserID:       userID,
		FirstName:    "Dana",
		LastName:     fmt.Sprintf("Levi %d", n),
		BusinessName: fmt.Sprintf("Client Ltd %d", n),
		BusinessID:   fmt.Sprintf("51%07d", n),
		ClientType:   clientType,
		IsActive:     true,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

// CreateTestService inserts a catalog service owned by userID
func CreateTestService(t *testing.T, db *gorm.DB, userID uuid.UUID, price string) *domain.Service {
	t.Helper()
	svc := &domain.Service{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		UserID:    userID,
		Name:      fmt.Sprintf("Service %d", seq.Add(1)),
		Price:     decimal.RequireFromString(price),
		Currency:  "ILS",
		IsActive:  true,
	}
	require.NoError(t, db.Create(svc).Error)
	return svc
}

// DocumentFixture describes a document inserted directly, bypassing numbering and rendering
type DocumentFixture struct {
	UserID    uuid.UUID
	ClientID  *uuid.UUID
	Number    string
	Type      domain.DocumentType
	Status    domain.DocumentStatus
	Subtotal  string
	VATRate   string
	Immutable bool
	DueDate   *time.Time
	CreatedAt time.Time
}

// CreateTestDocument inserts a document with a single item matching its subtotal
func CreateTestDocument(t *testing.T, db *gorm.DB, f DocumentFixture) *domain.Document {
	t.Helper()
	if f.Type == "" {
		f.Type = domain.DocumentTypeTaxInvoice
	}
	if f.Status == "" {
		f.Status = domain.DocumentStatusDraft
	}
	if f.Subtotal == "" {
		f.Subtotal = "100.00"
	}
	if f.VATRate == "" {
		f.VATRate = "0.18"
	}
	if f.Number == "" {
		f.Number = fmt.Sprintf("9%04d", seq.Add(1)%10000)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	subtotal := decimal.RequireFromString(f.Subtotal)
	rate := decimal.RequireFromString(f.VATRate)
	vat := subtotal.Mul(rate).Round(2)

	docID := uuid.New()
	doc := &domain.Document{
		BaseModel:      domain.BaseModel{ID: docID, CreatedAt: f.CreatedAt, UpdatedAt: f.CreatedAt},
		UserID:         f.UserID,
		ClientID:       f.ClientID,
		DocumentNumber: f.Number,
		DocumentType:   f.Type,
		Status:         f.Status,
		IssueDate:      f.CreatedAt,
		DueDate:        f.DueDate,
		Subtotal:       subtotal,
		VATRate:        rate,
		VATAmount:      vat,
		TotalAmount:    subtotal.Add(vat),
		Currency:       "ILS",
		PaymentMethod:  domain.PaymentMethodBank,
		IsImmutable:    f.Immutable,
		Items: []domain.DocumentItem{{
			BaseModel:   domain.BaseModel{ID: uuid.New()},
			DocumentID:  docID,
			Description: "Consulting",
			Quantity:    1,
			UnitPrice:   subtotal,
			TotalPrice:  subtotal,
			SortOrder:   0,
		}},
	}
	require.NoError(t, db.Create(doc).Error)
	return doc
}
