package service_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/repository"
	"github.com/zmanup/invoicing-api/internal/service"
	"github.com/zmanup/invoicing-api/internal/taxauthority"
	"github.com/zmanup/invoicing-api/internal/testutil"
	"go.uber.org/zap"
)

var allocationNumberPattern = regexp.MustCompile(`^AL\d{6}$`)

func newAllocationService(f *fixture, requester service.AllocationRequester) *service.AllocationService {
	return service.NewAllocationService(
		repository.NewAllocationRepository(f.db),
		f.docRepo,
		repository.NewUserRepository(f.db),
		repository.NewClientRepository(f.db),
		f.gate,
		f.audit,
		requester,
		service.AllocationOptions{Threshold: dec("5000")},
		zap.NewNop(),
		f.db,
	)
}

func largeInvoice(t *testing.T, f *fixture, userID uuid.UUID, clientID *uuid.UUID) *domain.Document {
	t.Helper()
	return testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{
		UserID:   userID,
		ClientID: clientID,
		Type:     domain.DocumentTypeTaxInvoice,
		Status:   domain.DocumentStatusSent,
		Subtotal: "10000",
	})
}

func TestAllocationService_RequestAllocation(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	requester := taxauthority.NewMockClient(zap.NewNop())
	svc := newAllocationService(f, requester)
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	client := testutil.CreateTestClient(t, f.db, user.ID, domain.ClientTypeBusiness)
	ctx := userContext(user)

	t.Run("success freezes the document", func(t *testing.T) {
		doc := largeInvoice(t, f, user.ID, &client.ID)

		req, err := svc.RequestAllocation(ctx, user.ID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AllocationStatusSuccess, req.Status)
		assert.Regexp(t, allocationNumberPattern, req.AllocationNumber)
		assert.Equal(t, doc.DocumentNumber, req.DocumentNumber)
		assert.NotNil(t, req.CompletedAt)

		stored := reloadDocument(t, f.db, doc.ID)
		assert.True(t, stored.IsImmutable)
		assert.Equal(t, req.AllocationNumber, stored.AllocationNumber)
		assert.Equal(t, int64(1), countAudit(t, f.db, domain.AuditActionMarkImmutable, doc.ID))
		assert.Equal(t, int64(1), countAudit(t, f.db, domain.AuditActionAllocationRequest, req.ID))

		_, err = f.docs.SetStatus(ctx, user.ID, doc.ID, "paid")
		assert.ErrorIs(t, err, service.ErrImmutableDocument)
		_, err = f.docs.CancelDocument(ctx, user.ID, doc.ID, &domain.CancelDocumentRequest{})
		assert.ErrorIs(t, err, service.ErrImmutableDocument)

		_, err = svc.RequestAllocation(ctx, user.ID, doc.ID)
		assert.ErrorIs(t, err, service.ErrAllocationAlreadyRequested)

		status, err := svc.GetStatus(ctx, user.ID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, req.ID, status.ID)
	})

	t.Run("rejection is recorded and the document stays mutable", func(t *testing.T) {
		requester.RejectBusinessIDs[user.BusinessID] = true
		defer delete(requester.RejectBusinessIDs, user.BusinessID)
		doc := largeInvoice(t, f, user.ID, &client.ID)

		req, err := svc.RequestAllocation(ctx, user.ID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AllocationStatusFailed, req.Status)
		assert.Empty(t, req.AllocationNumber)
		assert.Contains(t, req.ErrorMessage, "rejected")
		assert.False(t, reloadDocument(t, f.db, doc.ID).IsImmutable)
	})

	t.Run("history lists the requests of the user", func(t *testing.T) {
		page, err := svc.History(ctx, user.ID, nil, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)

		failed := domain.AllocationStatusFailed
		page, err = svc.History(ctx, user.ID, &failed, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("no request yet", func(t *testing.T) {
		doc := largeInvoice(t, f, user.ID, &client.ID)
		_, err := svc.GetStatus(ctx, user.ID, doc.ID)
		assert.ErrorIs(t, err, service.ErrAllocationNotFound)
	})
}

func TestAllocationService_Eligibility(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	svc := newAllocationService(f, taxauthority.NewMockClient(zap.NewNop()))
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeBaam)
	business := testutil.CreateTestClient(t, f.db, user.ID, domain.ClientTypeBusiness)
	individual := testutil.CreateTestClient(t, f.db, user.ID, domain.ClientTypeIndividual)
	ctx := context.Background()

	tests := []struct {
		name    string
		fixture testutil.DocumentFixture
	}{
		{"receipt", testutil.DocumentFixture{Type: domain.DocumentTypeReceipt, Subtotal: "10000", ClientID: &business.ID}},
		{"below threshold", testutil.DocumentFixture{Subtotal: "100", ClientID: &business.ID}},
		{"cancelled", testutil.DocumentFixture{Status: domain.DocumentStatusCancelled, Subtotal: "10000", ClientID: &business.ID}},
		{"individual client", testutil.DocumentFixture{Subtotal: "10000", ClientID: &individual.ID}},
		{"no client", testutil.DocumentFixture{Subtotal: "10000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fixture.UserID = user.ID
			doc := testutil.CreateTestDocument(t, f.db, tt.fixture)
			_, err := svc.RequestAllocation(ctx, user.ID, doc.ID)
			assert.ErrorIs(t, err, service.ErrAllocationNotEligible)

			var n int64
			require.NoError(t, f.db.Model(&domain.AllocationRequest{}).Where("document_id = ?", doc.ID).Count(&n).Error)
			assert.Zero(t, n)
		})
	}

	t.Run("exempt dealer", func(t *testing.T) {
		patur := testutil.CreateTestUser(t, f.db, domain.BusinessTypePatur)
		doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: patur.ID, Subtotal: "10000"})
		_, err := svc.RequestAllocation(ctx, patur.ID, doc.ID)
		assert.ErrorIs(t, err, service.ErrAllocationNotEligible)
	})

	t.Run("foreign document", func(t *testing.T) {
		other := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		doc := largeInvoice(t, f, other.ID, nil)
		_, err := svc.RequestAllocation(ctx, user.ID, doc.ID)
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)
	})
}
