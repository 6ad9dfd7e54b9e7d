package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/service"
	"github.com/zmanup/invoicing-api/internal/testutil"
)

func createInvoice(t *testing.T, f *fixture, user *domain.User, items ...domain.ItemInput) *domain.DocumentDTO {
	t.Helper()
	doc, err := f.docs.CreateDocument(userContext(user), user.ID, &domain.CreateDocumentRequest{
		DocumentType: string(domain.DocumentTypeTaxInvoice),
		Items:        items,
	})
	require.NoError(t, err)
	return doc
}

func TestDocumentService_CreateDocument(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	f.renderOK()
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	ctx := userContext(user)

	t.Run("computes totals and issues the first number", func(t *testing.T) {
		doc := createInvoice(t, f, user, item("Design", 2, "100"), item("Hosting", 1, "50"))

		assert.Equal(t, "10001", doc.DocumentNumber)
		assert.Equal(t, domain.DocumentStatusDraft, doc.Status)
		assert.True(t, doc.Subtotal.Equal(dec("250")))
		assert.True(t, doc.VATRate.Equal(dec("0.18")))
		assert.True(t, doc.VATAmount.Equal(dec("45")))
		assert.True(t, doc.TotalAmount.Equal(dec("295")))
		assert.True(t, doc.HasPDF)
		assert.Equal(t, "ILS", doc.Currency)
		assert.Equal(t, domain.PaymentMethodOther, doc.PaymentMethod)
		require.NotNil(t, doc.DueDate)
		assert.True(t, doc.DueDate.Equal(doc.IssueDate))

		require.Len(t, doc.Items, 2)
		assert.Equal(t, 1, doc.Items[0].SortOrder)
		assert.Equal(t, 2, doc.Items[1].SortOrder)
		assert.True(t, doc.Items[0].TotalPrice.Equal(dec("200")))

		assert.Equal(t, 10001, reloadUser(t, f.db, user.ID).StartReceiptNumber)
		assert.Equal(t, int64(1), countAudit(t, f.db, domain.AuditActionCreate, doc.ID))
	})

	t.Run("second document continues the sequence", func(t *testing.T) {
		doc := createInvoice(t, f, user, item("Support", 1, "10"))
		assert.Equal(t, "10002", doc.DocumentNumber)
	})

	t.Run("receipts start paid and the invoice alias resolves", func(t *testing.T) {
		receipt, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType:  string(domain.DocumentTypeReceipt),
			Items:         []domain.ItemInput{item("Payment", 1, "100")},
			PaymentMethod: "bit",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusPaid, receipt.Status)
		assert.Equal(t, domain.PaymentMethodBit, receipt.PaymentMethod)

		invoice, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: "invoice",
			Items:        []domain.ItemInput{item("Work", 1, "100")},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentTypeTaxInvoice, invoice.DocumentType)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: "proforma",
			Items:        []domain.ItemInput{item("Work", 1, "100")},
		})
		assert.ErrorIs(t, err, service.ErrInvalidType)
	})

	t.Run("no items", func(t *testing.T) {
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeQuote),
		})
		assert.ErrorIs(t, err, service.ErrEmptyDocument)
	})

	t.Run("credit note without original", func(t *testing.T) {
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeCreditNote),
			Items:        []domain.ItemInput{item("Work", 1, "100")},
		})
		assert.ErrorIs(t, err, service.ErrInvalidOperation)
	})

	t.Run("invalid item names its index", func(t *testing.T) {
		bad := item("Broken", 1, "10")
		bad.Quantity = nil
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeTaxInvoice),
			Items:        []domain.ItemInput{item("Fine", 1, "10"), bad},
		})
		require.ErrorIs(t, err, service.ErrInvalidItem)

		var itemErr *service.ItemError
		require.True(t, errors.As(err, &itemErr))
		assert.Equal(t, 2, itemErr.Index)
		assert.Equal(t, "quantity", itemErr.Field)
		assert.Contains(t, err.Error(), "item 2")
	})

	t.Run("negative quantity lines reduce the totals", func(t *testing.T) {
		doc := createInvoice(t, f, user, item("Design", 1, "200"), item("Loyalty discount", -1, "50"))
		require.Len(t, doc.Items, 2)
		assert.True(t, doc.Items[1].TotalPrice.Equal(dec("-50")))
		assert.True(t, doc.Subtotal.Equal(dec("150")))
		assert.True(t, doc.VATAmount.Equal(dec("27")))
		assert.True(t, doc.TotalAmount.Equal(dec("177")))
	})

	t.Run("malformed value names its index and field", func(t *testing.T) {
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeTaxInvoice),
			Items:        []domain.ItemInput{item("Fine", 1, "10"), {Description: "Broken", MalformedField: "unitPrice"}},
		})
		var itemErr *service.ItemError
		require.True(t, errors.As(err, &itemErr))
		assert.Equal(t, 2, itemErr.Index)
		assert.Equal(t, "unitPrice", itemErr.Field)
		assert.ErrorIs(t, err, service.ErrInvalidItem)
	})

	t.Run("foreign client", func(t *testing.T) {
		other := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		client := testutil.CreateTestClient(t, f.db, other.ID, domain.ClientTypeBusiness)
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeTaxInvoice),
			ClientID:     &client.ID,
			Items:        []domain.ItemInput{item("Work", 1, "100")},
		})
		assert.ErrorIs(t, err, service.ErrClientNotFound)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType:  string(domain.DocumentTypeTaxInvoice),
			Items:         []domain.ItemInput{item("Work", 1, "100")},
			PaymentMethod: "barter",
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

func TestDocumentService_CreateDocument_BusinessTypes(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	f.renderOK()
	patur := testutil.CreateTestUser(t, f.db, domain.BusinessTypePatur)

	_, err := f.docs.CreateDocument(userContext(patur), patur.ID, &domain.CreateDocumentRequest{
		DocumentType: string(domain.DocumentTypeTaxInvoice),
		Items:        []domain.ItemInput{item("Work", 1, "100")},
	})
	assert.ErrorIs(t, err, service.ErrDocumentTypeNotAllowed)

	receipt, err := f.docs.CreateDocument(userContext(patur), patur.ID, &domain.CreateDocumentRequest{
		DocumentType: string(domain.DocumentTypeReceipt),
		Items:        []domain.ItemInput{item("Work", 3, "99.90")},
	})
	require.NoError(t, err)
	assert.True(t, receipt.VATAmount.IsZero())
	assert.True(t, receipt.TotalAmount.Equal(dec("299.70")))

	types, err := f.docs.AvailableTypes(context.Background(), patur.ID)
	require.NoError(t, err)
	for _, opt := range types {
		assert.NotEqual(t, domain.DocumentTypeTaxInvoice, opt.Value)
	}
}

func TestDocumentService_CreateDocument_CatalogServices(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	f.renderOK()
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	svc := testutil.CreateTestService(t, f.db, user.ID, "120")

	t.Run("description falls back to the service name", func(t *testing.T) {
		in := item("", 1, "120")
		in.ServiceID = &svc.ID
		doc := createInvoice(t, f, user, in)

		require.Len(t, doc.Items, 1)
		assert.Equal(t, svc.Name, doc.Items[0].Description)

		var stored domain.Service
		require.NoError(t, f.db.First(&stored, "id = ?", svc.ID).Error)
		assert.Equal(t, 1, stored.TimesUsed)
	})

	t.Run("service of another user", func(t *testing.T) {
		other := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		foreign := testutil.CreateTestService(t, f.db, other.ID, "10")
		in := item("Foreign", 1, "10")
		in.ServiceID = &foreign.ID

		_, err := f.docs.CreateDocument(userContext(user), user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeTaxInvoice),
			Items:        []domain.ItemInput{item("Fine", 1, "10"), in},
		})
		require.ErrorIs(t, err, service.ErrServiceNotFound)
		var itemErr *service.ItemError
		require.True(t, errors.As(err, &itemErr))
		assert.Equal(t, 2, itemErr.Index)
	})
}

func TestDocumentService_Numbering(t *testing.T) {
	t.Run("starts at the configured start number", func(t *testing.T) {
		f := newFixture(t, service.DocumentOptions{})
		f.renderOK()
		user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		require.NoError(t, f.db.Model(user).Update("start_receipt_number", 500).Error)

		doc := createInvoice(t, f, user, item("Work", 1, "1"))
		assert.Equal(t, "00500", doc.DocumentNumber)
		doc = createInvoice(t, f, user, item("Work", 1, "1"))
		assert.Equal(t, "00501", doc.DocumentNumber)
	})

	t.Run("continues after imported documents and skips legacy numbers", func(t *testing.T) {
		f := newFixture(t, service.DocumentOptions{})
		f.renderOK()
		user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Number: "10042", CreatedAt: daysAgo(3)})
		testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Number: "2024-007", CreatedAt: daysAgo(1)})

		doc := createInvoice(t, f, user, item("Work", 1, "1"))
		assert.Equal(t, "10043", doc.DocumentNumber)

		current, err := f.numbers.Current(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, 10043, current)
	})

	t.Run("raised start number moves the sequence forward", func(t *testing.T) {
		f := newFixture(t, service.DocumentOptions{})
		f.renderOK()
		user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		createInvoice(t, f, user, item("Work", 1, "1"))
		require.NoError(t, f.db.Model(user).Update("start_receipt_number", 20000).Error)

		doc := createInvoice(t, f, user, item("Work", 1, "1"))
		assert.Equal(t, "20001", doc.DocumentNumber)
	})

	t.Run("sync picks up documents inserted behind the sequence", func(t *testing.T) {
		f := newFixture(t, service.DocumentOptions{})
		f.renderOK()
		user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		createInvoice(t, f, user, item("Work", 1, "1"))
		testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Number: "10500"})

		current, err := f.numbers.Sync(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, 10500, current)

		doc := createInvoice(t, f, user, item("Work", 1, "1"))
		assert.Equal(t, "10501", doc.DocumentNumber)
	})

	t.Run("collision with a document written elsewhere is a conflict and a retry succeeds", func(t *testing.T) {
		f := newFixture(t, service.DocumentOptions{})
		f.renderOK()
		user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		createInvoice(t, f, user, item("Work", 1, "1"))
		testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Number: "10002"})
		before := countDocuments(t, f.db, user.ID)

		_, err := f.docs.CreateDocument(userContext(user), user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeTaxInvoice),
			Items:        []domain.ItemInput{item("Work", 1, "1")},
		})
		require.ErrorIs(t, err, service.ErrConflict)
		assert.Equal(t, before, countDocuments(t, f.db, user.ID))
		assert.Equal(t, 10001, reloadUser(t, f.db, user.ID).StartReceiptNumber)

		doc := createInvoice(t, f, user, item("Work", 1, "1"))
		assert.Equal(t, "10003", doc.DocumentNumber)
	})
}

func TestDocumentService_CreateDocument_RenderFailureRollsBack(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("font missing")).Once()
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Return("pdfs/ok.pdf", nil)

	_, err := f.docs.CreateDocument(userContext(user), user.ID, &domain.CreateDocumentRequest{
		DocumentType: string(domain.DocumentTypeTaxInvoice),
		Items:        []domain.ItemInput{item("Work", 1, "100")},
	})
	require.ErrorIs(t, err, service.ErrRenderingFailed)

	assert.Equal(t, int64(0), countDocuments(t, f.db, user.ID))
	assert.Equal(t, 0, reloadUser(t, f.db, user.ID).StartReceiptNumber)
	var audits int64
	require.NoError(t, f.db.Model(&domain.AuditLog{}).Count(&audits).Error)
	assert.Equal(t, int64(0), audits)

	doc := createInvoice(t, f, user, item("Work", 1, "100"))
	assert.Equal(t, "10001", doc.DocumentNumber, "failed creation must not consume a number")
}

func TestDocumentService_CreateDocument_RenderTimeout(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{PDFTimeout: 50 * time.Millisecond})
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	start := time.Now()
	_, err := f.docs.CreateDocument(userContext(user), user.ID, &domain.CreateDocumentRequest{
		DocumentType: string(domain.DocumentTypeTaxInvoice),
		Items:        []domain.ItemInput{item("Work", 1, "100")},
	})
	require.ErrorIs(t, err, service.ErrRenderingFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int64(0), countDocuments(t, f.db, user.ID))
}

func TestDocumentService_CancelDocument(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	f.renderOK()
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	client := testutil.CreateTestClient(t, f.db, user.ID, domain.ClientTypeBusiness)
	ctx := userContext(user)

	t.Run("full credit mirrors the items and cancels the original", func(t *testing.T) {
		original, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType:  string(domain.DocumentTypeTaxInvoice),
			ClientID:      &client.ID,
			Currency:      "usd",
			PaymentMethod: "bank",
			Items:         []domain.ItemInput{item("Design", 2, "100"), item("Hosting", 1, "50")},
		})
		require.NoError(t, err)

		res, err := f.docs.CancelDocument(ctx, user.ID, original.ID, &domain.CancelDocumentRequest{})
		require.NoError(t, err)

		credit := res.CreditNote
		assert.Equal(t, domain.DocumentTypeCreditNote, credit.DocumentType)
		assert.Equal(t, domain.DocumentStatusPaid, credit.Status)
		assert.Equal(t, "10002", credit.DocumentNumber)
		assert.True(t, credit.Subtotal.Equal(dec("-250")))
		assert.True(t, credit.VATAmount.Equal(dec("-45")))
		assert.True(t, credit.TotalAmount.Equal(dec("-295")))
		require.NotNil(t, credit.OriginalDocumentID)
		assert.Equal(t, original.ID, *credit.OriginalDocumentID)
		require.NotNil(t, credit.ClientID)
		assert.Equal(t, client.ID, *credit.ClientID)
		assert.Equal(t, "USD", credit.Currency)
		assert.Equal(t, domain.PaymentMethodBank, credit.PaymentMethod)
		assert.Equal(t, "זיכוי עבור חשבונית מס מספר 10001", credit.Notes)

		require.Len(t, credit.Items, 2)
		assert.Equal(t, -2, credit.Items[0].Quantity)
		assert.True(t, credit.Items[0].UnitPrice.Equal(dec("100")))
		assert.Equal(t, -1, credit.Items[1].Quantity)
		assert.Equal(t, "זיכוי: Design", credit.Items[0].Description)

		assert.Equal(t, domain.DocumentStatusCancelled, res.OriginalDocument.Status)
		assert.Equal(t, domain.DocumentStatusCancelled, reloadDocument(t, f.db, original.ID).Status)
		assert.Equal(t, int64(1), countAudit(t, f.db, domain.AuditActionCancel, original.ID))
	})

	t.Run("partial credit leaves the original untouched", func(t *testing.T) {
		original := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{
			UserID: user.ID, Status: domain.DocumentStatusPaid, Subtotal: "300", VATRate: "0",
		})

		res, err := f.docs.CancelDocument(ctx, user.ID, original.ID, &domain.CancelDocumentRequest{
			PartialAmount: decPtr("100"),
			Reason:        "Returned goods",
		})
		require.NoError(t, err)

		credit := res.CreditNote
		assert.True(t, credit.Subtotal.Equal(dec("-100")))
		assert.True(t, credit.VATAmount.IsZero())
		assert.True(t, credit.TotalAmount.Equal(dec("-100")))
		assert.Equal(t, "Returned goods", credit.Notes)
		require.Len(t, credit.Items, 1)
		assert.Equal(t, -1, credit.Items[0].Quantity)
		assert.True(t, credit.Items[0].UnitPrice.Equal(dec("100")))
		assert.Equal(t, "זיכוי: Returned goods", credit.Items[0].Description)

		assert.Equal(t, domain.DocumentStatusPaid, res.OriginalDocument.Status)
		assert.Equal(t, int64(0), countAudit(t, f.db, domain.AuditActionCancel, original.ID))
	})

	t.Run("amount at the original total is a full credit", func(t *testing.T) {
		original := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{
			UserID: user.ID, Status: domain.DocumentStatusPending, Subtotal: "300", VATRate: "0",
		})
		res, err := f.docs.CancelDocument(ctx, user.ID, original.ID, &domain.CancelDocumentRequest{
			PartialAmount: decPtr("300"),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusCancelled, res.OriginalDocument.Status)
		assert.True(t, res.CreditNote.TotalAmount.Equal(dec("-300")))
	})

	t.Run("non-positive amount", func(t *testing.T) {
		original := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID})
		_, err := f.docs.CancelDocument(ctx, user.ID, original.ID, &domain.CancelDocumentRequest{
			PartialAmount: decPtr("0"),
		})
		assert.ErrorIs(t, err, service.ErrInvalidAmount)
	})

	t.Run("credit note cannot be credited", func(t *testing.T) {
		credit := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{
			UserID: user.ID, Type: domain.DocumentTypeCreditNote, Status: domain.DocumentStatusPaid,
		})
		_, err := f.docs.CancelDocument(ctx, user.ID, credit.ID, &domain.CancelDocumentRequest{})
		assert.ErrorIs(t, err, service.ErrInvalidOperation)
	})

	t.Run("already cancelled", func(t *testing.T) {
		cancelled := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{
			UserID: user.ID, Status: domain.DocumentStatusCancelled,
		})
		_, err := f.docs.CancelDocument(ctx, user.ID, cancelled.ID, &domain.CancelDocumentRequest{})
		assert.ErrorIs(t, err, service.ErrAlreadyCancelled)
	})

	t.Run("immutable document", func(t *testing.T) {
		frozen := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{
			UserID: user.ID, Status: domain.DocumentStatusPending, Immutable: true,
		})
		before := countDocuments(t, f.db, user.ID)
		_, err := f.docs.CancelDocument(ctx, user.ID, frozen.ID, &domain.CancelDocumentRequest{})
		assert.ErrorIs(t, err, service.ErrImmutableDocument)
		assert.Equal(t, before, countDocuments(t, f.db, user.ID))
	})

	t.Run("missing or foreign document", func(t *testing.T) {
		_, err := f.docs.CancelDocument(ctx, user.ID, uuid.New(), &domain.CancelDocumentRequest{})
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)

		other := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		foreign := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: other.ID})
		_, err = f.docs.CancelDocument(ctx, user.ID, foreign.ID, &domain.CancelDocumentRequest{})
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)
	})

	t.Run("credit via create with an amount equal to the total stays partial", func(t *testing.T) {
		original, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType: string(domain.DocumentTypeTaxInvoice),
			ClientID:     &client.ID,
			Items:        []domain.ItemInput{item("Design", 2, "100"), item("Hosting", 1, "50")},
		})
		require.NoError(t, err)
		require.True(t, original.TotalAmount.Equal(dec("295")))

		credit, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType:       string(domain.DocumentTypeCreditNote),
			OriginalDocumentID: &original.ID,
			PartialAmount:      decPtr("295"),
		})
		require.NoError(t, err)

		require.Len(t, credit.Items, 1)
		assert.Equal(t, -1, credit.Items[0].Quantity)
		assert.True(t, credit.Subtotal.Equal(dec("-295")))
		assert.True(t, credit.VATAmount.IsZero())
		assert.True(t, credit.TotalAmount.Equal(dec("-295")))
		assert.Equal(t, original.Status, reloadDocument(t, f.db, original.ID).Status)
		assert.Equal(t, int64(0), countAudit(t, f.db, domain.AuditActionCancel, original.ID))
	})

	t.Run("credit via create with an unknown original", func(t *testing.T) {
		missing := uuid.New()
		_, err := f.docs.CreateDocument(ctx, user.ID, &domain.CreateDocumentRequest{
			DocumentType:       string(domain.DocumentTypeCreditNote),
			OriginalDocumentID: &missing,
		})
		assert.ErrorIs(t, err, service.ErrOriginalNotFound)
	})
}

func TestDocumentService_CancelDocument_CreditCeiling(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{EnforceCreditCeiling: true})
	f.renderOK()
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	ctx := userContext(user)
	original := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{
		UserID: user.ID, Status: domain.DocumentStatusPaid, Subtotal: "300", VATRate: "0",
	})

	_, err := f.docs.CancelDocument(ctx, user.ID, original.ID, &domain.CancelDocumentRequest{PartialAmount: decPtr("200")})
	require.NoError(t, err)

	_, err = f.docs.CancelDocument(ctx, user.ID, original.ID, &domain.CancelDocumentRequest{PartialAmount: decPtr("150")})
	assert.ErrorIs(t, err, service.ErrCreditExceedsOriginal)

	_, err = f.docs.CancelDocument(ctx, user.ID, original.ID, &domain.CancelDocumentRequest{PartialAmount: decPtr("100")})
	assert.NoError(t, err)
}

func TestDocumentService_SetStatus(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	ctx := userContext(user)

	t.Run("any valid status is accepted", func(t *testing.T) {
		doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Status: domain.DocumentStatusPaid})
		updated, err := f.docs.SetStatus(ctx, user.ID, doc.ID, "draft")
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusDraft, updated.Status)
		assert.Equal(t, int64(1), countAudit(t, f.db, domain.AuditActionStatusChange, doc.ID))
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Status: domain.DocumentStatusSent})
		updated, err := f.docs.SetStatus(ctx, user.ID, doc.ID, "sent")
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusSent, updated.Status)
		assert.Equal(t, int64(0), countAudit(t, f.db, domain.AuditActionStatusChange, doc.ID))
	})

	t.Run("unknown status", func(t *testing.T) {
		doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID})
		_, err := f.docs.SetStatus(ctx, user.ID, doc.ID, "archived")
		assert.ErrorIs(t, err, service.ErrInvalidStatus)
	})

	t.Run("immutable document", func(t *testing.T) {
		doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Status: domain.DocumentStatusPending})
		require.NoError(t, f.gate.MarkImmutable(context.Background(), nil, doc.ID))

		_, err := f.docs.SetStatus(ctx, user.ID, doc.ID, "paid")
		assert.ErrorIs(t, err, service.ErrImmutableDocument)
		assert.Equal(t, domain.DocumentStatusPending, reloadDocument(t, f.db, doc.ID).Status)
	})

	t.Run("foreign document", func(t *testing.T) {
		other := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
		doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: other.ID})
		_, err := f.docs.SetStatus(ctx, user.ID, doc.ID, "sent")
		assert.ErrorIs(t, err, service.ErrDocumentNotFound)
	})
}

func TestDocumentService_SetStatus_Strict(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{StrictStatusTransitions: true})
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	ctx := userContext(user)
	doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID})

	_, err := f.docs.SetStatus(ctx, user.ID, doc.ID, "paid")
	assert.ErrorIs(t, err, service.ErrIllegalTransition)

	for _, next := range []string{"sent", "pending", "paid"} {
		_, err := f.docs.SetStatus(ctx, user.ID, doc.ID, next)
		require.NoError(t, err, next)
	}

	_, err = f.docs.SetStatus(ctx, user.ID, doc.ID, "cancelled")
	assert.ErrorIs(t, err, service.ErrIllegalTransition)
}

func TestImmutabilityGate_MarkImmutable(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	doc := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID})

	require.NoError(t, f.gate.MarkImmutable(context.Background(), nil, doc.ID))
	assert.True(t, reloadDocument(t, f.db, doc.ID).IsImmutable)

	// idempotent
	require.NoError(t, f.gate.MarkImmutable(context.Background(), nil, doc.ID))

	err := f.gate.MarkImmutable(context.Background(), nil, uuid.New())
	assert.ErrorIs(t, err, service.ErrDocumentNotFound)
}

func TestDocumentService_MarkOverdue(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	past := daysAgo(10)
	future := time.Now().UTC().AddDate(0, 0, 10)

	late := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Status: domain.DocumentStatusPending, DueDate: &past})
	notDue := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Status: domain.DocumentStatusPending, DueDate: &future})
	draft := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Status: domain.DocumentStatusDraft, DueDate: &past})
	frozen := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID, Status: domain.DocumentStatusPending, DueDate: &past, Immutable: true})

	marked, err := f.docs.MarkOverdue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	assert.Equal(t, domain.DocumentStatusOverdue, reloadDocument(t, f.db, late.ID).Status)
	assert.Equal(t, domain.DocumentStatusPending, reloadDocument(t, f.db, notDue.ID).Status)
	assert.Equal(t, domain.DocumentStatusDraft, reloadDocument(t, f.db, draft.ID).Status)
	assert.Equal(t, domain.DocumentStatusPending, reloadDocument(t, f.db, frozen.ID).Status)

	var entry domain.AuditLog
	require.NoError(t, f.db.Where("entity_id = ?", late.ID).First(&entry).Error)
	assert.Equal(t, "system", entry.UserID)
}

func TestDocumentService_GetPDF(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	f.renderOK()
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	ctx := userContext(user)

	bare := testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: user.ID})
	_, _, err := f.docs.GetPDF(ctx, user.ID, bare.ID)
	assert.ErrorIs(t, err, service.ErrPDFNotAvailable)

	doc := createInvoice(t, f, user, item("Work", 1, "100"))
	_, _, err = f.docs.GetPDF(ctx, user.ID, doc.ID)
	assert.ErrorIs(t, err, service.ErrPDFNotAvailable, "key recorded but nothing stored")

	_, err = f.store.Put(ctx, "pdfs/test.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.3")))
	require.NoError(t, err)

	rc, filename, err := f.docs.GetPDF(ctx, user.ID, doc.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(body))
	assert.Equal(t, "tax_invoice_"+doc.DocumentNumber+".pdf", filename)
}

func TestDocumentService_List(t *testing.T) {
	f := newFixture(t, service.DocumentOptions{})
	f.renderOK()
	user := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	other := testutil.CreateTestUser(t, f.db, domain.BusinessTypeMorsheh)
	for i := 0; i < 3; i++ {
		createInvoice(t, f, user, item("Work", 1, "10"))
	}
	testutil.CreateTestDocument(t, f.db, testutil.DocumentFixture{UserID: other.ID})

	page, err := f.docs.List(context.Background(), user.ID, nil, 1, 2, defaultSort())
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	docs, ok := page.Data.([]domain.DocumentDTO)
	require.True(t, ok)
	assert.Len(t, docs, 2)
}
