package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmanup/invoicing-api/internal/app"
	"github.com/zmanup/invoicing-api/internal/auth"
	"github.com/zmanup/invoicing-api/internal/config"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/http/handler"
	"github.com/zmanup/invoicing-api/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type documentAPI struct {
	db     *gorm.DB
	router chi.Router
}

func newDocumentAPI(t *testing.T) *documentAPI {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		Storage:    config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()},
		Allocation: config.AllocationConfig{ThresholdAmount: 5000},
	}
	svc, err := app.NewServices(cfg, db, zap.NewNop())
	require.NoError(t, err)

	h := handler.NewDocumentHandler(svc.Documents, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/documents", func(r chi.Router) {
		r.Get("/types", h.Types)
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.GetByID)
		r.Post("/{id}/cancel", h.Cancel)
		r.Put("/{id}/status", h.UpdateStatus)
		r.Get("/{id}/pdf", h.DownloadPDF)
	})
	return &documentAPI{db: db, router: r}
}

func (a *documentAPI) do(t *testing.T, user *domain.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	ctx := auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:       user.ID,
		Email:        user.Email,
		Role:         user.Role,
		BusinessType: user.BusinessType,
	})
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req.WithContext(ctx))
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

func invoiceBody(price string) map[string]interface{} {
	return map[string]interface{}{
		"documentType": "tax_invoice",
		"items": []map[string]interface{}{
			{"description": "Logo design", "quantity": 1, "unitPrice": price},
		},
	}
}

func TestDocumentHandler_CreateAndFetch(t *testing.T) {
	api := newDocumentAPI(t)
	user := testutil.CreateTestUser(t, api.db, domain.BusinessTypeMorsheh)

	rr := api.do(t, user, http.MethodPost, "/documents", invoiceBody("1000"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var doc domain.DocumentDTO
	decodeBody(t, rr, &doc)
	assert.Equal(t, "/api/v1/documents/"+doc.ID.String(), rr.Header().Get("Location"))
	assert.Equal(t, domain.FormatDocumentNumber(domain.FirstDocumentNumber), doc.DocumentNumber)
	assert.Equal(t, "1000", doc.Subtotal.String())
	assert.Equal(t, "180", doc.VATAmount.String())
	assert.Equal(t, "1180", doc.TotalAmount.String())

	rr = api.do(t, user, http.MethodGet, "/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, user, http.MethodGet, "/documents/"+doc.ID.String()+"/pdf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF")))

	other := testutil.CreateTestUser(t, api.db, domain.BusinessTypeMorsheh)
	rr = api.do(t, other, http.MethodGet, "/documents/"+doc.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDocumentHandler_CreateInvalidItem(t *testing.T) {
	api := newDocumentAPI(t)
	user := testutil.CreateTestUser(t, api.db, domain.BusinessTypeMorsheh)

	body := map[string]interface{}{
		"documentType": "tax_invoice",
		"items": []map[string]interface{}{
			{"description": "Logo design", "quantity": 1, "unitPrice": "100"},
			{"description": "Hosting", "quantity": 1},
		},
	}
	rr := api.do(t, user, http.MethodPost, "/documents", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	var problem domain.APIError
	decodeBody(t, rr, &problem)
	assert.Equal(t, domain.ErrorTypeInvalidItem, problem.Type)
	assert.Contains(t, problem.Errors, "items[2].unitPrice")

	var n int64
	require.NoError(t, api.db.Model(&domain.Document{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDocumentHandler_CreateMalformedItemValue(t *testing.T) {
	api := newDocumentAPI(t)
	user := testutil.CreateTestUser(t, api.db, domain.BusinessTypeMorsheh)

	tests := []struct {
		name  string
		bad   map[string]interface{}
		field string
	}{
		{"text quantity", map[string]interface{}{"description": "Hosting", "quantity": "abc", "unitPrice": "10"}, "items[2].quantity"},
		{"fractional quantity", map[string]interface{}{"description": "Hosting", "quantity": 1.5, "unitPrice": "10"}, "items[2].quantity"},
		{"text price", map[string]interface{}{"description": "Hosting", "quantity": 1, "unitPrice": "x"}, "items[2].unitPrice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]interface{}{
				"documentType": "tax_invoice",
				"items": []map[string]interface{}{
					{"description": "Logo design", "quantity": 1, "unitPrice": "100"},
					tt.bad,
				},
			}
			rr := api.do(t, user, http.MethodPost, "/documents", body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var problem domain.APIError
			decodeBody(t, rr, &problem)
			assert.Equal(t, domain.ErrorTypeInvalidItem, problem.Type)
			assert.Contains(t, problem.Errors, tt.field)
			assert.Contains(t, problem.Detail, "item 2")
		})
	}

	var n int64
	require.NoError(t, api.db.Model(&domain.Document{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDocumentHandler_Validation(t *testing.T) {
	api := newDocumentAPI(t)
	user := testutil.CreateTestUser(t, api.db, domain.BusinessTypeMorsheh)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"malformed id", http.MethodGet, "/documents/not-a-uuid", nil, http.StatusBadRequest},
		{"missing type", http.MethodPost, "/documents", map[string]interface{}{"items": []interface{}{}}, http.StatusBadRequest},
		{"unknown type filter", http.MethodGet, "/documents?type=ledger", nil, http.StatusBadRequest},
		{"bad date filter", http.MethodGet, "/documents?from=yesterday", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, user, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestDocumentHandler_ListTypeFilter(t *testing.T) {
	api := newDocumentAPI(t)
	user := testutil.CreateTestUser(t, api.db, domain.BusinessTypeMorsheh)

	for _, dt := range domain.AllDocumentTypes {
		t.Run(string(dt), func(t *testing.T) {
			rr := api.do(t, user, http.MethodGet, "/documents?type="+string(dt), nil)
			assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		})
	}

	t.Run("documented enum matches the document types", func(t *testing.T) {
		src, err := os.ReadFile("document_handler.go")
		require.NoError(t, err)
		m := regexp.MustCompile(`@Param type query string false "Document type" Enums\(([^)]*)\)`).FindSubmatch(src)
		require.NotNil(t, m)

		var documented []string
		for _, v := range strings.Split(string(m[1]), ",") {
			documented = append(documented, strings.TrimSpace(v))
		}
		var want []string
		for _, dt := range domain.AllDocumentTypes {
			want = append(want, string(dt))
		}
		assert.ElementsMatch(t, want, documented)
	})
}

func TestDocumentHandler_ExemptDealerCannotIssueTaxInvoice(t *testing.T) {
	api := newDocumentAPI(t)
	user := testutil.CreateTestUser(t, api.db, domain.BusinessTypePatur)

	rr := api.do(t, user, http.MethodPost, "/documents", invoiceBody("500"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, user, http.MethodGet, "/documents/types", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var types []domain.DocumentTypeOption
	decodeBody(t, rr, &types)
	for _, opt := range types {
		assert.NotEqual(t, domain.DocumentTypeTaxInvoice, opt.Value)
	}
}

func TestDocumentHandler_CancelAndImmutable(t *testing.T) {
	api := newDocumentAPI(t)
	user := testutil.CreateTestUser(t, api.db, domain.BusinessTypeMorsheh)

	rr := api.do(t, user, http.MethodPost, "/documents", invoiceBody("200"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var doc domain.DocumentDTO
	decodeBody(t, rr, &doc)

	rr = api.do(t, user, http.MethodPost, "/documents/"+doc.ID.String()+"/cancel", map[string]string{"reason": "duplicate"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var result domain.CancelDocumentResponse
	decodeBody(t, rr, &result)
	assert.Equal(t, domain.DocumentTypeCreditNote, result.CreditNote.DocumentType)
	assert.Equal(t, domain.DocumentStatusCancelled, result.OriginalDocument.Status)
	assert.True(t, result.CreditNote.TotalAmount.IsNegative())

	rr = api.do(t, user, http.MethodPost, "/documents/"+doc.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	frozen := testutil.CreateTestDocument(t, api.db, testutil.DocumentFixture{
		UserID:    user.ID,
		Status:    domain.DocumentStatusSent,
		Immutable: true,
	})
	rr = api.do(t, user, http.MethodPut, "/documents/"+frozen.ID.String()+"/status", map[string]string{"status": "paid"})
	require.Equal(t, http.StatusConflict, rr.Code)
	var problem domain.APIError
	decodeBody(t, rr, &problem)
	assert.Equal(t, domain.ErrorTypeImmutable, problem.Type)
}
