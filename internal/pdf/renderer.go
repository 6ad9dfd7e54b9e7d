// Package pdf renders documents to PDF and stores the artifact
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/money"
	"github.com/zmanup/invoicing-api/internal/storage"
	"go.uber.org/zap"
)

const (
	fontName   = "DocFont"
	dateLayout = "02/01/2006"
)

// Renderer lays out documents with gofpdf and writes them to storage
type Renderer struct {
	store    storage.Storage
	fontData []byte
	logger   *zap.Logger
	now      func() time.Time
}

// NewRenderer creates a renderer. fontPath points at a TTF with Hebrew glyphs;
// when empty the core Helvetica font is used.
func NewRenderer(store storage.Storage, fontPath string, logger *zap.Logger) (*Renderer, error) {
	r := &Renderer{store: store, logger: logger, now: time.Now}
	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf font: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("pdf font %s is empty", fontPath)
		}
		r.fontData = data
	}
	return r, nil
}

// Key returns the storage key of a document's PDF rendered at t
func Key(doc *domain.Document, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("pdfs/%s/%s/document_%s_%d.pdf", doc.UserID, t.Format("2006-01-02"), doc.ID, t.UnixMilli())
}

// Render builds the PDF, stores it and returns its storage key
func (r *Renderer) Render(ctx context.Context, doc *domain.Document, user *domain.User) (string, error) {
	data, err := r.Build(doc, user)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := Key(doc, r.now())
	if _, err := r.store.Put(ctx, key, "application/pdf", bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store pdf: %w", err)
	}

	r.logger.Debug("document pdf stored",
		zap.String("document_id", doc.ID.String()),
		zap.String("key", key),
		zap.Int("size", len(data)))
	return key, nil
}

// Build lays out the document and returns the PDF bytes
func (r *Renderer) Build(doc *domain.Document, user *domain.User) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if r.fontData != nil {
		pdf.AddUTF8FontFromBytes(fontName, "", r.fontData)
		pdf.AddUTF8FontFromBytes(fontName, "B", r.fontData)
		family = fontName
		tr = func(s string) string { return s }
	}
	pdf.AddPage()

	text := func(style string, size float64, h float64, s, align string) {
		pdf.SetFont(family, style, size)
		pdf.CellFormat(0, h, tr(s), "", 1, align, false, 0, "")
	}

	text("B", 14, 8, safeValue(user.BusinessName), "R")
	if user.BusinessID != "" {
		text("", 10, 5, fmt.Sprintf("%s: %s", businessIDLabel(user.BusinessType), user.BusinessID), "R")
	}
	if user.Address != "" {
		text("", 10, 5, user.Address, "R")
	}
	pdf.Ln(4)

	text("B", 16, 10, fmt.Sprintf("%s %s", doc.DocumentType.Label(), doc.DocumentNumber), "C")
	text("", 10, 5, fmt.Sprintf("תאריך: %s", doc.IssueDate.Format(dateLayout)), "C")
	if doc.DueDate != nil && !doc.DueDate.Equal(doc.IssueDate) {
		text("", 10, 5, fmt.Sprintf("לתשלום עד: %s", doc.DueDate.Format(dateLayout)), "C")
	}
	if doc.AllocationNumber != "" {
		text("", 10, 5, fmt.Sprintf("מספר הקצאה: %s", doc.AllocationNumber), "C")
	}
	pdf.Ln(4)

	if doc.Client != nil {
		text("B", 11, 6, "לכבוד", "R")
		text("", 10, 5, doc.Client.DisplayName(), "R")
		if doc.Client.BusinessID != "" {
			text("", 10, 5, doc.Client.BusinessID, "R")
		}
		if addr := strings.TrimSpace(doc.Client.Address + " " + doc.Client.City); addr != "" {
			text("", 10, 5, addr, "R")
		}
		pdf.Ln(4)
	}

	widths := []float64{95, 20, 32, 33}
	drawRow(pdf, family, tr, []string{"תיאור", "כמות", "מחיר יחידה", `סה"כ`}, widths, true)
	for _, item := range doc.Items {
		drawRow(pdf, family, tr, []string{
			item.Description,
			fmt.Sprintf("%d", item.Quantity),
			money.Format(item.UnitPrice),
			money.Format(item.TotalPrice),
		}, widths, false)
	}
	pdf.Ln(4)

	text("", 11, 6, fmt.Sprintf("סכום לפני מע\"מ: %s %s", money.Format(doc.Subtotal), doc.Currency), "L")
	if !doc.VATRate.IsZero() {
		rate := doc.VATRate.Shift(2).StringFixed(0)
		text("", 11, 6, fmt.Sprintf("מע\"מ (%s%%): %s %s", rate, money.Format(doc.VATAmount), doc.Currency), "L")
	}
	text("B", 12, 7, fmt.Sprintf("סה\"כ לתשלום: %s %s", money.Format(doc.TotalAmount), doc.Currency), "L")

	if doc.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont(family, "", 10)
		pdf.MultiCell(0, 5, tr(doc.Notes), "", "R", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawRow(pdf *gofpdf.Fpdf, family string, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(family, style, 10)
	for i, col := range cols {
		align := "R"
		if i == 0 && !header {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func businessIDLabel(b domain.BusinessType) string {
	switch b {
	case domain.BusinessTypePatur:
		return "עוסק פטור"
	case domain.BusinessTypeBaam:
		return "ח.פ."
	default:
		return "עוסק מורשה"
	}
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
