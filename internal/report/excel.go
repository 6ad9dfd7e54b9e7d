// Package report builds Excel workbooks of a user's documents
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"github.com/zmanup/invoicing-api/internal/domain"
)

// Kind names a report
type Kind string

const (
	KindDocuments Kind = "documents"
	KindVAT       Kind = "vat"
)

// IsValid checks if the report kind is known
func (k Kind) IsValid() bool {
	return k == KindDocuments || k == KindVAT
}

const (
	headerFill = "#26264F"
	totalFill  = "#E99781"
	dateLayout = "02/01/2006"
)

var monthNames = [12]string{
	"ינואר", "פברואר", "מרץ", "אפריל", "מאי", "יוני",
	"יולי", "אוגוסט", "ספטמבר", "אוקטובר", "נובמבר", "דצמבר",
}

// vatDocumentTypes are the documents that carry reportable turnover
var vatDocumentTypes = map[domain.DocumentType]bool{
	domain.DocumentTypeTaxInvoice: true,
	domain.DocumentTypeReceipt:    true,
	domain.DocumentTypeCreditNote: true,
}

// VATMonth aggregates reportable documents of one calendar month
type VATMonth struct {
	Month     time.Month
	Count     int
	Subtotal  decimal.Decimal
	VATAmount decimal.Decimal
	Total     decimal.Decimal
}

// SummarizeVAT groups tax invoices, receipts and credit notes by issue month, in calendar order.
// Credit notes carry negative amounts and offset the month they were issued in.
func SummarizeVAT(docs []domain.Document) []VATMonth {
	byMonth := map[time.Month]*VATMonth{}
	for i := range docs {
		doc := &docs[i]
		if !vatDocumentTypes[doc.DocumentType] {
			continue
		}
		m := doc.IssueDate.Month()
		agg, ok := byMonth[m]
		if !ok {
			agg = &VATMonth{Month: m, Subtotal: decimal.Zero, VATAmount: decimal.Zero, Total: decimal.Zero}
			byMonth[m] = agg
		}
		agg.Count++
		agg.Subtotal = agg.Subtotal.Add(doc.Subtotal)
		agg.VATAmount = agg.VATAmount.Add(doc.VATAmount)
		agg.Total = agg.Total.Add(doc.TotalAmount)
	}

	months := make([]VATMonth, 0, len(byMonth))
	for m := time.January; m <= time.December; m++ {
		if agg, ok := byMonth[m]; ok {
			months = append(months, *agg)
		}
	}
	return months
}

// Generator renders workbooks
type Generator struct{}

// NewGenerator creates a new Generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the report of the given kind
func (g *Generator) Generate(kind Kind, docs []domain.Document) ([]byte, error) {
	switch kind {
	case KindDocuments:
		return g.Documents(docs)
	case KindVAT:
		return g.VAT(docs)
	default:
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
}

// Documents lists every document with a totals row
func (g *Generator) Documents(docs []domain.Document) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	sheet := "מסמכים"
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	headers := []string{
		"מספר מסמך", "סוג מסמך", "תאריך הנפקה", "שם לקוח", "סטטוס",
		`סכום ללא מע"מ`, `מע"מ`, `סה"כ`, "תאריך פירעון", "הערות",
	}
	if err := writeHeader(file, sheet, headers); err != nil {
		return nil, err
	}

	for i := range docs {
		doc := &docs[i]
		clientName := "לא מוגדר"
		if doc.Client != nil {
			clientName = doc.Client.DisplayName()
		}
		dueDate := ""
		if doc.DueDate != nil {
			dueDate = doc.DueDate.Format(dateLayout)
		}
		row := []interface{}{
			doc.DocumentNumber,
			doc.DocumentType.Label(),
			doc.IssueDate.Format(dateLayout),
			clientName,
			string(doc.Status),
			doc.Subtotal.InexactFloat64(),
			doc.VATAmount.InexactFloat64(),
			doc.TotalAmount.InexactFloat64(),
			dueDate,
			doc.Notes,
		}
		if err := writeRow(file, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	totalRow := len(docs) + 2
	if err := writeTotals(file, sheet, totalRow, "E", `סה"כ:`, []string{"F", "G", "H"}); err != nil {
		return nil, err
	}
	_ = file.SetColWidth(sheet, "A", "J", 15)
	return toBytes(file)
}

// VAT summarizes turnover and VAT per month
func (g *Generator) VAT(docs []domain.Document) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	sheet := `דוח מע"מ`
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	headers := []string{"חודש", "מספר מסמכים", `מחזור ללא מע"מ`, `מע"מ`, `סה"כ כולל מע"מ`}
	if err := writeHeader(file, sheet, headers); err != nil {
		return nil, err
	}

	months := SummarizeVAT(docs)
	for i, m := range months {
		row := []interface{}{
			monthNames[m.Month-1],
			m.Count,
			m.Subtotal.InexactFloat64(),
			m.VATAmount.InexactFloat64(),
			m.Total.InexactFloat64(),
		}
		if err := writeRow(file, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	totalRow := len(months) + 2
	if err := writeTotals(file, sheet, totalRow, "A", `סה"כ:`, []string{"B", "C", "D", "E"}); err != nil {
		return nil, err
	}
	_ = file.SetColWidth(sheet, "A", "E", 15)
	return toBytes(file)
}

func writeHeader(file *excelize.File, sheet string, headers []string) error {
	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
	})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return file.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(file *excelize.File, sheet string, row int, values []interface{}) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	return file.SetSheetRow(sheet, cell, &values)
}

// writeTotals writes a label and SUM formulas over rows 2..row-1 of the given columns
func writeTotals(file *excelize.File, sheet string, row int, labelCol, label string, sumCols []string) error {
	if err := file.SetCellValue(sheet, fmt.Sprintf("%s%d", labelCol, row), label); err != nil {
		return err
	}
	for _, col := range sumCols {
		formula := fmt.Sprintf("SUM(%s2:%s%d)", col, col, row-1)
		if err := file.SetCellFormula(sheet, fmt.Sprintf("%s%d", col, row), formula); err != nil {
			return err
		}
	}

	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{totalFill}},
	})
	if err != nil {
		return err
	}
	lastCol := sumCols[len(sumCols)-1]
	return file.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), style)
}

func toBytes(file *excelize.File) ([]byte, error) {
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
