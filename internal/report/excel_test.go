package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/report"
)

func doc(number string, typ domain.DocumentType, month time.Month, subtotal, vat string) domain.Document {
	s := decimal.RequireFromString(subtotal)
	v := decimal.RequireFromString(vat)
	return domain.Document{
		DocumentNumber: number,
		DocumentType:   typ,
		Status:         domain.DocumentStatusPaid,
		IssueDate:      time.Date(2026, month, 10, 0, 0, 0, 0, time.UTC),
		Subtotal:       s,
		VATAmount:      v,
		TotalAmount:    s.Add(v),
		Currency:       "ILS",
	}
}

func sample() []domain.Document {
	return []domain.Document{
		doc("10001", domain.DocumentTypeTaxInvoice, time.March, "250", "45"),
		doc("10002", domain.DocumentTypeQuote, time.March, "1000", "180"),
		doc("10003", domain.DocumentTypeCreditNote, time.March, "-100", "0"),
		doc("10004", domain.DocumentTypeReceipt, time.January, "50", "9"),
	}
}

func TestSummarizeVAT(t *testing.T) {
	months := report.SummarizeVAT(sample())
	require.Len(t, months, 2)

	assert.Equal(t, time.January, months[0].Month)
	assert.Equal(t, 1, months[0].Count)
	assert.True(t, months[0].Total.Equal(decimal.NewFromInt(59)))

	march := months[1]
	assert.Equal(t, time.March, march.Month)
	assert.Equal(t, 2, march.Count, "quotes are not reportable")
	assert.True(t, march.Subtotal.Equal(decimal.NewFromInt(150)))
	assert.True(t, march.VATAmount.Equal(decimal.NewFromInt(45)))
	assert.True(t, march.Total.Equal(decimal.NewFromInt(195)))
}

func TestSummarizeVAT_Empty(t *testing.T) {
	assert.Empty(t, report.SummarizeVAT(nil))
}

func TestGenerator_Documents(t *testing.T) {
	data, err := report.NewGenerator().Generate(report.KindDocuments, sample())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	assert.Equal(t, "מסמכים", sheet)

	number, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "10001", number)

	label, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "חשבונית מס", label)

	formula, err := f.GetCellFormula(sheet, "H6")
	require.NoError(t, err)
	assert.Equal(t, "SUM(H2:H5)", formula)
}

func TestGenerator_VAT(t *testing.T) {
	data, err := report.NewGenerator().Generate(report.KindVAT, sample())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	month, err := f.GetCellValue(sheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "ינואר", month)

	month, err = f.GetCellValue(sheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "מרץ", month)

	formula, err := f.GetCellFormula(sheet, "C4")
	require.NoError(t, err)
	assert.Equal(t, "SUM(C2:C3)", formula)
}

func TestGenerator_UnknownKind(t *testing.T) {
	_, err := report.NewGenerator().Generate(report.Kind("ledger"), nil)
	assert.Error(t, err)
	assert.False(t, report.Kind("ledger").IsValid())
	assert.True(t, report.KindVAT.IsValid())
}
