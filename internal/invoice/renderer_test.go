package invoice

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"billing-backend/internal/config"
	"billing-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.InvoiceConfig {
	return config.InvoiceConfig{
		IssuerName:     "Mellou",
		IssuerAddress:  []string{"12 Market Road", "Pune"},
		IssuerPhone:    "+91 99999 00000",
		IssuerWebsite:  "mellou.example",
		TaxRate:        2.5,
		CurrencyPrefix: "Rs.",
		PaymentInfo:    []string{"Bank: Example Bank", "A/C: 000123456"},
		ThankYou:       "Thank you for your business!",
		Compress:       false,
	}
}

func sampleBill(lines int) *models.Bill {
	bill := &models.Bill{
		ID:         7,
		BillNumber: "BILL-20260310-ABCDEF12",
		Client: &models.Client{
			Name:    "Acme Traders",
			Phone:   "9999999999",
			Address: "Shop 4, a rather long street name that needs wrapping across more than one line of the recipient block",
		},
		TaxRate:  2.5,
		Discount: 50,
		Date:     time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	for i := 0; i < lines; i++ {
		bill.Items = append(bill.Items, models.BillItem{
			Name:      fmt.Sprintf("Product %d", i+1),
			Quantity:  3,
			Price:     100,
			BasePrice: 97.56,
			TaxAmount: 7.32,
			Amount:    300,
		})
	}
	bill.TotalAmount = 300 * float64(lines)
	bill.TaxAmount = 7.32 * float64(lines)
	bill.FinalAmount = bill.TotalAmount - bill.Discount
	return bill
}

func TestMoney(t *testing.T) {
	r := NewRenderer(testConfig())
	assert.Equal(t, "Rs. 1234.50", r.Money(1234.5))
	assert.Equal(t, "Rs. 0.00", r.Money(0))
	assert.Equal(t, "Rs. -50.00", r.Money(-50))

	plain := NewRenderer(config.InvoiceConfig{})
	assert.Equal(t, "10.10", plain.Money(10.1))

	spaced := NewRenderer(config.InvoiceConfig{CurrencyPrefix: " Rs. "})
	assert.Equal(t, "Rs. 5.00", spaced.Money(5))
}

func TestNegativeDiscountIsAdded(t *testing.T) {
	r := NewRenderer(testConfig())
	bill := &models.Bill{TotalAmount: 100, Discount: -20, FinalAmount: 120}

	lines := r.TotalsLines(bill)
	require.Len(t, lines, 3)
	assert.Equal(t, TotalLine{"Discount", "+ Rs. 20.00"}, lines[1])
	assert.Equal(t, TotalLine{"Grand Total", "Rs. 120.00"}, lines[2])
}

func TestTotalsLines(t *testing.T) {
	r := NewRenderer(testConfig())
	bill := sampleBill(1)

	lines := r.TotalsLines(bill)
	assert.Equal(t, []TotalLine{
		{"Subtotal", "Rs. 292.68"},
		{"Tax (2.5%)", "Rs. 7.32"},
		{"Discount", "- Rs. 50.00"},
		{"Grand Total", "Rs. 250.00"},
	}, lines)

	// identical on every render
	assert.Equal(t, lines, r.TotalsLines(bill))

	taxLines := 0
	for _, l := range lines {
		if strings.HasPrefix(l.Label, "Tax") {
			taxLines++
		}
	}
	assert.Equal(t, 1, taxLines)
}

func TestTotalsLinesOmitEmptyRows(t *testing.T) {
	r := NewRenderer(testConfig())
	bill := &models.Bill{TotalAmount: 200, FinalAmount: 200}

	lines := r.TotalsLines(bill)
	require.Len(t, lines, 2)
	assert.Equal(t, "Subtotal", lines[0].Label)
	assert.Equal(t, TotalLine{"Grand Total", "Rs. 200.00"}, lines[1])
}

func TestGrandTotalIsPersistedValue(t *testing.T) {
	r := NewRenderer(testConfig())
	bill := sampleBill(1)
	// a stored value that does not match the lines is still printed as stored
	bill.FinalAmount = 123.45

	lines := r.TotalsLines(bill)
	assert.Equal(t, "Rs. 123.45", lines[len(lines)-1].Value)
}

func TestRenderWritesDocument(t *testing.T) {
	r := NewRenderer(testConfig())

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleBill(2)))

	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, buf.String(), "INVOICE")
	assert.Contains(t, buf.String(), "BILL-20260310-ABCDEF12")
	assert.Contains(t, buf.String(), "10 March 2026")
	assert.Contains(t, buf.String(), "Grand Total")
	assert.Contains(t, buf.String(), "Rs. 550.00")
	assert.Equal(t, 1, bytes.Count(out, []byte(`Tax \(2.5%\)`)))
}

func TestLongBillPaginates(t *testing.T) {
	r := NewRenderer(testConfig())

	pdf, err := r.Build(sampleBill(60))
	require.NoError(t, err)
	assert.Greater(t, pdf.PageCount(), 1)

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	// the table header is repeated on every page
	assert.Equal(t, pdf.PageCount(), strings.Count(buf.String(), "(Description)"))
}

func TestShortBillFitsOnePage(t *testing.T) {
	r := NewRenderer(testConfig())
	pdf, err := r.Build(sampleBill(3))
	require.NoError(t, err)
	assert.Equal(t, 1, pdf.PageCount())
}

func TestMissingLogoFallsBackToName(t *testing.T) {
	cfg := testConfig()
	cfg.LogoPath = "/does/not/exist.png"
	r := NewRenderer(cfg)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleBill(1)))
	assert.Contains(t, buf.String(), "(Mellou)")
}

func TestNilBill(t *testing.T) {
	_, err := NewRenderer(testConfig()).Build(nil)
	assert.Error(t, err)
}
