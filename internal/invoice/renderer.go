// Package invoice lays out a persisted bill as a paginated A4 PDF.
//
// All money is printed with a plain-text currency prefix and two fixed
// decimals. The core PDF fonts only cover cp1252, so a currency glyph such
// as the rupee sign cannot be relied on.
package invoice

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"billing-backend/internal/config"
	"billing-backend/internal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

// Page geometry in millimetres.
const (
	pageW        = 210.0
	pageH        = 297.0
	margin       = 15.0
	footerBarH   = 8.0
	contentW     = pageW - 2*margin
	bottomLimit  = pageH - margin - footerBarH
	rowH         = 8.0
	tableHeaderH = 9.0
	lineH        = 5.0
)

// Line-item column widths; they add up to contentW.
var columns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 95, "L"},
	{"Qty", 20, "C"},
	{"Price", 32.5, "R"},
	{"Total", 32.5, "R"},
}

type rgb struct{ r, g, b int }

var (
	accent    = rgb{31, 78, 121}
	headerTxt = rgb{255, 255, 255}
	bodyTxt   = rgb{33, 33, 33}
	muted     = rgb{110, 110, 110}
	rowShade  = rgb{243, 246, 249}
)

type Renderer struct {
	cfg config.InvoiceConfig
}

func NewRenderer(cfg config.InvoiceConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Money formats v as "<prefix> 1234.50". Surrounding spaces in the
// configured prefix are ignored.
func (r *Renderer) Money(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	prefix := strings.TrimSpace(r.cfg.CurrencyPrefix)
	if prefix == "" {
		return s
	}
	return prefix + " " + s
}

// discountText signs the discount the way it moves the total: a positive
// discount is subtracted, a negative one added.
func (r *Renderer) discountText(d float64) string {
	if d < 0 {
		return "+ " + r.Money(-d)
	}
	return "- " + r.Money(d)
}

type TotalLine struct {
	Label string
	Value string
}

// TotalsLines is the text of the totals block. Every figure comes from the
// persisted bill; the grand total is FinalAmount as stored.
func (r *Renderer) TotalsLines(bill *models.Bill) []TotalLine {
	total := decimal.NewFromFloat(bill.TotalAmount)
	tax := decimal.NewFromFloat(bill.TaxAmount)

	lines := []TotalLine{{"Subtotal", r.Money(total.Sub(tax).InexactFloat64())}}
	if !tax.IsZero() {
		rate := decimal.NewFromFloat(bill.TaxRate).String()
		lines = append(lines, TotalLine{fmt.Sprintf("Tax (%s%%)", rate), r.Money(bill.TaxAmount)})
	}
	if bill.Discount != 0 {
		lines = append(lines, TotalLine{"Discount", r.discountText(bill.Discount)})
	}
	return append(lines, TotalLine{"Grand Total", r.Money(bill.FinalAmount)})
}

// Render writes the finished document to w.
func (r *Renderer) Render(w io.Writer, bill *models.Bill) error {
	pdf, err := r.Build(bill)
	if err != nil {
		return err
	}
	return pdf.Output(w)
}

// Build lays out the document without writing it.
func (r *Renderer) Build(bill *models.Bill) (*gofpdf.Fpdf, error) {
	if bill == nil {
		return nil, fmt.Errorf("invoice: nil bill")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.cfg.Compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle("Invoice "+bill.BillNumber, true)
	pdf.SetCreator(r.cfg.IssuerName, true)
	if !bill.Date.IsZero() {
		pdf.SetCreationDate(bill.Date)
	}
	pdf.SetFooterFunc(func() {
		pdf.SetFillColor(accent.r, accent.g, accent.b)
		pdf.Rect(0, pageH-footerBarH, pageW, footerBarH, "F")
	})

	l := &layout{r: r, pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	l.newPage()
	l.header()
	l.metadata(bill)
	l.recipient(bill.Client)
	l.items(bill.Items)
	l.totals(bill)
	l.payment()

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("invoice: %w", err)
	}
	return pdf, nil
}

type layout struct {
	r   *Renderer
	pdf *gofpdf.Fpdf
	tr  func(string) string
	y   float64
}

func (l *layout) color(c rgb) { l.pdf.SetTextColor(c.r, c.g, c.b) }

func (l *layout) newPage() {
	l.pdf.AddPage()
	l.y = margin
}

// reserve starts a new page when h more millimetres would cross the
// printable bottom, and reports whether it did.
func (l *layout) reserve(h float64) bool {
	if l.y+h <= bottomLimit {
		return false
	}
	l.newPage()
	return true
}

func (l *layout) text(x, w, h float64, s, align string) {
	l.pdf.SetXY(x, l.y)
	l.pdf.CellFormat(w, h, l.tr(s), "", 0, align, false, 0, "")
}

func (l *layout) rule() {
	l.pdf.SetDrawColor(accent.r, accent.g, accent.b)
	l.pdf.SetLineWidth(0.4)
	l.pdf.Line(margin, l.y, pageW-margin, l.y)
}

func logoType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG"
	case ".jpg", ".jpeg":
		return "JPG"
	case ".gif":
		return "GIF"
	}
	return ""
}

func (l *layout) logo() bool {
	path := l.r.cfg.LogoPath
	typ := logoType(path)
	if path == "" || typ == "" {
		return false
	}
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return false
	}
	l.pdf.ImageOptions(path, margin, l.y, 35, 0, false, gofpdf.ImageOptions{ImageType: typ, ReadDpi: true}, 0, "")
	return true
}

func (l *layout) header() {
	top := l.y
	cfg := l.r.cfg

	if l.logo() {
		l.y = top + 20
	} else {
		l.pdf.SetFont("Helvetica", "B", 18)
		l.color(accent)
		l.text(margin, 110, 9, cfg.IssuerName, "L")
		l.y += 10
	}

	l.pdf.SetFont("Helvetica", "", 9)
	l.color(muted)
	for _, line := range cfg.IssuerAddress {
		l.text(margin, 110, lineH-0.5, line, "L")
		l.y += lineH - 0.5
	}

	saved := l.y
	l.y = top
	l.pdf.SetFont("Helvetica", "B", 22)
	l.color(accent)
	l.text(pageW-margin-70, 70, 12, "INVOICE", "R")

	l.y = maxf(saved, top+14) + 3
	l.rule()
	l.y += 5
}

func (l *layout) metadata(bill *models.Bill) {
	cfg := l.r.cfg
	half := contentW / 2
	top := l.y

	l.pdf.SetFont("Helvetica", "", 10)
	l.color(bodyTxt)
	l.text(margin, half, lineH, "Date: "+bill.Date.Format("02 January 2006"), "L")
	l.y += lineH
	l.text(margin, half, lineH, "Invoice No: "+bill.BillNumber, "L")
	left := l.y + lineH

	l.y = top
	l.color(muted)
	for _, s := range []string{cfg.IssuerPhone, cfg.IssuerWebsite, cfg.IssuerEmail} {
		if s == "" {
			continue
		}
		l.text(margin+half, half, lineH, s, "R")
		l.y += lineH
	}

	l.y = maxf(left, l.y) + 4
}

func (l *layout) recipient(cl *models.Client) {
	l.pdf.SetFont("Helvetica", "B", 11)
	l.color(accent)
	l.text(margin, contentW, 6, "Bill To", "L")
	l.y += 6

	if cl == nil {
		l.y += 4
		return
	}

	l.pdf.SetFont("Helvetica", "B", 10)
	l.color(bodyTxt)
	l.text(margin, contentW, lineH, cl.Name, "L")
	l.y += lineH

	l.pdf.SetFont("Helvetica", "", 10)
	if addr := strings.TrimSpace(cl.Address); addr != "" {
		for _, line := range l.pdf.SplitLines([]byte(l.tr(addr)), 90) {
			l.pdf.SetXY(margin, l.y)
			l.pdf.CellFormat(90, lineH, string(line), "", 0, "L", false, 0, "")
			l.y += lineH
		}
	}
	if cl.Phone != "" {
		l.text(margin, contentW, lineH, "Phone: "+cl.Phone, "L")
		l.y += lineH
	}
	l.y += 6
}

func (l *layout) tableHeader() {
	l.pdf.SetFillColor(accent.r, accent.g, accent.b)
	l.pdf.Rect(margin, l.y, contentW, tableHeaderH, "F")
	l.pdf.SetFont("Helvetica", "B", 10)
	l.color(headerTxt)

	x := margin
	for _, col := range columns {
		l.pdf.SetXY(x+2, l.y)
		l.pdf.CellFormat(col.width-4, tableHeaderH, col.title, "", 0, col.align, false, 0, "")
		x += col.width
	}
	l.y += tableHeaderH
}

func (l *layout) items(items []models.BillItem) {
	l.reserve(tableHeaderH + rowH)
	l.tableHeader()

	for i, it := range items {
		if l.reserve(rowH) {
			l.tableHeader()
		}
		if i%2 == 1 {
			l.pdf.SetFillColor(rowShade.r, rowShade.g, rowShade.b)
			l.pdf.Rect(margin, l.y, contentW, rowH, "F")
		}

		l.pdf.SetFont("Helvetica", "", 10)
		l.color(bodyTxt)
		cells := []string{
			it.Name,
			fmt.Sprintf("%d", it.Quantity),
			l.r.Money(it.Price),
			l.r.Money(it.Amount),
		}
		x := margin
		for j, col := range columns {
			l.pdf.SetXY(x+2, l.y)
			txt := l.tr(cells[j])
			if j == 0 {
				txt = fit(l.pdf, txt, col.width-4)
			}
			l.pdf.CellFormat(col.width-4, rowH, txt, "", 0, col.align, false, 0, "")
			x += col.width
		}
		l.y += rowH
	}

	l.pdf.SetDrawColor(200, 200, 200)
	l.pdf.SetLineWidth(0.2)
	l.pdf.Line(margin, l.y, pageW-margin, l.y)
	l.y += 4
}

// fit truncates s with an ellipsis so it stays inside w. s is already
// translated to the single-byte font encoding, so trimming bytes is safe.
func fit(pdf *gofpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > w {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (l *layout) totals(bill *models.Bill) {
	lines := l.r.TotalsLines(bill)
	labelX := margin + contentW - 85
	h := float64(len(lines))*7 + 4
	l.reserve(h)

	for i, tl := range lines {
		last := i == len(lines)-1
		if last {
			l.y += 1
			l.pdf.SetFillColor(accent.r, accent.g, accent.b)
			l.pdf.Rect(labelX, l.y, 85, 8, "F")
			l.pdf.SetFont("Helvetica", "B", 11)
			l.color(headerTxt)
		} else {
			l.pdf.SetFont("Helvetica", "", 10)
			l.color(bodyTxt)
		}
		l.text(labelX+2, 45, 8, tl.Label, "L")
		l.text(labelX+45, 38, 8, tl.Value, "R")
		l.y += 7
	}
	l.y += 6
}

func (l *layout) payment() {
	info := l.r.cfg.PaymentInfo
	thanks := l.r.cfg.ThankYou

	if len(info) > 0 {
		boxH := 8 + float64(len(info))*lineH + 3
		l.reserve(boxH)

		l.pdf.SetDrawColor(accent.r, accent.g, accent.b)
		l.pdf.SetLineWidth(0.3)
		l.pdf.Rect(margin, l.y, 100, boxH, "D")

		l.y += 2
		l.pdf.SetFont("Helvetica", "B", 10)
		l.color(accent)
		l.text(margin+3, 94, 6, "Payment Information", "L")
		l.y += 6

		l.pdf.SetFont("Helvetica", "", 9)
		l.color(bodyTxt)
		for _, line := range info {
			l.text(margin+3, 94, lineH, line, "L")
			l.y += lineH
		}
		l.y += 6
	}

	if thanks != "" {
		l.reserve(10)
		l.pdf.SetFont("Helvetica", "I", 11)
		l.color(accent)
		l.text(margin, contentW, 8, thanks, "C")
		l.y += 8
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
