package expense

import (
	"fmt"
	"time"

	"billing-backend/internal/apperror"
	"billing-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Expenses"

var exportHeaders = []string{"Date", "Category", "Description", "Payment Method", "Amount", "Receipt"}

// Workbook lays the expenses out as one sheet with a header row and a total
// under the amount column.
func Workbook(rows []models.Expense) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, err
		}
	}

	var total float64
	for idx, e := range rows {
		r := idx + 2
		category := ""
		if e.Category != nil {
			category = e.Category.Name
		}
		values := []any{e.Date.Format("2006-01-02"), category, e.Description, string(e.PaymentMethod), e.Amount, e.ReceiptURL}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, err
			}
		}
		total += e.Amount
	}

	last := len(rows) + 2
	_ = f.SetCellValue(exportSheet, fmt.Sprintf("D%d", last), "Total")
	_ = f.SetCellValue(exportSheet, fmt.Sprintf("E%d", last), total)

	_ = f.SetColWidth(exportSheet, "A", "A", 12)
	_ = f.SetColWidth(exportSheet, "B", "B", 18)
	_ = f.SetColWidth(exportSheet, "C", "C", 40)
	_ = f.SetColWidth(exportSheet, "D", "D", 16)
	_ = f.SetColWidth(exportSheet, "E", "E", 12)
	_ = f.SetColWidth(exportSheet, "F", "F", 40)
	return f, nil
}

// GET /api/expenses/export?startDate=&endDate=&categoryId=
func (h *Handlers) Export() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq, err := filtered(h.db, c)
		if err != nil {
			return err
		}

		var rows []models.Expense
		if err := dbq.Preload("Category").Order("date ASC, id ASC").Find(&rows).Error; err != nil {
			return apperror.Internal("list expenses failed", err)
		}

		f, err := Workbook(rows)
		if err != nil {
			return apperror.Internal("build workbook failed", err)
		}
		defer f.Close()

		buf, err := f.WriteToBuffer()
		if err != nil {
			return apperror.Internal("write workbook failed", err)
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="expenses_%s.xlsx"`, time.Now().Format("20060102")))
		return c.Send(buf.Bytes())
	}
}
