package inventory

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"billing-backend/internal/apperror"
	"billing-backend/internal/audit"
	"billing-backend/internal/auth"
	"billing-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImportRow is one product line read from a spreadsheet. Columns are code,
// name, price, stock, category in that order.
type ImportRow struct {
	Line     int
	Code     string
	Name     string
	Price    float64
	Stock    int
	Category string
}

type RowError struct {
	Line    int    `json:"line"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped []RowError `json:"skipped"`
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToUpper(strings.TrimSpace(row[0]))
	return strings.Contains(first, "CODE") || strings.Contains(first, "PRODUCT")
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// ParseProductSheet reads the first sheet of an xlsx workbook. Rows that
// cannot be parsed are returned as RowErrors; empty rows are ignored.
func ParseProductSheet(r io.Reader) ([]ImportRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet: %w", err)
	}

	start := 0
	if len(rows) > 0 && isHeaderRow(rows[0]) {
		start = 1
	}

	var out []ImportRow
	var bad []RowError
	for i := start; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		code := NormalizeCode(cell(row, 0))
		if code == "" && cell(row, 1) == "" {
			continue
		}

		ir := ImportRow{Line: line, Code: code, Name: cell(row, 1), Category: cell(row, 4)}

		if s := cell(row, 2); s != "" {
			price, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
			if err != nil {
				bad = append(bad, RowError{Line: line, Code: code, Message: "price is not a number"})
				continue
			}
			ir.Price = price
		}
		if s := cell(row, 3); s != "" {
			stock, err := strconv.ParseFloat(s, 64)
			if err != nil {
				bad = append(bad, RowError{Line: line, Code: code, Message: "stock is not a number"})
				continue
			}
			ir.Stock = int(stock)
		}

		out = append(out, ir)
	}
	return out, bad, nil
}

// ImportProducts upserts rows by code. A row failing validation is skipped
// and reported; the rest are still applied.
func ImportProducts(db *gorm.DB, rows []ImportRow) (ImportResult, error) {
	res := ImportResult{Skipped: []RowError{}}

	for _, r := range rows {
		candidate := models.Product{Code: r.Code, Name: r.Name, Price: r.Price, Stock: r.Stock, Category: r.Category}
		if err := ValidateProduct(&candidate); err != nil {
			res.Skipped = append(res.Skipped, RowError{Line: r.Line, Code: r.Code, Message: describe(err)})
			continue
		}

		var existing models.Product
		err := db.Where("code = ?", r.Code).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&candidate).Error; err != nil {
				if apperror.IsUniqueViolation(err) {
					res.Skipped = append(res.Skipped, RowError{Line: r.Line, Code: r.Code, Message: "code belongs to a deleted product"})
					continue
				}
				return res, apperror.Internal("import product failed", err)
			}
			res.Created++

		case err != nil:
			return res, apperror.Internal("product lookup failed", err)

		default:
			existing.Name = candidate.Name
			existing.Price = candidate.Price
			existing.Stock = candidate.Stock
			if candidate.Category != "" {
				existing.Category = candidate.Category
			}
			if err := db.Save(&existing).Error; err != nil {
				return res, apperror.Internal("import product failed", err)
			}
			res.Updated++
		}
	}
	return res, nil
}

func describe(err error) string {
	var ae *apperror.Error
	if errors.As(err, &ae) && len(ae.Fields) > 0 {
		parts := make([]string, 0, len(ae.Fields))
		for k, v := range ae.Fields {
			parts = append(parts, k+": "+v)
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	return err.Error()
}

// POST /api/products/import (multipart, field "file")
func ImportProductsHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperror.Validation("file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperror.Validation("Only .xlsx files can be imported")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return apperror.Internal("open upload failed", err)
		}
		defer file.Close()

		rows, bad, err := ParseProductSheet(file)
		if err != nil {
			return apperror.Validation("Workbook could not be read")
		}

		res, err := ImportProducts(db, rows)
		if err != nil {
			return err
		}
		res.Skipped = append(append([]RowError{}, bad...), res.Skipped...)

		log.Info("products imported",
			zap.String("file", fileHeader.Filename),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int("skipped", len(res.Skipped)))

		audit.Record(db, log, audit.LogOptions{
			UserID:      auth.UserID(c),
			UserName:    auth.Username(c),
			EntityType:  audit.EntityProduct,
			Action:      models.AuditActionImport,
			Description: fmt.Sprintf("Imported %s: %d created, %d updated", fileHeader.Filename, res.Created, res.Updated),
			After:       res,
		})

		return c.JSON(res)
	}
}
