package expense

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"billing-backend/internal/apperror"
	"billing-backend/internal/database"
	"billing-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	app    *fiber.App
	db     *gorm.DB
	upload string
}

func setupExpenseApp(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)

	dir := t.TempDir()
	log := zap.NewNop()
	h := NewHandlers(db, log, NewReceiptStore(dir, "/uploads/"))

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(log)})
	app.Get("/expense-categories", ListCategoriesHandler(db))
	app.Post("/expense-categories", CreateCategoryHandler(db))
	app.Patch("/expense-categories/:id", UpdateCategoryHandler(db))
	app.Delete("/expense-categories/:id", DeleteCategoryHandler(db))
	app.Get("/expenses/export", h.Export())
	app.Get("/expenses", h.List())
	app.Get("/expenses/:id", h.Get())
	app.Post("/expenses", h.Create())
	app.Patch("/expenses/:id", h.Update())
	app.Delete("/expenses/:id", h.Delete())
	return &fixture{app: app, db: db, upload: dir}
}

func (f *fixture) json(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *fixture) category(t *testing.T, name string) models.ExpenseCategory {
	t.Helper()
	cat := models.ExpenseCategory{Name: name}
	require.NoError(t, f.db.Create(&cat).Error)
	return cat
}

func day(s string) time.Time {
	d, _ := time.ParseInLocation("2006-01-02", s, time.UTC)
	return d
}

func TestCategoryCRUD(t *testing.T) {
	f := setupExpenseApp(t)

	resp, out := f.json(t, "POST", "/expense-categories", map[string]string{"name": " Rent "})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Rent", out["name"])

	resp, out = f.json(t, "POST", "/expense-categories", map[string]string{"name": "Rent"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Category name must be unique", out["message"])

	resp, _ = f.json(t, "POST", "/expense-categories", map[string]string{"name": ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.json(t, "PATCH", "/expense-categories/99", map[string]string{"name": "X"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteCategoryInUse(t *testing.T) {
	f := setupExpenseApp(t)
	rent := f.category(t, "Rent")
	spare := f.category(t, "Spare")

	for i := 0; i < 2; i++ {
		e := models.Expense{Date: day("2026-03-01"), Amount: 10, CategoryID: rent.ID, Description: "rent", PaymentMethod: models.PaymentCash}
		require.NoError(t, f.db.Create(&e).Error)
	}
	var first models.Expense
	require.NoError(t, f.db.First(&first).Error)
	require.NoError(t, f.db.Delete(&first).Error)

	resp, out := f.json(t, "DELETE", fmt.Sprintf("/expense-categories/%d", rent.ID), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cannot delete category: used in 2 expenses", out["message"])

	resp, _ = f.json(t, "DELETE", fmt.Sprintf("/expense-categories/%d", spare.ID), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateExpenseJSON(t *testing.T) {
	f := setupExpenseApp(t)
	cat := f.category(t, "Fuel")

	resp, out := f.json(t, "POST", "/expenses", map[string]any{
		"date": "2026-03-10", "amount": 45.5, "categoryId": cat.ID, "description": "Diesel", "paymentMethod": "UPI",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, 45.5, out["amount"])
	assert.Equal(t, "UPI", out["paymentMethod"])
	assert.Equal(t, "Fuel", out["category"].(map[string]any)["name"])

	var logs int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Where("entity_type = ?", "expense").Count(&logs).Error)
	assert.Equal(t, int64(1), logs)
}

func TestCreateExpenseValidation(t *testing.T) {
	f := setupExpenseApp(t)
	cat := f.category(t, "Fuel")

	resp, out := f.json(t, "POST", "/expenses", map[string]any{"categoryId": cat.ID, "description": "Diesel"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "required", out["errors"].(map[string]any)["amount"])

	resp, out = f.json(t, "POST", "/expenses", map[string]any{"amount": 5, "categoryId": cat.ID, "description": "x", "paymentMethod": "Cheque"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["errors"].(map[string]any)["paymentMethod"], "must_be_one_of")

	resp, out = f.json(t, "POST", "/expenses", map[string]any{"amount": 5, "categoryId": cat.ID, "description": "x", "date": "10/03/2026"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "must_be_YYYY-MM-DD", out["errors"].(map[string]any)["date"])

	resp, out = f.json(t, "POST", "/expenses", map[string]any{"amount": 5, "categoryId": 404, "description": "x"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Category not found", out["message"])
}

func multipartExpense(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("receipt", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/expenses", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestCreateExpenseWithReceipt(t *testing.T) {
	f := setupExpenseApp(t)
	cat := f.category(t, "Fuel")
	fields := map[string]string{"date": "2026-03-10", "amount": "12.75", "categoryId": fmt.Sprint(cat.ID), "description": "Petrol"}

	resp, err := f.app.Test(multipartExpense(t, fields, "bill.PNG", []byte("png-bytes")), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var e models.Expense
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, 12.75, e.Amount)
	assert.True(t, strings.HasPrefix(e.ReceiptURL, "/uploads/expenses/"))
	assert.True(t, strings.HasSuffix(e.ReceiptURL, ".png"))

	stored, err := os.ReadFile(filepath.Join(f.upload, "expenses", filepath.Base(e.ReceiptURL)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(stored))
}

func TestCreateExpenseRejectsReceiptType(t *testing.T) {
	f := setupExpenseApp(t)
	cat := f.category(t, "Fuel")
	fields := map[string]string{"amount": "1", "categoryId": fmt.Sprint(cat.ID), "description": "Petrol"}

	resp, err := f.app.Test(multipartExpense(t, fields, "run.exe", []byte("MZ")), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "unsupported_file_type")

	var n int64
	require.NoError(t, f.db.Model(&models.Expense{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	f := setupExpenseApp(t)
	fuel := f.category(t, "Fuel")
	rent := f.category(t, "Rent")
	e := models.Expense{Date: day("2026-03-01"), Amount: 10, CategoryID: fuel.ID, Description: "fuel", PaymentMethod: models.PaymentCash}
	require.NoError(t, f.db.Create(&e).Error)

	resp, out := f.json(t, "PATCH", fmt.Sprintf("/expenses/%d", e.ID), map[string]any{"category": rent.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(rent.ID), out["categoryId"])
	assert.Equal(t, 10.0, out["amount"])

	resp, _ = f.json(t, "DELETE", fmt.Sprintf("/expenses/%d", e.ID), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = f.json(t, "GET", fmt.Sprintf("/expenses/%d", e.ID), nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListExpensesFilters(t *testing.T) {
	f := setupExpenseApp(t)
	fuel := f.category(t, "Fuel")
	rent := f.category(t, "Rent")
	seed := []models.Expense{
		{Date: day("2026-03-01"), Amount: 10, CategoryID: fuel.ID, Description: "a", PaymentMethod: models.PaymentCash},
		{Date: day("2026-03-05"), Amount: 20, CategoryID: rent.ID, Description: "b", PaymentMethod: models.PaymentCash},
		{Date: day("2026-04-01"), Amount: 30, CategoryID: fuel.ID, Description: "c", PaymentMethod: models.PaymentCash},
	}
	require.NoError(t, f.db.Create(&seed).Error)

	total := func(q string) float64 {
		resp, out := f.json(t, "GET", "/expenses"+q, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		return out["pagination"].(map[string]any)["total"].(float64)
	}
	assert.Equal(t, 3.0, total(""))
	assert.Equal(t, 2.0, total("?startDate=2026-03-01&endDate=2026-03-31"))
	assert.Equal(t, 2.0, total(fmt.Sprintf("?categoryId=%d", fuel.ID)))

	resp, _ := f.json(t, "GET", "/expenses?categoryId=abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWorkbook(t *testing.T) {
	rows := []models.Expense{
		{Date: day("2026-03-01"), Amount: 100.5, Category: &models.ExpenseCategory{Name: "Rent"}, Description: "March", PaymentMethod: models.PaymentBankTransfer},
		{Date: day("2026-03-02"), Amount: 20, Description: "Tea", PaymentMethod: models.PaymentCash},
	}
	wb, err := Workbook(rows)
	require.NoError(t, err)
	defer wb.Close()

	got := func(cell string) string {
		v, err := wb.GetCellValue(exportSheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Date", got("A1"))
	assert.Equal(t, "Receipt", got("F1"))
	assert.Equal(t, "2026-03-01", got("A2"))
	assert.Equal(t, "Rent", got("B2"))
	assert.Equal(t, "Bank Transfer", got("D2"))
	assert.Equal(t, "", got("B3"))
	assert.Equal(t, "Total", got("D4"))
	assert.Equal(t, "120.5", got("E4"))
}

func TestExportStreamsWorkbook(t *testing.T) {
	f := setupExpenseApp(t)
	cat := f.category(t, "Fuel")
	require.NoError(t, f.db.Create(&models.Expense{Date: day("2026-03-01"), Amount: 10, CategoryID: cat.ID, Description: "a", PaymentMethod: models.PaymentCash}).Error)

	resp, err := f.app.Test(httptest.NewRequest("GET", "/expenses/export", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "expenses_")

	wb, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer wb.Close()
	v, err := wb.GetCellValue(exportSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Fuel", v)
}
