package billing_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"billing-backend/internal/apperror"
	"billing-backend/internal/auth"
	"billing-backend/internal/billing"
	"billing-backend/internal/config"
	"billing-backend/internal/database"
	"billing-backend/internal/invoice"
	"billing-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupBillApp(t *testing.T) (*fiber.App, *gorm.DB, models.Client) {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)

	user := models.User{Username: "cashier", Email: "cashier@example.com", PasswordHash: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(&user).Error)
	cl := models.Client{Code: "C001", Name: "Acme", Phone: "9999999999"}
	require.NoError(t, db.Create(&cl).Error)
	require.NoError(t, db.Create(&models.Product{Code: "P1", Name: "Soap", Price: 100}).Error)

	log := zap.NewNop()
	h := billing.NewHandlers(billing.NewEngine(db, 0), db, log)
	renderer := invoice.NewRenderer(config.InvoiceConfig{CurrencyPrefix: "Rs.", IssuerName: "Mellou"})

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(log)})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, user.ID)
		c.Locals(auth.CtxUsernameKey, user.Username)
		c.Locals(auth.CtxUserRoleKey, user.Role)
		return c.Next()
	})
	app.Post("/bills", h.Create())
	app.Get("/bills", h.List())
	app.Get("/bills/:id/pdf", h.PDF(renderer))
	app.Get("/bills/:id", h.Get())
	app.Patch("/bills/:id", h.Update())
	app.Delete("/bills/:id", h.Delete())
	return app, db, cl
}

func send(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestCreateBillOverHTTP(t *testing.T) {
	app, db, cl := setupBillApp(t)

	resp := send(t, app, "POST", "/bills", map[string]any{
		"clientId": cl.ID,
		"items":    []map[string]any{{"product": "P1", "quantity": 3}},
		"discount": 50,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var bill models.Bill
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bill))
	assert.Equal(t, 300.0, bill.TotalAmount)
	assert.Equal(t, 250.0, bill.FinalAmount)

	var logs []models.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionCreate, logs[0].Action)
	assert.Equal(t, "bill", logs[0].EntityType)

	var notes int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&notes).Error)
	assert.Equal(t, int64(1), notes)
}

func TestCreateBillErrors(t *testing.T) {
	app, _, cl := setupBillApp(t)

	resp := send(t, app, "POST", "/bills", map[string]any{
		"clientId": cl.ID,
		"items":    []map[string]any{{"product": "NOPE", "quantity": 1}},
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = send(t, app, "POST", "/bills", map[string]any{"clientId": cl.ID, "items": []any{}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = send(t, app, "GET", "/bills?clientId=abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListBillsPaginates(t *testing.T) {
	app, _, cl := setupBillApp(t)

	for i := 0; i < 3; i++ {
		resp := send(t, app, "POST", "/bills", map[string]any{
			"clientId": cl.ID,
			"items":    []map[string]any{{"product": "P1", "quantity": i + 1}},
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp := send(t, app, "GET", "/bills?page=2&limit=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var page struct {
		Data       []models.Bill `json:"data"`
		Pagination struct {
			Total      int64 `json:"total"`
			TotalPages int   `json:"totalPages"`
			HasMore    bool  `json:"hasMore"`
		} `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, int64(3), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasMore)
}

func TestPDFMissingBillIsJSON404(t *testing.T) {
	app, _, _ := setupBillApp(t)

	resp := send(t, app, "GET", "/bills/99/pdf", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Bill not found", out["message"])
}

func TestPDFStreamsDocument(t *testing.T) {
	app, _, cl := setupBillApp(t)

	resp := send(t, app, "POST", "/bills", map[string]any{
		"clientId": cl.ID,
		"items":    []map[string]any{{"product": "P1", "quantity": 1}},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var bill models.Bill
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bill))

	resp = send(t, app, "GET", fmt.Sprintf("/bills/%d/pdf", bill.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, fmt.Sprintf(`attachment; filename="%s.pdf"`, bill.BillNumber), resp.Header.Get("Content-Disposition"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))
	assert.True(t, bytes.Contains(body, []byte("%%EOF")))
}

func TestDeleteBillOverHTTP(t *testing.T) {
	app, _, cl := setupBillApp(t)

	resp := send(t, app, "POST", "/bills", map[string]any{
		"clientId": cl.ID,
		"items":    []map[string]any{{"product": "P1", "quantity": 1}},
	})
	var bill models.Bill
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bill))

	assert.Equal(t, fiber.StatusOK, send(t, app, "DELETE", fmt.Sprintf("/bills/%d", bill.ID), nil).StatusCode)
	assert.Equal(t, fiber.StatusNotFound, send(t, app, "GET", fmt.Sprintf("/bills/%d", bill.ID), nil).StatusCode)
	assert.Equal(t, fiber.StatusNotFound, send(t, app, "DELETE", fmt.Sprintf("/bills/%d", bill.ID), nil).StatusCode)
}
