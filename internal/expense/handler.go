package expense

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"billing-backend/internal/apperror"
	"billing-backend/internal/audit"
	"billing-backend/internal/auth"
	"billing-backend/internal/models"
	"billing-backend/internal/pagination"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExpenseRequest is accepted as JSON or as a multipart form. Nil fields are
// left unchanged on update.
type ExpenseRequest struct {
	Date          *string  `json:"date" form:"date"`
	Amount        *float64 `json:"amount" form:"amount"`
	CategoryID    *uint    `json:"categoryId" form:"categoryId"`
	Category      *uint    `json:"category" form:"category"`
	Description   *string  `json:"description" form:"description"`
	PaymentMethod *string  `json:"paymentMethod" form:"paymentMethod"`
}

func (r ExpenseRequest) categoryID() *uint {
	if r.CategoryID != nil {
		return r.CategoryID
	}
	return r.Category
}

type Handlers struct {
	db       *gorm.DB
	log      *zap.Logger
	receipts *ReceiptStore
}

func NewHandlers(db *gorm.DB, log *zap.Logger, receipts *ReceiptStore) *Handlers {
	return &Handlers{db: db, log: log, receipts: receipts}
}

func ValidateExpense(e *models.Expense) error {
	v := validation.New()
	validation.NonNegative("amount", e.Amount, v)
	if e.CategoryID == 0 {
		v.Add("categoryId", "required")
	}
	validation.Required("description", e.Description, v)
	validation.MaxLen("description", e.Description, 1000, v)
	validation.OneOf("paymentMethod", string(e.PaymentMethod), models.PaymentMethods, v)
	if e.Date.IsZero() {
		v.Add("date", "required")
	}
	return v.Err()
}

// apply copies the set request fields onto e.
func apply(e *models.Expense, body ExpenseRequest) error {
	if body.Date != nil {
		d, err := validation.ParseDate(strings.TrimSpace(*body.Date))
		if err != nil {
			return apperror.ValidationFields("Validation failed", map[string]string{"date": "must_be_YYYY-MM-DD"})
		}
		e.Date = d
	}
	if body.Amount != nil {
		e.Amount = *body.Amount
	}
	if id := body.categoryID(); id != nil {
		e.CategoryID = *id
	}
	if body.Description != nil {
		e.Description = strings.TrimSpace(*body.Description)
	}
	if body.PaymentMethod != nil {
		e.PaymentMethod = models.PaymentMethod(strings.TrimSpace(*body.PaymentMethod))
	}
	return nil
}

func (h *Handlers) category(id uint) (*models.ExpenseCategory, error) {
	var cat models.ExpenseCategory
	if err := h.db.First(&cat, id).Error; err != nil {
		return nil, apperror.FromDB(err, "Category", "")
	}
	return &cat, nil
}

// discard removes a receipt saved for a write that did not commit.
func (h *Handlers) discard(url string) {
	if url == "" {
		return
	}
	name := filepath.Base(url)
	if err := os.Remove(filepath.Join(h.receipts.dir, name)); err != nil && !os.IsNotExist(err) {
		h.log.Warn("orphaned receipt not removed", zap.String("file", name), zap.Error(err))
	}
}

func (h *Handlers) record(c *fiber.Ctx, e *models.Expense, action models.AuditAction, before, after any) {
	audit.Record(h.db, h.log, audit.LogOptions{
		UserID:      auth.UserID(c),
		UserName:    auth.Username(c),
		EntityType:  audit.EntityExpense,
		EntityID:    e.ID,
		Action:      action,
		Description: fmt.Sprintf("Expense %s: %.2f %s", action, e.Amount, e.Description),
		Before:      before,
		After:       after,
	})
}

func filtered(db *gorm.DB, c *fiber.Ctx) (*gorm.DB, error) {
	rng, err := validation.ParseDateRange(c)
	if err != nil {
		return nil, err
	}
	dbq := rng.Apply(db.Model(&models.Expense{}), "date")
	if s := c.Query("categoryId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, apperror.Validation("categoryId must be a number")
		}
		dbq = dbq.Where("category_id = ?", id)
	}
	return dbq, nil
}

// GET /api/expenses?startDate=&endDate=&categoryId=&page=&limit=
func (h *Handlers) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := pagination.Parse(c, 10)
		dbq, err := filtered(h.db, c)
		if err != nil {
			return err
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return apperror.Internal("count expenses failed", err)
		}

		var rows []models.Expense
		if err := p.Apply(dbq).Preload("Category").Order("date DESC, id DESC").Find(&rows).Error; err != nil {
			return apperror.Internal("list expenses failed", err)
		}
		return c.JSON(pagination.New(rows, p, total))
	}
}

// GET /api/expenses/:id
func (h *Handlers) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var e models.Expense
		if err := h.db.Preload("Category").First(&e, id).Error; err != nil {
			return apperror.FromDB(err, "Expense", "")
		}
		return c.JSON(e)
	}
}

// POST /api/expenses (JSON or multipart with optional "receipt" file)
func (h *Handlers) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		e := models.Expense{Date: time.Now().UTC(), PaymentMethod: models.PaymentCash}
		if err := apply(&e, body); err != nil {
			return err
		}
		if body.Amount == nil {
			return apperror.ValidationFields("Validation failed", map[string]string{"amount": "required"})
		}
		if err := ValidateExpense(&e); err != nil {
			return err
		}

		cat, err := h.category(e.CategoryID)
		if err != nil {
			return err
		}

		if fh := receiptFile(c); fh != nil {
			url, err := h.receipts.Save(c, fh)
			if err != nil {
				return err
			}
			e.ReceiptURL = url
		}

		if err := h.db.Create(&e).Error; err != nil {
			h.discard(e.ReceiptURL)
			return apperror.FromDB(err, "Expense", "")
		}
		e.Category = cat

		h.record(c, &e, models.AuditActionCreate, nil, e)
		return c.Status(fiber.StatusCreated).JSON(e)
	}
}

// PATCH /api/expenses/:id
func (h *Handlers) Update() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var e models.Expense
		if err := h.db.First(&e, id).Error; err != nil {
			return apperror.FromDB(err, "Expense", "")
		}
		before := e

		var body ExpenseRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}
		if err := apply(&e, body); err != nil {
			return err
		}
		if err := ValidateExpense(&e); err != nil {
			return err
		}

		cat, err := h.category(e.CategoryID)
		if err != nil {
			return err
		}

		if fh := receiptFile(c); fh != nil {
			url, err := h.receipts.Save(c, fh)
			if err != nil {
				return err
			}
			e.ReceiptURL = url
		}

		e.Category = nil
		if err := h.db.Save(&e).Error; err != nil {
			if e.ReceiptURL != before.ReceiptURL {
				h.discard(e.ReceiptURL)
			}
			return apperror.FromDB(err, "Expense", "")
		}
		e.Category = cat

		h.record(c, &e, models.AuditActionUpdate, before, e)
		return c.JSON(e)
	}
}

// DELETE /api/expenses/:id
func (h *Handlers) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var e models.Expense
		if err := h.db.First(&e, id).Error; err != nil {
			return apperror.FromDB(err, "Expense", "")
		}
		if err := h.db.Delete(&e).Error; err != nil {
			return apperror.Internal("delete expense failed", err)
		}

		h.record(c, &e, models.AuditActionDelete, e, nil)
		return c.JSON(fiber.Map{"message": "Expense deleted successfully"})
	}
}
