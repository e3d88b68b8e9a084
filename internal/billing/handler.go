package billing

import (
	"fmt"
	"strconv"

	"billing-backend/internal/apperror"
	"billing-backend/internal/audit"
	"billing-backend/internal/auth"
	"billing-backend/internal/models"
	"billing-backend/internal/notification"
	"billing-backend/internal/pagination"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handlers exposes the engine over HTTP. Audit and notification writes
// happen after the bill is committed and never fail the request.
type Handlers struct {
	engine *Engine
	db     *gorm.DB
	log    *zap.Logger
}

func NewHandlers(engine *Engine, db *gorm.DB, log *zap.Logger) *Handlers {
	return &Handlers{engine: engine, db: db, log: log}
}

func (h *Handlers) record(c *fiber.Ctx, bill *models.Bill, action models.AuditAction, desc string, before, after any) {
	audit.Record(h.db, h.log, audit.LogOptions{
		UserID:      auth.UserID(c),
		UserName:    auth.Username(c),
		EntityType:  audit.EntityBill,
		EntityID:    bill.ID,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	})
}

// POST /api/bills
func (h *Handlers) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}
		body.CreatedBy = auth.UserID(c)

		bill, err := h.engine.Create(c.UserContext(), body)
		if err != nil {
			return err
		}

		h.record(c, bill, models.AuditActionCreate, "Bill created: "+bill.BillNumber, nil, bill)
		notification.Notify(h.db, h.log, bill.CreatedBy,
			"Bill created",
			fmt.Sprintf("%s for %s, total %.2f", bill.BillNumber, bill.Client.Name, bill.FinalAmount),
			notification.TypeSuccess)

		return c.Status(fiber.StatusCreated).JSON(bill)
	}
}

// GET /api/bills?clientId=&startDate=&endDate=&page=&limit=
func (h *Handlers) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := pagination.Parse(c, 10)

		rng, err := validation.ParseDateRange(c)
		if err != nil {
			return err
		}
		f := ListFilter{Range: rng, Offset: p.Offset(), Limit: p.Limit}
		if s := c.Query("clientId"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return apperror.Validation("clientId must be a number")
			}
			f.ClientID = uint(id)
		}

		bills, total, err := h.engine.List(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(pagination.New(bills, p, total))
	}
}

// GET /api/bills/:id
func (h *Handlers) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}
		bill, err := h.engine.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(bill)
	}
}

// PATCH /api/bills/:id
func (h *Handlers) Update() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var body UpdateInput
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		before, err := h.engine.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		bill, err := h.engine.Update(c.UserContext(), id, body)
		if err != nil {
			return err
		}

		h.record(c, bill, models.AuditActionUpdate, "Bill updated: "+bill.BillNumber, before, bill)
		return c.JSON(bill)
	}
}

// DELETE /api/bills/:id
func (h *Handlers) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		bill, err := h.engine.Delete(c.UserContext(), id)
		if err != nil {
			return err
		}

		h.record(c, bill, models.AuditActionDelete, "Bill deleted: "+bill.BillNumber, bill, nil)
		return c.JSON(fiber.Map{"message": "Bill deleted"})
	}
}
