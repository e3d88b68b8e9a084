package billing

import (
	"bufio"
	"fmt"
	"io"

	"billing-backend/internal/models"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Renderer interface {
	Render(w io.Writer, bill *models.Bill) error
}

// GET /api/bills/:id/pdf
//
// The bill is loaded before any byte is written, so a missing bill is still
// a JSON 404. Once the body stream starts the status is committed and a
// render failure can only be logged.
func (h *Handlers) PDF(renderer Renderer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		bill, err := h.engine.Get(c.UserContext(), id)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.pdf"`, bill.BillNumber))

		log := h.log.With(zap.Uint("bill_id", bill.ID), zap.String("bill_number", bill.BillNumber))
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			if err := renderer.Render(w, bill); err != nil {
				log.Error("invoice render failed after streaming started", zap.Error(err))
				return
			}
			if err := w.Flush(); err != nil {
				log.Warn("invoice stream interrupted", zap.Error(err))
			}
		})
		return nil
	}
}
