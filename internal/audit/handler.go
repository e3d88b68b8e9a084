package audit

import (
	"strconv"

	"billing-backend/internal/apperror"
	"billing-backend/internal/auth"
	"billing-backend/internal/models"
	"billing-backend/internal/pagination"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GET /api/audit-logs?entityType=bill&entityId=1&userId=2
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := pagination.Parse(c, 20)

		dbq := db.Model(&models.AuditLog{})
		if et := c.Query("entityType"); et != "" {
			dbq = dbq.Where("entity_type = ?", et)
		}
		if s := c.Query("entityId"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return apperror.Validation("entityId must be a number")
			}
			dbq = dbq.Where("entity_id = ?", id)
		}
		if s := c.Query("userId"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return apperror.Validation("userId must be a number")
			}
			dbq = dbq.Where("user_id = ?", id)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return apperror.Internal("count audit logs failed", err)
		}

		var logs []models.AuditLog
		if err := p.Apply(dbq).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
			return apperror.Internal("list audit logs failed", err)
		}

		return c.JSON(pagination.New(logs, p, total))
	}
}

// POST /api/audit-logs/:id/undo
func UndoAuditLogHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := c.ParamsInt("id")
		if err != nil || logID <= 0 {
			return apperror.Validation("Invalid log id")
		}

		if err := UndoLog(db, uint(logID), auth.UserID(c), auth.Username(c)); err != nil {
			return err
		}

		return c.JSON(fiber.Map{"message": "Change undone"})
	}
}
