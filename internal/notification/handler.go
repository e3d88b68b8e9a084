package notification

import (
	"billing-backend/internal/apperror"
	"billing-backend/internal/auth"
	"billing-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"
)

// InboxLimit is how many of the newest notifications the inbox returns.
const InboxLimit = 20

func Create(db *gorm.DB, userID uint, title, message, typ string) (*models.Notification, error) {
	if typ == "" {
		typ = TypeInfo
	}
	n := models.Notification{UserID: userID, Title: title, Message: message, Type: typ}
	if err := db.Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// Notify is the fire-and-forget form used after a committed write.
func Notify(db *gorm.DB, log *zap.Logger, userID uint, title, message, typ string) {
	if userID == 0 {
		return
	}
	if _, err := Create(db, userID, title, message, typ); err != nil {
		log.Warn("notification not written", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// GET /api/notifications
func ListHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows := make([]models.Notification, 0)
		if err := db.Where("user_id = ?", auth.UserID(c)).
			Order("created_at DESC, id DESC").
			Limit(InboxLimit).
			Find(&rows).Error; err != nil {
			return apperror.Internal("list notifications failed", err)
		}
		return c.JSON(rows)
	}
}

// PATCH /api/notifications/:id/read
func MarkReadHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var n models.Notification
		if err := db.Where("id = ? AND user_id = ?", c.Params("id"), auth.UserID(c)).First(&n).Error; err != nil {
			return apperror.FromDB(err, "Notification", "")
		}

		if err := db.Model(&n).Update("is_read", true).Error; err != nil {
			return apperror.Internal("mark notification failed", err)
		}
		n.IsRead = true
		return c.JSON(n)
	}
}

// POST /api/notifications/read-all
func MarkAllReadHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res := db.Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", auth.UserID(c), false).
			Update("is_read", true)
		if res.Error != nil {
			return apperror.Internal("mark notifications failed", res.Error)
		}
		return c.JSON(fiber.Map{"message": "All notifications marked as read", "updated": res.RowsAffected})
	}
}
