package admin

import (
	"fmt"
	"strings"

	"billing-backend/internal/apperror"
	"billing-backend/internal/auth"
	"billing-backend/internal/models"
	"billing-backend/internal/notification"
	"billing-backend/internal/pagination"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StatusRequest struct {
	Status *models.UserStatus `json:"status"`
}

// ----------------------------------------
// USERS
// ----------------------------------------

// GET /api/users?q=&page=&limit=
// The caller's own account is left out of the list.
func ListUsersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := pagination.Parse(c, 10)

		dbq := db.Model(&models.User{}).Where("id <> ?", auth.UserID(c))
		if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
			like := "%" + q + "%"
			dbq = dbq.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return apperror.Internal("count users failed", err)
		}

		var users []models.User
		if err := p.Apply(dbq).Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
			return apperror.Internal("list users failed", err)
		}

		out := make([]auth.UserResponse, 0, len(users))
		for i := range users {
			out = append(out, auth.NewUserResponse(&users[i]))
		}
		return c.JSON(pagination.New(out, p, total))
	}
}

// POST /api/users
func CreateUserHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body auth.RegisterRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}
		if err := auth.ValidateRegistration(&body); err != nil {
			return err
		}

		user, err := auth.CreateUser(db, body)
		if err != nil {
			return err
		}

		notification.Notify(db, log, user.ID, "Welcome",
			fmt.Sprintf("Your %s account was created by %s", user.Role, auth.Username(c)), notification.TypeInfo)
		return c.Status(fiber.StatusCreated).JSON(auth.NewUserResponse(user))
	}
}

// PATCH /api/users/:id/status
//
// Without a body the status toggles between active and revoked.
func UpdateUserStatusHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}
		if id == auth.UserID(c) {
			return apperror.Validation("Cannot revoke your own access")
		}

		var user models.User
		if err := db.First(&user, id).Error; err != nil {
			return apperror.FromDB(err, "User", "")
		}

		var body StatusRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return apperror.Validation("Invalid request body")
			}
		}

		next := models.UserStatusRevoked
		if user.IsRevoked() {
			next = models.UserStatusActive
		}
		if body.Status != nil {
			next = *body.Status
			if next != models.UserStatusActive && next != models.UserStatusRevoked {
				return apperror.ValidationFields("Validation failed", map[string]string{"status": "invalid_value"})
			}
		}

		if err := db.Model(&user).Update("status", next).Error; err != nil {
			return apperror.Internal("update user status failed", err)
		}

		if next == models.UserStatusRevoked {
			notification.Notify(db, log, user.ID, "Access revoked", "Your account access has been revoked", notification.TypeWarning)
		} else {
			notification.Notify(db, log, user.ID, "Access restored", "Your account access has been restored", notification.TypeSuccess)
		}

		return c.JSON(fiber.Map{
			"message": fmt.Sprintf("User %s is now %s", user.Username, next),
			"status":  next,
		})
	}
}
