package expense

import (
	"fmt"
	"strings"

	"billing-backend/internal/apperror"
	"billing-backend/internal/models"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func validateCategory(cat *models.ExpenseCategory) error {
	v := validation.New()
	validation.Required("name", cat.Name, v)
	validation.MaxLen("name", cat.Name, 100, v)
	validation.MaxLen("description", cat.Description, 255, v)
	return v.Err()
}

// GET /api/expense-categories
func ListCategoriesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cats := make([]models.ExpenseCategory, 0)
		if err := db.Order("name ASC").Find(&cats).Error; err != nil {
			return apperror.Internal("list categories failed", err)
		}
		return c.JSON(cats)
	}
}

// POST /api/expense-categories
func CreateCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		var cat models.ExpenseCategory
		if body.Name != nil {
			cat.Name = strings.TrimSpace(*body.Name)
		}
		if body.Description != nil {
			cat.Description = strings.TrimSpace(*body.Description)
		}
		if err := validateCategory(&cat); err != nil {
			return err
		}

		if err := db.Create(&cat).Error; err != nil {
			return apperror.FromDB(err, "Category", "name")
		}
		return c.Status(fiber.StatusCreated).JSON(cat)
	}
}

// PATCH /api/expense-categories/:id
func UpdateCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cat models.ExpenseCategory
		if err := db.First(&cat, id).Error; err != nil {
			return apperror.FromDB(err, "Category", "")
		}

		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}
		if body.Name != nil {
			cat.Name = strings.TrimSpace(*body.Name)
		}
		if body.Description != nil {
			cat.Description = strings.TrimSpace(*body.Description)
		}
		if err := validateCategory(&cat); err != nil {
			return err
		}

		if err := db.Save(&cat).Error; err != nil {
			return apperror.FromDB(err, "Category", "name")
		}
		return c.JSON(cat)
	}
}

// DELETE /api/expense-categories/:id
//
// A category still referenced by an expense, deleted ones included, cannot
// be removed.
func DeleteCategoryHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cat models.ExpenseCategory
		if err := db.First(&cat, id).Error; err != nil {
			return apperror.FromDB(err, "Category", "")
		}

		var used int64
		if err := db.Unscoped().Model(&models.Expense{}).Where("category_id = ?", cat.ID).Count(&used).Error; err != nil {
			return apperror.Internal("count expenses failed", err)
		}
		if used > 0 {
			return apperror.Validation(fmt.Sprintf("Cannot delete category: used in %d expenses", used))
		}

		if err := db.Delete(&cat).Error; err != nil {
			return apperror.Internal("delete category failed", err)
		}
		return c.JSON(fiber.Map{"message": "Category deleted successfully"})
	}
}
