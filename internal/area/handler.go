package area

import (
	"strings"

	"billing-backend/internal/apperror"
	"billing-backend/internal/models"
	"billing-backend/internal/pagination"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AreaRequest struct {
	Name string `json:"name"`
}

type CreateSubareaRequest struct {
	AreaID uint   `json:"areaId"`
	Name   string `json:"name"`
	// SubareaName is accepted as an alias of Name.
	SubareaName string `json:"subareaName"`
}

func orderedSubareas(db *gorm.DB) *gorm.DB {
	return db.Order("name ASC")
}

// GET /api/areas
func ListAreasHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := pagination.Parse(c, 50)

		var total int64
		if err := db.Model(&models.Area{}).Count(&total).Error; err != nil {
			return apperror.Internal("count areas failed", err)
		}

		var areas []models.Area
		if err := p.Apply(db.Preload("Subareas", orderedSubareas)).
			Order("name ASC").
			Find(&areas).Error; err != nil {
			return apperror.Internal("list areas failed", err)
		}

		return c.JSON(pagination.New(areas, p, total))
	}
}

// POST /api/areas
func CreateAreaHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AreaRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		a := models.Area{Name: strings.TrimSpace(body.Name), Subareas: []models.Subarea{}}
		v := validation.New()
		validation.Required("name", a.Name, v)
		validation.MaxLen("name", a.Name, 100, v)
		if err := v.Err(); err != nil {
			return err
		}

		if err := db.Create(&a).Error; err != nil {
			return apperror.FromDB(err, "Area", "name")
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	}
}

// PATCH /api/areas/:id
func UpdateAreaHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var a models.Area
		if err := db.First(&a, id).Error; err != nil {
			return apperror.FromDB(err, "Area", "")
		}

		var body AreaRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}
		a.Name = strings.TrimSpace(body.Name)

		v := validation.New()
		validation.Required("name", a.Name, v)
		if err := v.Err(); err != nil {
			return err
		}

		if err := db.Save(&a).Error; err != nil {
			return apperror.FromDB(err, "Area", "name")
		}
		if err := db.Preload("Subareas", orderedSubareas).First(&a, a.ID).Error; err != nil {
			return apperror.Internal("reload area failed", err)
		}
		return c.JSON(a)
	}
}

// DELETE /api/areas/:id
func DeleteAreaHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var a models.Area
		if err := db.First(&a, id).Error; err != nil {
			return apperror.FromDB(err, "Area", "")
		}

		var subs int64
		if err := db.Model(&models.Subarea{}).Where("area_id = ?", a.ID).Count(&subs).Error; err != nil {
			return apperror.Internal("count subareas failed", err)
		}
		if subs > 0 {
			return apperror.Validation("Area still has subareas")
		}

		if err := db.Delete(&a).Error; err != nil {
			return apperror.Internal("delete area failed", err)
		}
		return c.JSON(fiber.Map{"message": "Area deleted"})
	}
}

// GET /api/areas/:id/subareas
func ListSubareasHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var a models.Area
		if err := db.First(&a, id).Error; err != nil {
			return apperror.FromDB(err, "Area", "")
		}

		subs := make([]models.Subarea, 0)
		if err := db.Where("area_id = ?", a.ID).Order("name ASC").Find(&subs).Error; err != nil {
			return apperror.Internal("list subareas failed", err)
		}
		return c.JSON(subs)
	}
}

// POST /api/areas/subarea
func CreateSubareaHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSubareaRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			name = strings.TrimSpace(body.SubareaName)
		}

		v := validation.New()
		if body.AreaID == 0 {
			v.Add("areaId", "required")
		}
		validation.Required("name", name, v)
		validation.MaxLen("name", name, 100, v)
		if err := v.Err(); err != nil {
			return err
		}

		var a models.Area
		if err := db.First(&a, body.AreaID).Error; err != nil {
			return apperror.FromDB(err, "Area", "")
		}

		sub := models.Subarea{Name: name, AreaID: a.ID}
		if err := db.Create(&sub).Error; err != nil {
			return apperror.FromDB(err, "Subarea", "name within its area")
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	}
}

// DELETE /api/subareas/:id
func DeleteSubareaHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		res := db.Delete(&models.Subarea{}, id)
		if res.Error != nil {
			return apperror.Internal("delete subarea failed", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("Subarea not found")
		}
		return c.JSON(fiber.Map{"message": "Subarea deleted"})
	}
}
