package client

import (
	"fmt"
	"strings"

	"billing-backend/internal/apperror"
	"billing-backend/internal/audit"
	"billing-backend/internal/auth"
	"billing-backend/internal/inventory"
	"billing-backend/internal/models"
	"billing-backend/internal/pagination"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateClientRequest struct {
	Code    string              `json:"code"`
	Name    string              `json:"name"`
	Phone   string              `json:"phone"`
	Address string              `json:"address"`
	Area    string              `json:"area"`
	Subarea string              `json:"subarea"`
	Status  models.ClientStatus `json:"status"`
}

type UpdateClientRequest struct {
	Code    *string              `json:"code"`
	Name    *string              `json:"name"`
	Phone   *string              `json:"phone"`
	Address *string              `json:"address"`
	Area    *string              `json:"area"`
	Subarea *string              `json:"subarea"`
	Status  *models.ClientStatus `json:"status"`
}

var statuses = []string{string(models.ClientActive), string(models.ClientInactive)}

func ValidateClient(cl *models.Client) error {
	v := validation.New()
	validation.Required("code", cl.Code, v)
	validation.MaxLen("code", cl.Code, 50, v)
	validation.Required("name", cl.Name, v)
	validation.Required("phone", cl.Phone, v)
	validation.MaxLen("address", cl.Address, 1000, v)
	validation.OneOf("status", string(cl.Status), statuses, v)
	return v.Err()
}

// GET /api/clients?q=&area=&subarea=&status=
func ListClientsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := pagination.Parse(c, 10)

		dbq := db.Model(&models.Client{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ? OR phone LIKE ?", like, like, like)
		}
		if s := c.Query("area"); s != "" {
			dbq = dbq.Where("area = ?", s)
		}
		if s := c.Query("subarea"); s != "" {
			dbq = dbq.Where("subarea = ?", s)
		}
		if s := c.Query("status"); s != "" {
			dbq = dbq.Where("status = ?", s)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return apperror.Internal("count clients failed", err)
		}

		var clients []models.Client
		if err := p.Apply(dbq).Order("created_at DESC, id DESC").Find(&clients).Error; err != nil {
			return apperror.Internal("list clients failed", err)
		}

		return c.JSON(pagination.New(clients, p, total))
	}
}

// GET /api/clients/:id
func GetClientHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cl models.Client
		if err := db.First(&cl, id).Error; err != nil {
			return apperror.FromDB(err, "Client", "")
		}
		return c.JSON(cl)
	}
}

// POST /api/clients
func CreateClientHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateClientRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		cl := models.Client{
			Code:    inventory.NormalizeCode(body.Code),
			Name:    strings.TrimSpace(body.Name),
			Phone:   strings.TrimSpace(body.Phone),
			Address: strings.TrimSpace(body.Address),
			Area:    strings.TrimSpace(body.Area),
			Subarea: strings.TrimSpace(body.Subarea),
			Status:  body.Status,
		}
		if cl.Status == "" {
			cl.Status = models.ClientActive
		}
		if err := ValidateClient(&cl); err != nil {
			return err
		}

		if err := db.Create(&cl).Error; err != nil {
			return apperror.FromDB(err, "Client", "code")
		}

		audit.Record(db, log, audit.LogOptions{
			UserID:      auth.UserID(c),
			UserName:    auth.Username(c),
			EntityType:  audit.EntityClient,
			EntityID:    cl.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Client created: %s", cl.Code),
			After:       cl,
		})

		return c.Status(fiber.StatusCreated).JSON(cl)
	}
}

// PATCH /api/clients/:id
func UpdateClientHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cl models.Client
		if err := db.First(&cl, id).Error; err != nil {
			return apperror.FromDB(err, "Client", "")
		}
		before := cl

		var body UpdateClientRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		if body.Code != nil {
			cl.Code = inventory.NormalizeCode(*body.Code)
		}
		if body.Name != nil {
			cl.Name = strings.TrimSpace(*body.Name)
		}
		if body.Phone != nil {
			cl.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.Address != nil {
			cl.Address = strings.TrimSpace(*body.Address)
		}
		if body.Area != nil {
			cl.Area = strings.TrimSpace(*body.Area)
		}
		if body.Subarea != nil {
			cl.Subarea = strings.TrimSpace(*body.Subarea)
		}
		if body.Status != nil {
			cl.Status = *body.Status
		}
		if err := ValidateClient(&cl); err != nil {
			return err
		}

		if err := db.Save(&cl).Error; err != nil {
			return apperror.FromDB(err, "Client", "code")
		}

		audit.Record(db, log, audit.LogOptions{
			UserID:      auth.UserID(c),
			UserName:    auth.Username(c),
			EntityType:  audit.EntityClient,
			EntityID:    cl.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Client updated: %s", cl.Code),
			Before:      before,
			After:       cl,
		})

		return c.JSON(cl)
	}
}

// DELETE /api/clients/:id
func DeleteClientHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var cl models.Client
		if err := db.First(&cl, id).Error; err != nil {
			return apperror.FromDB(err, "Client", "")
		}

		if err := db.Delete(&cl).Error; err != nil {
			return apperror.Internal("delete client failed", err)
		}

		audit.Record(db, log, audit.LogOptions{
			UserID:      auth.UserID(c),
			UserName:    auth.Username(c),
			EntityType:  audit.EntityClient,
			EntityID:    cl.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Client deleted: %s", cl.Code),
			Before:      cl,
		})

		return c.JSON(fiber.Map{"message": "Client deleted"})
	}
}
