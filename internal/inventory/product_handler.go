package inventory

import (
	"fmt"
	"strings"

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

type CreateProductRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
}

type UpdateProductRequest struct {
	Code        *string  `json:"code"`
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
}

// NormalizeCode is the canonical form product and client codes are stored in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidateProduct(p *models.Product) error {
	v := validation.New()
	validation.Required("code", p.Code, v)
	validation.MaxLen("code", p.Code, 50, v)
	validation.Required("name", p.Name, v)
	validation.MaxLen("name", p.Name, 200, v)
	validation.NonNegative("price", p.Price, v)
	validation.NonNegative("stock", float64(p.Stock), v)
	return v.Err()
}

// GET /api/products?q=&category=&page=&limit=
func ListProductsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := pagination.Parse(c, 10)

		dbq := db.Model(&models.Product{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(code) LIKE ? OR LOWER(name) LIKE ?", like, like)
		}
		if cat := strings.TrimSpace(c.Query("category")); cat != "" {
			dbq = dbq.Where("category = ?", cat)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return apperror.Internal("count products failed", err)
		}

		var products []models.Product
		if err := p.Apply(dbq).Order("created_at DESC, id DESC").Find(&products).Error; err != nil {
			return apperror.Internal("list products failed", err)
		}

		return c.JSON(pagination.New(products, p, total))
	}
}

// GET /api/products/:id
func GetProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var product models.Product
		if err := db.First(&product, id).Error; err != nil {
			return apperror.FromDB(err, "Product", "")
		}
		return c.JSON(product)
	}
}

// POST /api/products
func CreateProductHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		product := models.Product{
			Code:        NormalizeCode(body.Code),
			Name:        strings.TrimSpace(body.Name),
			Price:       body.Price,
			Stock:       body.Stock,
			Category:    strings.TrimSpace(body.Category),
			Description: strings.TrimSpace(body.Description),
			Image:       strings.TrimSpace(body.Image),
		}
		if err := ValidateProduct(&product); err != nil {
			return err
		}

		if err := db.Create(&product).Error; err != nil {
			return apperror.FromDB(err, "Product", "code")
		}

		audit.Record(db, log, audit.LogOptions{
			UserID:      auth.UserID(c),
			UserName:    auth.Username(c),
			EntityType:  audit.EntityProduct,
			EntityID:    product.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Product created: %s", product.Code),
			After:       product,
		})

		return c.Status(fiber.StatusCreated).JSON(product)
	}
}

// PATCH /api/products/:id
func UpdateProductHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var product models.Product
		if err := db.First(&product, id).Error; err != nil {
			return apperror.FromDB(err, "Product", "")
		}
		before := product

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		if body.Code != nil {
			product.Code = NormalizeCode(*body.Code)
		}
		if body.Name != nil {
			product.Name = strings.TrimSpace(*body.Name)
		}
		if body.Price != nil {
			product.Price = *body.Price
		}
		if body.Stock != nil {
			product.Stock = *body.Stock
		}
		if body.Category != nil {
			product.Category = strings.TrimSpace(*body.Category)
		}
		if body.Description != nil {
			product.Description = strings.TrimSpace(*body.Description)
		}
		if body.Image != nil {
			product.Image = strings.TrimSpace(*body.Image)
		}
		if err := ValidateProduct(&product); err != nil {
			return err
		}

		if err := db.Save(&product).Error; err != nil {
			return apperror.FromDB(err, "Product", "code")
		}

		audit.Record(db, log, audit.LogOptions{
			UserID:      auth.UserID(c),
			UserName:    auth.Username(c),
			EntityType:  audit.EntityProduct,
			EntityID:    product.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Product updated: %s", product.Code),
			Before:      before,
			After:       product,
		})

		return c.JSON(product)
	}
}

// DELETE /api/products/:id
func DeleteProductHandler(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := validation.ParamID(c, "id")
		if err != nil {
			return err
		}

		var product models.Product
		if err := db.First(&product, id).Error; err != nil {
			return apperror.FromDB(err, "Product", "")
		}

		if err := db.Delete(&product).Error; err != nil {
			return apperror.Internal("delete product failed", err)
		}

		audit.Record(db, log, audit.LogOptions{
			UserID:      auth.UserID(c),
			UserName:    auth.Username(c),
			EntityType:  audit.EntityProduct,
			EntityID:    product.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Product deleted: %s", product.Code),
			Before:      product,
		})

		return c.JSON(fiber.Map{"message": "Product deleted"})
	}
}
