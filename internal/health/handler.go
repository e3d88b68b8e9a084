package health

import "github.com/gofiber/fiber/v2"

// GET /api/health
func Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "OK"})
	}
}
