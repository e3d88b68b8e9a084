package dashboard

import (
	"billing-backend/internal/models"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type AnalyticsResponse struct {
	TotalRevenue float64       `json:"totalRevenue"`
	SalesByDate  []DayTotal    `json:"salesByDate"`
	RecentBills  []models.Bill `json:"recentBills"`
}

// GET /api/analytics
func AnalyticsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := svc.Summary(c.UserContext(), validation.DateRange{})
		if err != nil {
			return err
		}
		return c.JSON(AnalyticsResponse{
			TotalRevenue: s.TotalRevenue,
			SalesByDate:  s.RevenueByDay,
			RecentBills:  s.RecentBills,
		})
	}
}

// GET /api/dashboard/stats?startDate=2026-01-01&endDate=2026-01-31
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rng, err := validation.ParseDateRange(c)
		if err != nil {
			return err
		}
		s, err := svc.Summary(c.UserContext(), rng)
		if err != nil {
			return err
		}
		return c.JSON(s)
	}
}
