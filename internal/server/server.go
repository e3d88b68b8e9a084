// Package server assembles the Fiber application: middleware, static uploads
// and every /api route.
package server

import (
	"strings"

	"billing-backend/internal/admin"
	"billing-backend/internal/apperror"
	"billing-backend/internal/area"
	"billing-backend/internal/audit"
	"billing-backend/internal/auth"
	"billing-backend/internal/billing"
	"billing-backend/internal/client"
	"billing-backend/internal/config"
	"billing-backend/internal/dashboard"
	"billing-backend/internal/expense"
	"billing-backend/internal/health"
	"billing-backend/internal/inventory"
	"billing-backend/internal/invoice"
	"billing-backend/internal/logging"
	"billing-backend/internal/models"
	"billing-backend/internal/notification"
	"billing-backend/internal/setting"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const bodyLimit = 10 << 20

func New(cfg *config.Config, db *gorm.DB, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "billing-backend",
		ErrorHandler: apperror.Handler(log),
		BodyLimit:    bodyLimit,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logging.RequestLogger(log))

	origins := strings.Split(cfg.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(origins, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders: "Content-Disposition",
	}))

	app.Static(cfg.UploadURL, cfg.UploadPath)

	Routes(app, cfg, db, log)
	return app
}

// Routes registers the /api tree on app.
func Routes(app *fiber.App, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	engine := billing.NewEngine(db, cfg.Invoice.TaxRate)
	bills := billing.NewHandlers(engine, db, log)
	renderer := invoice.NewRenderer(cfg.Invoice)
	expenses := expense.NewHandlers(db, log, expense.NewReceiptStore(cfg.UploadPath, cfg.UploadURL))
	stats := dashboard.NewService(db)

	api := app.Group("/api")

	// Public
	api.Get("/health", health.Handler())
	api.Post("/auth/register", auth.RegisterHandler(cfg, db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db))

	// Protected
	protected := api.Group("", auth.JWTMiddleware(cfg))
	adminOnly := auth.RequireRole(models.RoleAdmin)

	protected.Get("/auth/me", auth.MeHandler(db))
	protected.Post("/auth/change-password", auth.ChangePasswordHandler(db))

	// Products
	protected.Get("/products", inventory.ListProductsHandler(db))
	protected.Post("/products/import", adminOnly, inventory.ImportProductsHandler(db, log))
	protected.Get("/products/:id", inventory.GetProductHandler(db))
	protected.Post("/products", inventory.CreateProductHandler(db, log))
	protected.Patch("/products/:id", inventory.UpdateProductHandler(db, log))
	protected.Delete("/products/:id", inventory.DeleteProductHandler(db, log))

	// Clients
	protected.Get("/clients", client.ListClientsHandler(db))
	protected.Get("/clients/:id", client.GetClientHandler(db))
	protected.Post("/clients", client.CreateClientHandler(db, log))
	protected.Patch("/clients/:id", client.UpdateClientHandler(db, log))
	protected.Delete("/clients/:id", client.DeleteClientHandler(db, log))

	// Areas
	protected.Get("/areas", area.ListAreasHandler(db))
	protected.Post("/areas/subarea", area.CreateSubareaHandler(db))
	protected.Post("/areas", area.CreateAreaHandler(db))
	protected.Patch("/areas/:id", area.UpdateAreaHandler(db))
	protected.Delete("/areas/:id", area.DeleteAreaHandler(db))
	protected.Get("/areas/:id/subareas", area.ListSubareasHandler(db))
	protected.Delete("/subareas/:id", area.DeleteSubareaHandler(db))

	// Bills
	protected.Post("/bills", bills.Create())
	protected.Get("/bills", bills.List())
	protected.Get("/bills/:id/pdf", bills.PDF(renderer))
	protected.Get("/bills/:id", bills.Get())
	protected.Patch("/bills/:id", bills.Update())
	protected.Delete("/bills/:id", bills.Delete())

	// Expenses
	protected.Get("/expense-categories", expense.ListCategoriesHandler(db))
	protected.Post("/expense-categories", expense.CreateCategoryHandler(db))
	protected.Patch("/expense-categories/:id", expense.UpdateCategoryHandler(db))
	protected.Delete("/expense-categories/:id", expense.DeleteCategoryHandler(db))
	protected.Get("/expenses/export", expenses.Export())
	protected.Get("/expenses", expenses.List())
	protected.Get("/expenses/:id", expenses.Get())
	protected.Post("/expenses", expenses.Create())
	protected.Patch("/expenses/:id", expenses.Update())
	protected.Delete("/expenses/:id", expenses.Delete())

	// Dashboard
	protected.Get("/analytics", dashboard.AnalyticsHandler(stats))
	protected.Get("/dashboard/stats", dashboard.StatsHandler(stats))

	// Settings
	protected.Get("/settings", setting.GetHandler(db))
	protected.Post("/settings", adminOnly, setting.SaveHandler(db))

	// Notifications
	protected.Get("/notifications", notification.ListHandler(db))
	protected.Post("/notifications/read-all", notification.MarkAllReadHandler(db))
	protected.Patch("/notifications/:id/read", notification.MarkReadHandler(db))

	// Admin
	protected.Get("/users", adminOnly, admin.ListUsersHandler(db))
	protected.Post("/users", adminOnly, admin.CreateUserHandler(db, log))
	protected.Patch("/users/:id/status", adminOnly, admin.UpdateUserStatusHandler(db, log))
	protected.Get("/audit-logs", adminOnly, audit.ListAuditLogsHandler(db))
	protected.Post("/audit-logs/:id/undo", adminOnly, audit.UndoAuditLogHandler(db))
}
