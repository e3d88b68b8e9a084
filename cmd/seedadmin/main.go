// Command seedadmin creates the default administrator account when no user
// with that username exists yet.
package main

import (
	"errors"
	"flag"
	"log"

	"billing-backend/internal/apperror"
	"billing-backend/internal/auth"
	"billing-backend/internal/config"
	"billing-backend/internal/database"
	"billing-backend/internal/logging"
	"billing-backend/internal/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	email := flag.String("email", "admin@mellou.com", "admin email")
	password := flag.String("password", "admin123", "initial password, change it after the first login")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	user, created, err := Seed(db, auth.RegisterRequest{
		Username: *username,
		Email:    *email,
		Password: *password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		logger.Fatal("seed admin failed", zap.Error(err))
	}
	if !created {
		logger.Info("admin already exists", zap.String("username", user.Username))
		return
	}
	logger.Info("admin created", zap.String("username", user.Username), zap.String("email", user.Email))
}

// Seed returns the existing account for body.Username or creates it.
func Seed(db *gorm.DB, body auth.RegisterRequest) (*models.User, bool, error) {
	if err := auth.ValidateRegistration(&body); err != nil {
		return nil, false, err
	}

	var existing models.User
	err := db.Where("username = ?", body.Username).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperror.Internal("user lookup failed", err)
	}

	user, err := auth.CreateUser(db, body)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
