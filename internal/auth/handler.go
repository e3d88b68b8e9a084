package auth

import (
	"errors"
	"strings"

	"billing-backend/internal/apperror"
	"billing-backend/internal/config"
	"billing-backend/internal/models"
	"billing-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

type RegisterRequest struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

// SignupRequest is the public self-registration body. It carries no role;
// every self-registered account is a plain user.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	// Username accepts either the username or the email address.
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserResponse struct {
	ID       uint              `json:"id"`
	Username string            `json:"username"`
	Email    string            `json:"email"`
	Role     models.UserRole   `json:"role"`
	Status   models.UserStatus `json:"status,omitempty"`
}

type TokenResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, Status: u.Status}
}

// ValidateRegistration normalizes the request in place and checks it.
func ValidateRegistration(body *RegisterRequest) error {
	body.Username = strings.TrimSpace(strings.ToLower(body.Username))
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Role == "" {
		body.Role = models.RoleUser
	}

	v := validation.New()
	validation.Required("username", body.Username, v)
	validation.Required("email", body.Email, v)
	if body.Email != "" && !strings.Contains(body.Email, "@") {
		v.Add("email", "invalid_email")
	}
	validation.MinLen("password", body.Password, MinPasswordLength, v)
	validation.OneOf("role", string(body.Role), []string{string(models.RoleAdmin), string(models.RoleUser)}, v)
	return v.Err()
}

// CreateUser hashes the password and stores a new active account. Duplicate
// usernames or emails are reported as a validation error.
func CreateUser(db *gorm.DB, body RegisterRequest) (*models.User, error) {
	var count int64
	if err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", body.Username, body.Email).
		Count(&count).Error; err != nil {
		return nil, apperror.Internal("user lookup failed", err)
	}
	if count > 0 {
		return nil, apperror.Validation("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal("password hashing failed", err)
	}

	user := models.User{
		Username:     body.Username,
		Email:        body.Email,
		PasswordHash: string(hash),
		Role:         body.Role,
		Status:       models.UserStatusActive,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, apperror.FromDB(err, "User", "")
	}
	return &user, nil
}

// POST /api/auth/register
//
// Admin accounts are only created through POST /api/users or cmd/seedadmin.
func RegisterHandler(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var signup SignupRequest
		if err := c.BodyParser(&signup); err != nil {
			return apperror.Validation("Invalid request body")
		}
		body := RegisterRequest{
			Username: signup.Username,
			Email:    signup.Email,
			Password: signup.Password,
			Role:     models.RoleUser,
		}
		if err := ValidateRegistration(&body); err != nil {
			return err
		}

		user, err := CreateUser(db, body)
		if err != nil {
			return err
		}

		token, err := GenerateToken(cfg, user)
		if err != nil {
			return apperror.Internal("token signing failed", err)
		}

		return c.Status(fiber.StatusCreated).JSON(TokenResponse{Token: token, User: NewUserResponse(user)})
	}
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		ident := strings.TrimSpace(strings.ToLower(body.Username))
		if ident == "" || body.Password == "" {
			return apperror.Unauthorized("Invalid credentials")
		}

		var user models.User
		if err := db.Where("username = ? OR email = ?", ident, ident).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.Unauthorized("Invalid credentials")
			}
			return apperror.Internal("user lookup failed", err)
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return apperror.Unauthorized("Invalid credentials")
		}

		if user.IsRevoked() {
			return apperror.Forbidden("Your account access has been revoked. Please contact administrator.")
		}

		token, err := GenerateToken(cfg, &user)
		if err != nil {
			return apperror.Internal("token signing failed", err)
		}

		resp := NewUserResponse(&user)
		resp.Status = ""
		return c.JSON(TokenResponse{Token: token, User: resp})
	}
}

// GET /api/auth/me
func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := db.First(&user, UserID(c)).Error; err != nil {
			return apperror.FromDB(err, "User", "")
		}
		return c.JSON(user)
	}
}

// POST /api/auth/change-password
func ChangePasswordHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.Validation("Invalid request body")
		}

		v := validation.New()
		validation.Required("currentPassword", body.CurrentPassword, v)
		validation.MinLen("newPassword", body.NewPassword, MinPasswordLength, v)
		if err := v.Err(); err != nil {
			return err
		}

		var user models.User
		if err := db.First(&user, UserID(c)).Error; err != nil {
			return apperror.FromDB(err, "User", "")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.CurrentPassword)); err != nil {
			return apperror.Validation("Current password is incorrect")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return apperror.Internal("password hashing failed", err)
		}
		if err := db.Model(&user).Update("password_hash", string(hash)).Error; err != nil {
			return apperror.Internal("password update failed", err)
		}

		return c.JSON(fiber.Map{"message": "Password changed successfully"})
	}
}
