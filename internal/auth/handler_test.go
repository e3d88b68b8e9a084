package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"billing-backend/internal/apperror"
	"billing-backend/internal/config"
	"billing-backend/internal/database"
	"billing-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "0123456789abcdef0123456789abcdef", TokenTTL: time.Hour}
}

func setupAuthApp(t *testing.T) (*fiber.App, *gorm.DB, *config.Config) {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)

	cfg := testConfig()
	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(zap.NewNop())})
	app.Post("/auth/register", RegisterHandler(cfg, db))
	app.Post("/auth/login", LoginHandler(cfg, db))

	protected := app.Group("", JWTMiddleware(cfg))
	protected.Get("/auth/me", MeHandler(db))
	protected.Post("/auth/change-password", ChangePasswordHandler(db))
	protected.Get("/admin-only", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app, db, cfg
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRegisterAndLogin(t *testing.T) {
	app, _, cfg := setupAuthApp(t)

	resp := doJSON(t, app, "POST", "/auth/register", "", RegisterRequest{Username: "Alice", Email: "alice@example.com", Password: "secret1"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var reg TokenResponse
	decode(t, resp, &reg)
	assert.Equal(t, "alice", reg.User.Username)
	assert.Equal(t, models.RoleUser, reg.User.Role)

	claims, err := ParseToken(cfg, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	resp = doJSON(t, app, "POST", "/auth/login", "", LoginRequest{Username: "alice@example.com", Password: "secret1"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var login TokenResponse
	decode(t, resp, &login)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "alice@example.com", login.User.Email)
}

func TestRegisterDuplicate(t *testing.T) {
	app, _, _ := setupAuthApp(t)

	body := RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "secret1"}
	require.Equal(t, fiber.StatusCreated, doJSON(t, app, "POST", "/auth/register", "", body).StatusCode)

	resp := doJSON(t, app, "POST", "/auth/register", "", body)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var out map[string]any
	decode(t, resp, &out)
	assert.Equal(t, "User already exists", out["message"])
}

func TestRegisterNeverGrantsAdmin(t *testing.T) {
	app, db, _ := setupAuthApp(t)

	body := map[string]string{"username": "eve", "email": "eve@example.com", "password": "secret1", "role": "admin"}
	resp := doJSON(t, app, "POST", "/auth/register", "", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var reg TokenResponse
	decode(t, resp, &reg)
	assert.Equal(t, models.RoleUser, reg.User.Role)

	var stored models.User
	require.NoError(t, db.First(&stored, reg.User.ID).Error)
	assert.Equal(t, models.RoleUser, stored.Role)

	assert.Equal(t, fiber.StatusForbidden, doJSON(t, app, "GET", "/admin-only", reg.Token, nil).StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	app, _, _ := setupAuthApp(t)

	resp := doJSON(t, app, "POST", "/auth/register", "", RegisterRequest{Username: "c", Email: "nope", Password: "123"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	decode(t, resp, &out)
	assert.Contains(t, out.Errors, "email")
	assert.Contains(t, out.Errors, "password")
}

func TestLoginFailures(t *testing.T) {
	app, db, _ := setupAuthApp(t)

	u, err := CreateUser(db, RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)

	resp := doJSON(t, app, "POST", "/auth/login", "", LoginRequest{Username: "carol", Password: "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/auth/login", "", LoginRequest{Username: "nobody", Password: "secret1"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	require.NoError(t, db.Model(u).Update("status", models.UserStatusRevoked).Error)

	// correct password on a revoked account is forbidden, not unauthorized
	resp = doJSON(t, app, "POST", "/auth/login", "", LoginRequest{Username: "carol", Password: "secret1"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/auth/login", "", LoginRequest{Username: "carol", Password: "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMeRequiresToken(t *testing.T) {
	app, db, cfg := setupAuthApp(t)

	assert.Equal(t, fiber.StatusUnauthorized, doJSON(t, app, "GET", "/auth/me", "", nil).StatusCode)
	assert.Equal(t, fiber.StatusUnauthorized, doJSON(t, app, "GET", "/auth/me", "garbage", nil).StatusCode)

	u, err := CreateUser(db, RegisterRequest{Username: "dave", Email: "dave@example.com", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)
	token, err := GenerateToken(cfg, u)
	require.NoError(t, err)

	resp := doJSON(t, app, "GET", "/auth/me", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out map[string]any
	decode(t, resp, &out)
	assert.Equal(t, "dave", out["username"])
	assert.NotContains(t, out, "passwordHash")
	assert.NotContains(t, out, "PasswordHash")
}

func TestExpiredToken(t *testing.T) {
	app, db, cfg := setupAuthApp(t)

	u, err := CreateUser(db, RegisterRequest{Username: "erin", Email: "erin@example.com", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)

	expired := *cfg
	expired.TokenTTL = -time.Minute
	token, err := GenerateToken(&expired, u)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, doJSON(t, app, "GET", "/auth/me", token, nil).StatusCode)
}

func TestRequireRole(t *testing.T) {
	app, db, cfg := setupAuthApp(t)

	user, err := CreateUser(db, RegisterRequest{Username: "frank", Email: "frank@example.com", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)
	admin, err := CreateUser(db, RegisterRequest{Username: "root", Email: "root@example.com", Password: "secret1", Role: models.RoleAdmin})
	require.NoError(t, err)

	userToken, _ := GenerateToken(cfg, user)
	adminToken, _ := GenerateToken(cfg, admin)

	assert.Equal(t, fiber.StatusForbidden, doJSON(t, app, "GET", "/admin-only", userToken, nil).StatusCode)
	assert.Equal(t, fiber.StatusOK, doJSON(t, app, "GET", "/admin-only", adminToken, nil).StatusCode)
}

func TestChangePassword(t *testing.T) {
	app, db, cfg := setupAuthApp(t)

	u, err := CreateUser(db, RegisterRequest{Username: "gina", Email: "gina@example.com", Password: "secret1", Role: models.RoleUser})
	require.NoError(t, err)
	token, _ := GenerateToken(cfg, u)

	resp := doJSON(t, app, "POST", "/auth/change-password", token, ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "secret2"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/auth/change-password", token, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/auth/login", "", LoginRequest{Username: "gina", Password: "secret2"})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
