// Package setting is a key/value store for runtime configuration edited from
// the admin screens. Values are kept as JSON text so any JSON type survives a
// round trip.
package setting

import (
	"encoding/json"
	"strings"

	"billing-backend/internal/apperror"
	"billing-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UpsertRequest struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
}

type SettingResponse struct {
	ID          uint            `json:"id"`
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description string          `json:"description"`
}

func decoded(raw string) json.RawMessage {
	if raw == "" || !json.Valid([]byte(raw)) {
		b, _ := json.Marshal(raw)
		return b
	}
	return json.RawMessage(raw)
}

func encoded(v json.RawMessage) string {
	if len(v) == 0 {
		return "null"
	}
	return string(v)
}

// Upsert inserts key or overwrites its value and description.
func Upsert(db *gorm.DB, key string, value json.RawMessage, description string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperror.ValidationFields("Validation failed", map[string]string{"key": "required"})
	}
	s := models.Setting{Key: key, Value: encoded(value), Description: description}
	cols := []string{"value", "updated_at"}
	if description != "" {
		cols = append(cols, "description")
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(&s).Error
	if err != nil {
		return nil, apperror.Internal("save setting failed", err)
	}
	if err := db.Where("key = ?", key).First(&s).Error; err != nil {
		return nil, apperror.FromDB(err, "Setting", "")
	}
	return &s, nil
}

// All returns every setting as a flat key to value map.
func All(db *gorm.DB) (map[string]json.RawMessage, error) {
	var rows []models.Setting
	if err := db.Order("key ASC").Find(&rows).Error; err != nil {
		return nil, apperror.Internal("list settings failed", err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		out[r.Key] = decoded(r.Value)
	}
	return out, nil
}

// GET /api/settings, GET /api/settings?key=companyName
func GetHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key := strings.TrimSpace(c.Query("key")); key != "" {
			var s models.Setting
			err := db.Where("key = ?", key).Limit(1).Find(&s).Error
			if err != nil {
				return apperror.Internal("get setting failed", err)
			}
			if s.ID == 0 {
				return c.JSON(fiber.Map{"key": key, "value": nil})
			}
			return c.JSON(fiber.Map{"key": key, "value": decoded(s.Value)})
		}

		all, err := All(db)
		if err != nil {
			return err
		}
		return c.JSON(all)
	}
}

// POST /api/settings
//
// {"key":"companyName","value":"Mellou","description":"..."} upserts one
// setting. Any other object is treated as a flat map and upserted in bulk.
func SaveHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &body); err != nil || body == nil {
			return apperror.Validation("Invalid request body")
		}

		if _, ok := body["key"]; ok {
			var req UpsertRequest
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return apperror.Validation("Invalid request body")
			}
			s, err := Upsert(db, req.Key, req.Value, req.Description)
			if err != nil {
				return err
			}
			return c.JSON(SettingResponse{ID: s.ID, Key: s.Key, Value: decoded(s.Value), Description: s.Description})
		}

		if len(body) == 0 {
			return apperror.Validation("No settings provided")
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			for k, v := range body {
				if _, err := Upsert(tx, k, v, ""); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		all, err := All(db)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Settings updated successfully", "settings": all})
	}
}
