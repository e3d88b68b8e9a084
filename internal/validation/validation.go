package validation

import (
	"fmt"
	"strconv"
	"strings"

	"billing-backend/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// Violations collects field errors from the explicit validators below. An
// empty set means the input may be persisted.
type Violations map[string]string

func New() Violations { return Violations{} }

func (v Violations) Empty() bool { return len(v) == 0 }

func (v Violations) Add(field, msg string) {
	if _, exists := v[field]; !exists {
		v[field] = msg
	}
}

// Err returns nil for an empty set, otherwise a validation error carrying
// every field message.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return apperror.ValidationFields("Validation failed", v)
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func NonNegative(field string, val float64, v Violations) {
	if val < 0 {
		v.Add(field, "must_not_be_negative")
	}
}

func Positive(field string, val float64, v Violations) {
	if val <= 0 {
		v.Add(field, "must_be_positive")
	}
}

func MinLen(field, value string, n int, v Violations) {
	if len([]rune(value)) < n {
		v.Add(field, fmt.Sprintf("min_length_%d", n))
	}
}

func MaxLen(field, value string, n int, v Violations) {
	if len([]rune(value)) > n {
		v.Add(field, fmt.Sprintf("max_length_%d", n))
	}
}

func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Add(field, "must_be_one_of: "+strings.Join(allowed, ", "))
}

// ParamID reads a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperror.Validation("Invalid " + name)
	}
	return uint(n), nil
}
