package validation

import (
	"time"

	"billing-backend/internal/apperror"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const DateLayout = "2006-01-02"

// DateRange is a half-open interval [From, To) in UTC. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDate accepts a calendar day or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseDateRange reads ?startDate and ?endDate. A calendar-day endDate
// includes that whole day.
func ParseDateRange(c *fiber.Ctx) (DateRange, error) {
	var r DateRange
	if s := c.Query("startDate"); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			return r, apperror.Validation("startDate must be YYYY-MM-DD")
		}
		r.From = t
	}
	if s := c.Query("endDate"); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			return r, apperror.Validation("endDate must be YYYY-MM-DD")
		}
		if len(s) == len(DateLayout) {
			t = t.AddDate(0, 0, 1)
		}
		r.To = t
	}
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return r, apperror.Validation("startDate must be before endDate")
	}
	return r, nil
}

func (r DateRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

// Apply restricts column to the range.
func (r DateRange) Apply(db *gorm.DB, column string) *gorm.DB {
	if !r.From.IsZero() {
		db = db.Where(column+" >= ?", r.From)
	}
	if !r.To.IsZero() {
		db = db.Where(column+" < ?", r.To)
	}
	return db
}
