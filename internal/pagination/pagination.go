package pagination

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const MaxLimit = 100

// MaxPage keeps (Page-1)*Limit and Page*Limit inside int32 range.
const MaxPage = math.MaxInt32 / MaxLimit

type Params struct {
	Page  int
	Limit int
}

type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

// Page is the list envelope every paginated endpoint answers with.
type Page[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

// Parse reads ?page and ?limit. Invalid or missing values fall back to page 1
// and defaultLimit; limit is capped at MaxLimit and page at MaxPage.
func Parse(c *fiber.Ctx, defaultLimit int) Params {
	p := Params{Page: 1, Limit: defaultLimit}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		p.Limit = n
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	return p
}

func (p Params) Offset() int { return (p.Page - 1) * p.Limit }

// Apply adds offset and limit to the query.
func (p Params) Apply(db *gorm.DB) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.Limit)
}

func (p Params) Meta(total int64) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Meta{
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: pages,
		HasMore:    int64(p.Page*p.Limit) < total,
	}
}

// New wraps one page of rows; a nil slice is replaced so the JSON carries [].
func New[T any](rows []T, p Params, total int64) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{Data: rows, Pagination: p.Meta(total)}
}
