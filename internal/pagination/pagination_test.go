package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeta(t *testing.T) {
	m := Params{Page: 2, Limit: 10}.Meta(25)
	assert.Equal(t, 3, m.TotalPages)
	assert.True(t, m.HasMore)

	m = Params{Page: 3, Limit: 10}.Meta(25)
	assert.False(t, m.HasMore)
	assert.Equal(t, 20, Params{Page: 3, Limit: 10}.Offset())

	m = Params{Page: 1, Limit: 10}.Meta(0)
	assert.Equal(t, 0, m.TotalPages)
	assert.False(t, m.HasMore)
}

func TestParse(t *testing.T) {
	app := fiber.New()
	var got Params
	app.Get("/", func(c *fiber.Ctx) error {
		got = Parse(c, 10)
		return nil
	})

	cases := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 10}},
		{"?page=2&limit=5", Params{Page: 2, Limit: 5}},
		{"?page=-1&limit=abc", Params{Page: 1, Limit: 10}},
		{"?limit=1000", Params{Page: 1, Limit: MaxLimit}},
		{"?page=9223372036854775807&limit=100", Params{Page: MaxPage, Limit: MaxLimit}},
	}
	for _, tc := range cases {
		_, err := app.Test(httptest.NewRequest("GET", "/"+tc.query, nil))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.query)
	}
}

func TestHugePageStaysPositive(t *testing.T) {
	p := Params{Page: MaxPage, Limit: MaxLimit}
	assert.Greater(t, p.Offset(), 0)
	assert.False(t, p.Meta(25).HasMore)
}

func TestNewNeverNil(t *testing.T) {
	p := New[int](nil, Params{Page: 1, Limit: 10}, 0)
	assert.NotNil(t, p.Data)
}
