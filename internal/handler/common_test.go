package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageMeta(t *testing.T) {
	m := newPageMeta(1, 20, 45)
	assert.Equal(t, int64(3), m.TotalPages)
	assert.False(t, m.HasPrev)
	assert.True(t, m.HasNext)

	m = newPageMeta(3, 20, 45)
	assert.True(t, m.HasPrev)
	assert.False(t, m.HasNext)

	// Exact boundary: the last full page has no next.
	m = newPageMeta(2, 20, 40)
	assert.Equal(t, int64(2), m.TotalPages)
	assert.False(t, m.HasNext)

	m = newPageMeta(1, 20, 0)
	assert.Equal(t, int64(0), m.TotalPages)
	assert.False(t, m.HasPrev)
	assert.False(t, m.HasNext)
}

func ctxWithQuery(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest("GET", "/v1/orders?"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestParsePaginationDefaultsAndClamps(t *testing.T) {
	page, limit := parsePagination(ctxWithQuery(""))
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)

	page, limit = parsePagination(ctxWithQuery("page=4&limit=50"))
	assert.Equal(t, 4, page)
	assert.Equal(t, 50, limit)

	// Out-of-range values fall back to defaults.
	page, limit = parsePagination(ctxWithQuery("page=0&limit=500"))
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)

	page, limit = parsePagination(ctxWithQuery("page=abc&limit=-3"))
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
}

func TestParseVisitDate(t *testing.T) {
	d, err := parseVisitDate("2026-10-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", d.Format("2006-01-02"))

	d, err = parseVisitDate("2026-10-01T14:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 14, d.Hour())

	_, err = parseVisitDate("")
	assert.Error(t, err)
	_, err = parseVisitDate("next tuesday")
	assert.Error(t, err)
}
