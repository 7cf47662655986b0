package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postOrder(h *OrderHandler, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", float64(7))
	c.Set("role", "member")
	_ = h.CreateOrder(c)
	return rec
}

func TestParseVATRate(t *testing.T) {
	for _, raw := range []string{"0", "5.5", "19.00", "100"} {
		v, err := parseVATRate(json.Number(raw))
		require.NoError(t, err, "vat=%s", raw)
		assert.True(t, v.Equal(decimal.RequireFromString(raw)), "vat=%s", raw)
	}
	for _, raw := range []string{"-1", "100.01", "150", "5.555", "abc"} {
		_, err := parseVATRate(json.Number(raw))
		assert.Error(t, err, "vat=%s", raw)
	}
}

func TestCreateOrderRejectsInvalidVAT(t *testing.T) {
	// Out-of-range or over-precise rates must fail the validation gate
	// before any persistence is touched.
	h := &OrderHandler{vatRate: decimal.RequireFromString("5.5")}
	for _, vat := range []string{"150", "100.01", "-1", "5.555"} {
		rec := postOrder(h, `{"visit_date":"2030-01-01","vat":`+vat+`}`)
		require.Equal(t, http.StatusBadRequest, rec.Code, "vat=%s", vat)
		assert.Contains(t, rec.Body.String(), "VAT", "vat=%s", vat)
	}
}

func TestCreateOrderLineValidationMessages(t *testing.T) {
	h := &OrderHandler{vatRate: decimal.RequireFromString("5.5")}

	rec := postOrder(h, `{"visit_date":"2030-01-01","lines":[{"product_id":0,"quantity":1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Product id is required")

	rec = postOrder(h, `{"visit_date":"2030-01-01","lines":[{"product_id":3,"quantity":0}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Quantity must be at least 1")
}

func TestCreateOrderRejectsPastVisitDate(t *testing.T) {
	h := &OrderHandler{vatRate: decimal.RequireFromString("5.5")}
	rec := postOrder(h, `{"visit_date":"2020-01-01"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Visit date must be in the future")
}
