package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zmbpark/ticketing/internal/repository"
)

// ProductHandler serves the public catalog.
type ProductHandler struct {
	Products *repository.ProductRepo
}

func NewProductHandler(p *repository.ProductRepo) *ProductHandler {
	return &ProductHandler{Products: p}
}

// List returns the published catalog. The route sits behind the
// response cache, so repeated reads rarely hit the database.
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	products, err := h.Products.ListPublished(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": products})
}
