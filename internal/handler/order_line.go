package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zmbpark/ticketing/internal/auth"
	"github.com/zmbpark/ticketing/internal/order"
	"github.com/zmbpark/ticketing/internal/repository"
)

// Line mutations share one check ladder: the line/order must exist, the
// actor must be the owner or an admin, and the parent order must still
// be pending. Checks run in that exact sequence so the caller always
// learns the most specific failure first.

type addLineReq struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type updateLineReq struct {
	Quantity int64 `json:"quantity"`
}

// AddLine handles POST /v1/orders/:id/lines. The product's current
// price is snapshotted into the new line; later price changes never
// affect it.
func (h *OrderHandler) AddLine(c echo.Context) error {
	actor, err := auth.FromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !actor.CanAccess(rec.UserID) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "You can only modify your own orders"})
	}
	if rec.Status != order.StatusPending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Can only add lines to pending orders"})
	}

	var req addLineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Quantity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Quantity must be at least 1"})
	}

	p, err := h.Products.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Product not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	line := repository.OrderLineRecord{
		OrderID:     orderID,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    req.Quantity,
		UnitPrice:   p.Price, // snapshot
	}
	if err := h.Orders.InsertLine(ctx, &line); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create line"})
	}
	return c.JSON(http.StatusCreated, lineView{OrderLineRecord: line, LineTotal: lineTotal(line)})
}

// UpdateLineQuantity handles PATCH /v1/orders/lines/:lineId. Only the
// quantity column changes; the unit price snapshot is immutable.
func (h *OrderHandler) UpdateLineQuantity(c echo.Context) error {
	actor, err := auth.FromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	lineID, err := strconv.ParseUint(c.Param("lineId"), 10, 64)
	if err != nil || lineID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid line id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	line, parent, err := h.Orders.GetLineWithOrder(ctx, lineID)
	if err != nil {
		if errors.Is(err, repository.ErrLineNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order line not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !actor.CanAccess(parent.UserID) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "You can only modify your own orders"})
	}
	if parent.Status != order.StatusPending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Can only modify lines of pending orders"})
	}

	var req updateLineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Quantity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Quantity must be at least 1"})
	}

	if err := h.Orders.UpdateLineQuantity(ctx, lineID, req.Quantity); err != nil {
		if errors.Is(err, repository.ErrLineNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order line not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update line"})
	}
	line.Quantity = req.Quantity
	return c.JSON(http.StatusOK, lineView{OrderLineRecord: line, LineTotal: lineTotal(line)})
}

// DeleteLine handles DELETE /v1/orders/lines/:lineId.
func (h *OrderHandler) DeleteLine(c echo.Context) error {
	actor, err := auth.FromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	lineID, err := strconv.ParseUint(c.Param("lineId"), 10, 64)
	if err != nil || lineID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid line id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	_, parent, err := h.Orders.GetLineWithOrder(ctx, lineID)
	if err != nil {
		if errors.Is(err, repository.ErrLineNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order line not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !actor.CanAccess(parent.UserID) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "You can only modify your own orders"})
	}
	if parent.Status != order.StatusPending {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Can only remove lines from pending orders"})
	}

	if err := h.Orders.DeleteLine(ctx, lineID); err != nil {
		if errors.Is(err, repository.ErrLineNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order line not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete line"})
	}
	return c.NoContent(http.StatusNoContent)
}
