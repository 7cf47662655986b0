package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zmbpark/ticketing/internal/auth"
	"github.com/zmbpark/ticketing/internal/order"
	"github.com/zmbpark/ticketing/internal/pricing"
	"github.com/zmbpark/ticketing/internal/queue"
	"github.com/zmbpark/ticketing/internal/repository"
	queue_publisher "github.com/zmbpark/ticketing/internal/service"
)

type updateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /v1/orders/:id/status. The transition
// table is the single authority on which moves exist; admins get no
// wider table, only wider ownership. The write is a compare-and-set on
// the current status so exactly one of two racing transitions wins.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	actor, err := auth.FromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	target, ok := order.ParseStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
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

	if !actor.IsAdmin() {
		if !actor.Owns(rec.UserID) || !order.MemberMayRequest(rec.Status, target) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "You can only cancel your own pending orders"})
		}
	}

	if !order.CanTransition(rec.Status, target) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": order.TransitionError(rec.Status, target)})
	}

	ok, err = h.Orders.CompareAndSetStatus(ctx, orderID, rec.Status, target, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update status"})
	}
	if !ok {
		// A concurrent transition won the race; the caller should re-read
		// and decide again.
		return c.JSON(http.StatusConflict, echo.Map{"error": "Order status changed concurrently"})
	}

	updated, err := h.Orders.GetByID(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	lines, err := h.Orders.ListLines(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if target == order.StatusConfirmed {
		h.publishConfirmed(updated, lines)
	}
	return c.JSON(http.StatusOK, renderOrder(updated, lines))
}

// publishConfirmed emits the order.confirmed event in the background.
// Publishing is best effort; a broker outage never fails the request
// that confirmed the order.
func (h *OrderHandler) publishConfirmed(o repository.OrderRecord, lines []repository.OrderLineRecord) {
	priced := make([]pricing.Line, 0, len(lines))
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		priced = append(priced, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
		names = append(names, l.ProductName)
	}
	amounts := pricing.Compute(priced, o.VAT)

	pm := ""
	if o.PaymentMethod != nil {
		pm = *o.PaymentMethod
	}
	ev := queue.OrderConfirmedEvent{
		OrderID:       o.ID,
		UserID:        o.UserID,
		TicketCode:    o.TicketCode,
		QRCode:        o.QRCode,
		VisitDate:     o.VisitDate.UTC().Format("2006-01-02"),
		PaymentMethod: pm,
		Total:         amounts.Total.StringFixed(2),
		ProductNames:  names,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := queue_publisher.PublishOrderConfirmed(ctx, ev); err != nil {
			log.Printf("order %d: publish confirmed event failed: %v", o.ID, err)
		}
	}()
}
