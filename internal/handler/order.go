package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/zmbpark/ticketing/internal/auth"
	"github.com/zmbpark/ticketing/internal/config"
	"github.com/zmbpark/ticketing/internal/order"
	"github.com/zmbpark/ticketing/internal/payment"
	"github.com/zmbpark/ticketing/internal/repository"
)

// OrderStore is the order data-access surface the handlers depend on.
// *repository.OrderRepo implements it; tests substitute a stub, same
// as they do for payment.Provider.
type OrderStore interface {
	DB() *sql.DB
	CreateTx(ctx context.Context, tx *sql.Tx, o *repository.OrderRecord) error
	CreateLinesBulkTx(ctx context.Context, tx *sql.Tx, lines []repository.OrderLineRecord) error
	GetByID(ctx context.Context, id uint64) (repository.OrderRecord, error)
	ListLines(ctx context.Context, orderID uint64) ([]repository.OrderLineRecord, error)
	ListLinesForOrders(ctx context.Context, orderIDs []uint64) (map[uint64][]repository.OrderLineRecord, error)
	GetLineWithOrder(ctx context.Context, lineID uint64) (repository.OrderLineRecord, repository.OrderRecord, error)
	InsertLine(ctx context.Context, l *repository.OrderLineRecord) error
	UpdateLineQuantity(ctx context.Context, lineID uint64, quantity int64) error
	DeleteLine(ctx context.Context, lineID uint64) error
	CompareAndSetStatus(ctx context.Context, orderID uint64, from, to order.Status, paymentMethod *string) (bool, error)
	Search(ctx context.Context, q repository.OrderSearchQuery) ([]repository.OrderWithUser, int64, error)
}

// OrderHandler groups the repositories and collaborators behind the
// order endpoints. Methods assume JWT authentication has already run;
// role checks beyond owner-or-admin are enforced by route middleware.
type OrderHandler struct {
	Cfg      config.Config
	Orders   OrderStore
	Products *repository.ProductRepo
	Users    *repository.UserRepo
	Provider payment.Provider

	vatRate decimal.Decimal // default VAT percentage applied when the request carries none
}

func NewOrderHandler(cfg config.Config, o OrderStore, p *repository.ProductRepo, u *repository.UserRepo, provider payment.Provider) *OrderHandler {
	if o == nil || p == nil || u == nil {
		panic("nil repository passed to NewOrderHandler")
	}
	return &OrderHandler{
		Cfg:      cfg,
		Orders:   o,
		Products: p,
		Users:    u,
		Provider: provider,
		vatRate:  decimal.RequireFromString(cfg.VATRate),
	}
}

type createOrderLine struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type createOrderReq struct {
	UserID        uint64            `json:"user_id"` // admin only; ignored for members
	VisitDate     string            `json:"visit_date"`
	VAT           json.Number       `json:"vat"`
	PaymentMethod *string           `json:"payment_method"`
	Lines         []createOrderLine `json:"lines"`
}

// CreateOrder handles POST /v1/orders. The order and all its lines are
// written in one transaction; ticket/qr codes are regenerated and the
// insert retried when a code collides with an existing row.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	actor, err := auth.FromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	visit, err := parseVisitDate(req.VisitDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid visit_date"})
	}
	if !visit.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Visit date must be in the future"})
	}

	// Members always book for themselves; a supplied user_id is ignored
	// unless the actor is an admin.
	targetUser := actor.ID
	if actor.IsAdmin() && req.UserID != 0 {
		targetUser = req.UserID
	}

	vat := h.vatRate
	if req.VAT != "" {
		v, err := parseVATRate(req.VAT)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		vat = v
	}

	for _, l := range req.Lines {
		if l.ProductID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Product id is required"})
		}
		if l.Quantity < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Quantity must be at least 1"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, targetUser); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	// Batch-validate every referenced product before anything is written.
	distinct := make([]uint64, 0, len(req.Lines))
	seen := make(map[uint64]struct{}, len(req.Lines))
	for _, l := range req.Lines {
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			distinct = append(distinct, l.ProductID)
		}
	}
	products, err := h.Products.GetByIDs(ctx, distinct)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if len(products) != len(distinct) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "One or more products not found"})
	}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rec := repository.OrderRecord{
		UserID:        targetUser,
		Status:        order.StatusPending,
		VisitDate:     visit,
		VAT:           vat,
		PaymentMethod: req.PaymentMethod,
	}
	// The UNIQUE constraints on ticket_code/qr_code are the real
	// uniqueness guarantee; on a collision new codes are generated and
	// the insert retried.
	for attempt := 0; ; attempt++ {
		rec.TicketCode = repository.NewTicketCode(time.Now().UTC())
		qr, err := repository.NewQRCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate codes"})
		}
		rec.QRCode = qr

		err = h.Orders.CreateTx(ctx, tx, &rec)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateCode) && attempt < 2 {
			continue
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}

	lines := make([]repository.OrderLineRecord, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, repository.OrderLineRecord{
			OrderID:   rec.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: products[l.ProductID].Price, // snapshot, never re-read
		})
	}
	if err := h.Orders.CreateLinesBulkTx(ctx, tx, lines); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order lines"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	persisted, err := h.Orders.ListLines(ctx, rec.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, renderOrder(rec, persisted))
}

var hundred = decimal.NewFromInt(100)

// parseVATRate validates an order's VAT percentage: a number within
// [0, 100] carrying at most two decimal places.
func parseVATRate(raw json.Number) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, errors.New("invalid vat")
	}
	if v.IsNegative() || v.GreaterThan(hundred) {
		return decimal.Decimal{}, errors.New("VAT must be between 0 and 100")
	}
	if !v.Equal(v.Round(2)) {
		return decimal.Decimal{}, errors.New("VAT must have at most 2 decimal places")
	}
	return v, nil
}

func parseVisitDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty visit_date")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseOrderFilters reads the filter/sort query params shared by the
// listing endpoints. When withSearch is false the free-text filter is
// ignored.
func parseOrderFilters(c echo.Context, withSearch bool) (repository.OrderSearchQuery, error) {
	var q repository.OrderSearchQuery
	if raw := c.QueryParam("status"); raw != "" {
		s, ok := order.ParseStatus(raw)
		if !ok {
			return q, errors.New("invalid status")
		}
		q.Status = string(s)
	}
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return q, errors.New("invalid user_id")
		}
		q.UserID = id
	}
	q.VisitFrom = parseDateParam(c, "visit_from")
	q.VisitTo = parseDateParam(c, "visit_to")
	q.OrderFrom = parseDateParam(c, "order_from")
	q.OrderTo = parseDateParam(c, "order_to")
	q.PaymentMethod = c.QueryParam("payment_method")
	if withSearch {
		q.Search = c.QueryParam("q")
	}
	q.Sort = c.QueryParam("sort")
	q.Page, q.Limit = parsePagination(c)
	return q, nil
}

func (h *OrderHandler) searchAndRender(c echo.Context, q repository.OrderSearchQuery) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	results, total, err := h.Orders.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	ids := make([]uint64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	linesByOrder, err := h.Orders.ListLinesForOrders(ctx, ids)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	data := make([]adminOrderView, 0, len(results))
	for _, r := range results {
		data = append(data, renderOrderWithUser(r, linesByOrder[r.ID]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": data,
		"meta": newPageMeta(q.Page, q.Limit, total),
	})
}

// ListOrders handles GET /v1/orders. Admin only, enforced by route
// middleware.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	q, err := parseOrderFilters(c, true)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.searchAndRender(c, q)
}

// ListUserOrders handles GET /v1/orders/user/:user_id. Admins may read
// anyone; members only themselves.
func (h *OrderHandler) ListUserOrders(c echo.Context) error {
	actor, err := auth.FromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	targetUser, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || targetUser == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if !actor.CanAccess(targetUser) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "You can only view your own orders"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, targetUser); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	q, err := parseOrderFilters(c, false)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	q.UserID = targetUser
	return h.searchAndRender(c, q)
}

// GetOneOrder handles GET /v1/orders/:id.
func (h *OrderHandler) GetOneOrder(c echo.Context) error {
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
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "You can only view your own orders"})
	}

	lines, err := h.Orders.ListLines(ctx, orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, renderOrder(rec, lines))
}
