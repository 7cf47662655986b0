package handler

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/zmbpark/ticketing/internal/pricing"
	"github.com/zmbpark/ticketing/internal/repository"
)

// dbTimeout bounds every handler-side database call.
const dbTimeout = 5 * time.Second

// pageMeta is the pagination block returned by every listing endpoint.
type pageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int64 `json:"totalPages"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

func newPageMeta(page, limit int, total int64) pageMeta {
	pages := (total + int64(limit) - 1) / int64(limit)
	return pageMeta{
		Page:       page,
		Limit:      limit,
		TotalCount: total,
		TotalPages: pages,
		HasPrev:    page > 1,
		HasNext:    int64(page)*int64(limit) < total,
	}
}

// parsePagination reads page/limit query params, clamping to page >= 1
// and 1 <= limit <= 100 with defaults page=1 limit=20.
func parsePagination(c echo.Context) (page, limit int) {
	page, limit = 1, 20
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil && v >= 1 {
		page = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v >= 1 && v <= 100 {
		limit = v
	}
	return page, limit
}

// parseDateParam reads an optional date query param, accepting either a
// plain date or a full RFC3339 timestamp. Unparseable values are
// treated as absent.
func parseDateParam(c echo.Context, name string) *time.Time {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	return nil
}

// lineView is an order line enriched with its rounded line total.
type lineView struct {
	repository.OrderLineRecord
	LineTotal decimal.Decimal `json:"line_total"`
}

// orderView is the canonical order response shape: the order row, its
// lines and the computed amounts.
type orderView struct {
	repository.OrderRecord
	Lines   []lineView      `json:"lines"`
	Amounts pricing.Amounts `json:"amounts"`
}

// adminOrderView adds the owning user's display fields for the admin
// listing.
type adminOrderView struct {
	orderView
	UserEmail     string `json:"user_email"`
	UserFirstname string `json:"user_firstname"`
	UserLastname  string `json:"user_lastname"`
}

// renderOrder assembles the response view, recomputing amounts from the
// line snapshots on every read.
func renderOrder(o repository.OrderRecord, lines []repository.OrderLineRecord) orderView {
	views := make([]lineView, 0, len(lines))
	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		views = append(views, lineView{OrderLineRecord: l, LineTotal: pricing.LineTotal(l.UnitPrice, l.Quantity)})
		priced = append(priced, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return orderView{
		OrderRecord: o,
		Lines:       views,
		Amounts:     pricing.Compute(priced, o.VAT),
	}
}

func lineTotal(l repository.OrderLineRecord) decimal.Decimal {
	return pricing.LineTotal(l.UnitPrice, l.Quantity)
}

func renderOrderWithUser(d repository.OrderWithUser, lines []repository.OrderLineRecord) adminOrderView {
	return adminOrderView{
		orderView:     renderOrder(d.OrderRecord, lines),
		UserEmail:     d.UserEmail,
		UserFirstname: d.UserFirstname,
		UserLastname:  d.UserLastname,
	}
}
