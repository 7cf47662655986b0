package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrderFilterEmpty(t *testing.T) {
	cond, args := buildOrderFilter(OrderSearchQuery{})
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)
}

func TestBuildOrderFilterAllPredicates(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	q := OrderSearchQuery{
		Status:        "pending",
		UserID:        7,
		VisitFrom:     &from,
		VisitTo:       &to,
		OrderFrom:     &from,
		OrderTo:       &to,
		PaymentMethod: "card:visa",
	}
	cond, args := buildOrderFilter(q)

	assert.Contains(t, cond, "o.status = ?")
	assert.Contains(t, cond, "o.user_id = ?")
	assert.Contains(t, cond, "o.visit_date >= ?")
	assert.Contains(t, cond, "o.visit_date <= ?")
	assert.Contains(t, cond, "o.order_date >= ?")
	assert.Contains(t, cond, "o.order_date <= ?")
	assert.Contains(t, cond, "o.payment_method = ?")
	assert.NotContains(t, cond, "LIKE")
	assert.Len(t, args, 7)
}

func TestBuildOrderFilterSearchIsCaseInsensitive(t *testing.T) {
	cond, args := buildOrderFilter(OrderSearchQuery{Search: "Alice"})

	assert.Contains(t, cond, "LOWER(o.payment_method) LIKE ?")
	assert.Contains(t, cond, "LOWER(u.email) LIKE ?")
	assert.Contains(t, cond, "LOWER(u.firstname) LIKE ?")
	assert.Contains(t, cond, "LOWER(u.lastname) LIKE ?")
	// The needle is lower-cased once and bound four times.
	assert.Equal(t, []interface{}{"%alice%", "%alice%", "%alice%", "%alice%"}, args)
}

func TestOrderSortClauseWhitelist(t *testing.T) {
	assert.Equal(t, "o.order_date ASC", orderSortClause("order_date:asc"))
	assert.Equal(t, "o.order_date DESC", orderSortClause("order_date:desc"))
	assert.Equal(t, "o.visit_date ASC", orderSortClause("visit_date:asc"))
	assert.Equal(t, "o.visit_date DESC", orderSortClause("visit_date:desc"))

	// Unknown or hostile keys never reach the SQL text.
	for _, raw := range []string{"", "status:asc", "id;DROP TABLE orders", "visit_date"} {
		assert.Equal(t, "o.order_date DESC", orderSortClause(raw), "raw=%q", raw)
	}
}
