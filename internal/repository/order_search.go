package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// OrderSearchQuery defines filters, sorting and pagination for order
// listings.  Zero values mean "not filtered".  Search is the admin
// free-text filter matched case-insensitively against payment_method
// and the owning user's email / first / last name; the user-scoped
// listing never sets it.
type OrderSearchQuery struct {
	Status        string
	UserID        uint64
	VisitFrom     *time.Time
	VisitTo       *time.Time
	OrderFrom     *time.Time
	OrderTo       *time.Time
	PaymentMethod string
	Search        string
	Sort          string // e.g. "order_date:desc"
	Page          int
	Limit         int
}

// OrderWithUser is a search result row: the order plus the owning
// user's display fields, joined in for the admin listing.
type OrderWithUser struct {
	OrderRecord
	UserEmail     string `json:"user_email"`
	UserFirstname string `json:"user_firstname"`
	UserLastname  string `json:"user_lastname"`
}

// buildOrderFilter translates a query into a WHERE condition and its
// arguments.  Conditions are ANDed; the free-text search expands to an
// OR block across payment_method and user name fields.
func buildOrderFilter(q OrderSearchQuery) (string, []interface{}) {
	where := []string{}
	args := []interface{}{}

	if q.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, q.Status)
	}
	if q.UserID != 0 {
		where = append(where, "o.user_id = ?")
		args = append(args, q.UserID)
	}
	if q.VisitFrom != nil {
		where = append(where, "o.visit_date >= ?")
		args = append(args, q.VisitFrom.UTC())
	}
	if q.VisitTo != nil {
		where = append(where, "o.visit_date <= ?")
		args = append(args, q.VisitTo.UTC())
	}
	if q.OrderFrom != nil {
		where = append(where, "o.order_date >= ?")
		args = append(args, q.OrderFrom.UTC())
	}
	if q.OrderTo != nil {
		where = append(where, "o.order_date <= ?")
		args = append(args, q.OrderTo.UTC())
	}
	if q.PaymentMethod != "" {
		where = append(where, "o.payment_method = ?")
		args = append(args, q.PaymentMethod)
	}
	if q.Search != "" {
		needle := "%" + strings.ToLower(q.Search) + "%"
		where = append(where,
			"(LOWER(o.payment_method) LIKE ? OR LOWER(u.email) LIKE ? OR LOWER(u.firstname) LIKE ? OR LOWER(u.lastname) LIKE ?)")
		args = append(args, needle, needle, needle, needle)
	}

	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

// orderSortClause maps a sort key to a whitelisted ORDER BY clause.
// Anything unknown falls back to newest orders first.
func orderSortClause(sort string) string {
	switch sort {
	case "order_date:asc":
		return "o.order_date ASC"
	case "order_date:desc":
		return "o.order_date DESC"
	case "visit_date:asc":
		return "o.visit_date ASC"
	case "visit_date:desc":
		return "o.visit_date DESC"
	default:
		return "o.order_date DESC"
	}
}

// Search returns one page of orders matching the query plus the total
// match count.  Orders are joined with their owning user so the admin
// listing can display and text-search user fields without extra
// round trips.
func (r *OrderRepo) Search(ctx context.Context, q OrderSearchQuery) ([]OrderWithUser, int64, error) {
	cond, args := buildOrderFilter(q)

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	offset := (q.Page - 1) * q.Limit

	dataSQL := `SELECT o.id, o.user_id, o.status, o.visit_date, o.order_date, o.vat,
			o.payment_method, o.ticket_code, o.qr_code, o.updated_at,
			u.email, u.firstname, u.lastname
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE ` + cond + `
		ORDER BY ` + orderSortClause(q.Sort) + `
		LIMIT ? OFFSET ?`

	argsData := append(append([]interface{}{}, args...), limit, offset)
	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]OrderWithUser, 0, limit)
	for rows.Next() {
		var d OrderWithUser
		var pm sql.NullString
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Status, &d.VisitDate, &d.OrderDate, &d.VAT,
			&pm, &d.TicketCode, &d.QRCode, &d.UpdatedAt,
			&d.UserEmail, &d.UserFirstname, &d.UserLastname,
		); err != nil {
			return nil, 0, err
		}
		if pm.Valid {
			v := pm.String
			d.PaymentMethod = &v
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
