package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zmbpark/ticketing/internal/order"
)

// OrderRecord mirrors the 'orders' table.  order_date is the creation
// timestamp; visit_date is the future date the tickets are valid for.
// vat is a percentage with two decimal places.  ticket_code and
// qr_code both carry UNIQUE constraints, which are the real safety net
// behind the code generators.
type OrderRecord struct {
	ID            uint64          `json:"id"`
	UserID        uint64          `json:"user_id"`
	Status        order.Status    `json:"status"`
	VisitDate     time.Time       `json:"visit_date"`
	OrderDate     time.Time       `json:"order_date"`
	VAT           decimal.Decimal `json:"vat"`
	PaymentMethod *string         `json:"payment_method"`
	TicketCode    string          `json:"ticket_code"`
	QRCode        string          `json:"qr_code"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderLineRecord mirrors the 'order_lines' table.  unit_price is the
// product price snapshotted when the line was created; updates never
// touch it.  ProductName is joined in for responses.
type OrderLineRecord struct {
	ID          uint64          `json:"id"`
	OrderID     uint64          `json:"order_id"`
	ProductID   uint64          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// OrderRepo provides data access for orders and their lines.
type OrderRepo struct{ db *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning the order and its lines.
func (r *OrderRepo) DB() *sql.DB { return r.db }

const orderColumns = "id, user_id, status, visit_date, order_date, vat, payment_method, ticket_code, qr_code, updated_at"

func scanOrder(row interface{ Scan(...interface{}) error }, o *OrderRecord) error {
	var pm sql.NullString
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.VisitDate, &o.OrderDate,
		&o.VAT, &pm, &o.TicketCode, &o.QRCode, &o.UpdatedAt)
	if err != nil {
		return err
	}
	if pm.Valid {
		v := pm.String
		o.PaymentMethod = &v
	}
	return nil
}

// CreateTx inserts a new order within an existing transaction and
// populates the generated ID and database defaults on the record.  A
// duplicate-key violation on ticket_code/qr_code maps to
// ErrDuplicateCode so the caller can regenerate and retry.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *OrderRecord) error {
	const q = `INSERT INTO orders (user_id, status, visit_date, vat, payment_method, ticket_code, qr_code)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		o.UserID, o.Status, o.VisitDate.UTC(), o.VAT, o.PaymentMethod, o.TicketCode, o.QRCode)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCode
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	// Query back the full row to populate order_date and updated_at.
	row := tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", o.ID)
	return scanOrder(row, o)
}

// CreateLinesBulkTx inserts multiple order_lines rows in one statement
// within the provided transaction.  Passing an empty slice has no
// effect and returns nil.
func (r *OrderRepo) CreateLinesBulkTx(ctx context.Context, tx *sql.Tx, lines []OrderLineRecord) error {
	if len(lines) == 0 {
		return nil
	}
	q := "INSERT INTO order_lines (order_id, product_id, quantity, unit_price) VALUES "
	args := make([]interface{}, 0, len(lines)*4)
	for i, l := range lines {
		if i > 0 {
			q += ","
		}
		q += "(?, ?, ?, ?)"
		args = append(args, l.OrderID, l.ProductID, l.Quantity, l.UnitPrice)
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// GetByID loads a single order.  Returns ErrOrderNotFound when absent.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (OrderRecord, error) {
	var o OrderRecord
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	if err := scanOrder(row, &o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, ErrOrderNotFound
		}
		return o, err
	}
	return o, nil
}

// ListLines returns all lines of one order with product names joined,
// ordered by line id for deterministic output.
func (r *OrderRepo) ListLines(ctx context.Context, orderID uint64) ([]OrderLineRecord, error) {
	const q = `SELECT l.id, l.order_id, l.product_id, p.name, l.quantity, l.unit_price
	           FROM order_lines l
	           JOIN products p ON p.id = l.product_id
	           WHERE l.order_id = ?
	           ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]OrderLineRecord, 0)
	for rows.Next() {
		var l OrderLineRecord
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListLinesForOrders fetches the lines of many orders in a single
// query and groups them by order id.  Used by the list endpoints to
// avoid one query per order on a page.
func (r *OrderRepo) ListLinesForOrders(ctx context.Context, orderIDs []uint64) (map[uint64][]OrderLineRecord, error) {
	out := make(map[uint64][]OrderLineRecord, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, 0, len(orderIDs))
	args := make([]interface{}, 0, len(orderIDs))
	for _, id := range orderIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT l.id, l.order_id, l.product_id, p.name, l.quantity, l.unit_price
	      FROM order_lines l
	      JOIN products p ON p.id = l.product_id
	      WHERE l.order_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY l.order_id, l.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l OrderLineRecord
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

// GetLineWithOrder loads a line and its parent order in one round
// trip.  Line mutations resolve ownership and status through the
// parent, so both are always needed together.  Returns ErrLineNotFound
// when the line does not exist.
func (r *OrderRepo) GetLineWithOrder(ctx context.Context, lineID uint64) (OrderLineRecord, OrderRecord, error) {
	const q = `SELECT l.id, l.order_id, l.product_id, p.name, l.quantity, l.unit_price,
	                  o.id, o.user_id, o.status, o.visit_date, o.order_date, o.vat,
	                  o.payment_method, o.ticket_code, o.qr_code, o.updated_at
	           FROM order_lines l
	           JOIN products p ON p.id = l.product_id
	           JOIN orders o ON o.id = l.order_id
	           WHERE l.id = ?`
	var l OrderLineRecord
	var o OrderRecord
	var pm sql.NullString
	err := r.db.QueryRowContext(ctx, q, lineID).Scan(
		&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice,
		&o.ID, &o.UserID, &o.Status, &o.VisitDate, &o.OrderDate, &o.VAT,
		&pm, &o.TicketCode, &o.QRCode, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return l, o, ErrLineNotFound
	}
	if err != nil {
		return l, o, err
	}
	if pm.Valid {
		v := pm.String
		o.PaymentMethod = &v
	}
	return l, o, nil
}

// InsertLine adds one line to an existing order and populates the
// generated ID.  The caller has already snapshotted the unit price.
func (r *OrderRepo) InsertLine(ctx context.Context, l *OrderLineRecord) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO order_lines (order_id, product_id, quantity, unit_price) VALUES (?,?,?,?)",
		l.OrderID, l.ProductID, l.Quantity, l.UnitPrice)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// UpdateLineQuantity changes only the quantity column of a line.
// unit_price is intentionally absent from the statement: the snapshot
// is immutable once set.
func (r *OrderRepo) UpdateLineQuantity(ctx context.Context, lineID uint64, quantity int64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE order_lines SET quantity = ? WHERE id = ?", quantity, lineID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLineNotFound
	}
	return nil
}

// DeleteLine hard-deletes a line.
func (r *OrderRepo) DeleteLine(ctx context.Context, lineID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM order_lines WHERE id = ?", lineID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLineNotFound
	}
	return nil
}

// CompareAndSetStatus atomically moves an order from one status to
// another in a single UPDATE guarded on the current status.  When two
// transitions race, exactly one matches the guard and wins; the other
// sees false.  The same guard makes duplicate payment webhooks
// harmless.  paymentMethod, when non-nil, is stored alongside the new
// status; nil leaves the existing label untouched.
func (r *OrderRepo) CompareAndSetStatus(ctx context.Context, orderID uint64, from, to order.Status, paymentMethod *string) (bool, error) {
	const q = `UPDATE orders
	           SET status = ?, payment_method = COALESCE(?, payment_method), updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, paymentMethod, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
