package queue

// OrderConfirmedEvent is published to the order.confirmed queue once a
// payment has been reconciled and the order moved to confirmed. The
// consumer turns it into the ticket issuance log entry.
type OrderConfirmedEvent struct {
	OrderID       uint64   `json:"order_id"`
	UserID        uint64   `json:"user_id"`
	TicketCode    string   `json:"ticket_code"`
	QRCode        string   `json:"qr_code"`
	VisitDate     string   `json:"visit_date"`
	PaymentMethod string   `json:"payment_method"`
	Total         string   `json:"total"`
	ProductNames  []string `json:"product_names"`
	ConfirmedAt   string   `json:"confirmed_at"`
}
