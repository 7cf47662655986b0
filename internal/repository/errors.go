// Package repository implements data access for users, products,
// orders and order lines on MySQL.  Sentinel errors let handlers map
// failure scenarios to HTTP responses without inspecting SQL errors.
package repository

import (
	"errors"
	"strings"
)

// ErrOrderNotFound is returned when an order ID does not exist.
// Handlers translate this into a 404.
var ErrOrderNotFound = errors.New("order not found")

// ErrLineNotFound is returned when an order line ID does not exist.
var ErrLineNotFound = errors.New("order line not found")

// ErrProductNotFound is returned when a referenced product does not
// exist (single lookups and batch validation alike).
var ErrProductNotFound = errors.New("product not found")

// ErrUserNotFound is returned when a referenced user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering with an email that is
// already taken.  Handlers translate this into a 409.
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicateCode is returned when an order insert collides on the
// ticket_code or qr_code unique constraints.  The caller should
// regenerate the codes and retry.
var ErrDuplicateCode = errors.New("duplicate ticket or qr code")

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (code 1062).  The driver does not expose a typed error for this, so
// the code is matched in the message, same as the unique-email check.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
