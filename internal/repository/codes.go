package repository

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// NewTicketCode builds a human-readable ticket code:
// ZMB-<year>-<unix ms>-<6 random digits>.  The generator is
// collision-resistant, not collision-proof; the UNIQUE constraint on
// orders.ticket_code is the actual guarantee, and the create path
// retries with a fresh code on a duplicate-key error.
func NewTicketCode(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("ZMB-%d-%d-%06d", now.Year(), now.UnixMilli(), suffix)
}

// NewQRCode returns an opaque random token backing the order's QR
// code, 32 hex characters from a CSPRNG.
func NewQRCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
