package repository

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketCodeFormat(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	code := NewTicketCode(now)

	re := regexp.MustCompile(`^ZMB-2026-\d{13}-\d{6}$`)
	assert.Regexp(t, re, code)
	assert.Equal(t, code, regexp.MustCompile(`[a-z]`).ReplaceAllString(code, ""), "code must be upper case")
}

func TestNewQRCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := NewQRCode()
		require.NoError(t, err)
		assert.Len(t, tok, 32)
		assert.Regexp(t, `^[0-9a-f]{32}$`, tok)
		assert.False(t, seen[tok], "token repeated")
		seen[tok] = true
	}
}
