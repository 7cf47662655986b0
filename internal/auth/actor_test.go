package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctxWith(t *testing.T, userID interface{}, role interface{}) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if userID != nil {
		c.Set("user_id", userID)
	}
	if role != nil {
		c.Set("role", role)
	}
	return c
}

func TestFromContextClaimShapes(t *testing.T) {
	// JWT MapClaims deliver numbers as float64; older middleware may
	// store strings or ints.  All must resolve to the same actor.
	for _, id := range []interface{}{float64(7), uint64(7), int(7), int64(7), "7"} {
		a, err := FromContext(ctxWith(t, id, "member"))
		require.NoError(t, err, "id shape %T", id)
		assert.Equal(t, uint64(7), a.ID)
		assert.Equal(t, RoleMember, a.Role)
	}
}

func TestFromContextMissingIdentity(t *testing.T) {
	_, err := FromContext(ctxWith(t, nil, "member"))
	assert.ErrorIs(t, err, ErrNoActor)

	_, err = FromContext(ctxWith(t, float64(7), nil))
	assert.ErrorIs(t, err, ErrNoActor)

	_, err = FromContext(ctxWith(t, "not-a-number", "member"))
	assert.ErrorIs(t, err, ErrNoActor)

	_, err = FromContext(ctxWith(t, float64(0), "member"))
	assert.ErrorIs(t, err, ErrNoActor)
}

func TestPredicates(t *testing.T) {
	admin := Actor{ID: 1, Role: RoleAdmin}
	member := Actor{ID: 7, Role: RoleMember}

	assert.True(t, admin.IsAdmin())
	assert.False(t, member.IsAdmin())

	assert.True(t, member.Owns(7))
	assert.False(t, member.Owns(8))

	// Owner-or-admin: admin passes regardless of ownership, member only
	// on their own resources.
	assert.True(t, admin.CanAccess(42))
	assert.True(t, member.CanAccess(7))
	assert.False(t, member.CanAccess(42))
}
