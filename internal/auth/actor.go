// Package auth resolves the authenticated actor from the request
// context and centralises the authorization predicates used by the
// order endpoints.  Handlers apply one predicate per operation instead
// of repeating ad hoc role/ownership comparisons.
package auth

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Role names as stored in the users table and in JWT claims.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Actor is the authenticated identity performing an operation: the
// user ID and role extracted from a validated JWT by the middleware.
type Actor struct {
	ID   uint64
	Role string
}

// ErrNoActor is returned when the context carries no usable identity.
var ErrNoActor = errors.New("no authenticated actor in context")

// FromContext builds an Actor from the values the JWT middleware
// stored in the echo context.  JWT numeric claims arrive as float64;
// other shapes are accepted for robustness.
func FromContext(c echo.Context) (Actor, error) {
	id, ok := userIDFrom(c.Get("user_id"))
	if !ok {
		return Actor{}, ErrNoActor
	}
	role, _ := c.Get("role").(string)
	if role == "" {
		return Actor{}, ErrNoActor
	}
	return Actor{ID: id, Role: role}, nil
}

func userIDFrom(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case uint64:
		return t, t != 0
	case int:
		return uint64(t), t > 0
	case int64:
		return uint64(t), t > 0
	case float64:
		return uint64(t), t > 0
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, true
		}
	}
	return 0, false
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether the actor is the owner of a resource belonging
// to the given user ID.
func (a Actor) Owns(userID uint64) bool { return a.ID == userID }

// CanAccess is the owner-or-admin predicate shared by order reads,
// line mutations and checkout creation.
func (a Actor) CanAccess(ownerID uint64) bool { return a.IsAdmin() || a.Owns(ownerID) }
