package services

import (
	"fmt"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/ports"
)

// AuthorizationGate decides whether an identity may run an operation class
// against a profile owner. It holds no mutable state.
type AuthorizationGate struct {
	adminOverride bool
}

// NewAuthorizationGate builds a gate. adminOverride lets admins pass self-write
// checks on any profile; config leaves it off by default.
func NewAuthorizationGate(adminOverride bool) *AuthorizationGate {
	return &AuthorizationGate{adminOverride: adminOverride}
}

var _ ports.AuthorizationGate = (*AuthorizationGate)(nil)

func (g *AuthorizationGate) Authorize(id domain.Identity, owner domain.UserID, class domain.OperationClass) error {
	if g.allows(id, owner, class) {
		return nil
	}
	return fmt.Errorf("%w: %q may not %s profile of %q", domain.ErrUnauthorized, id.UserID, class, owner)
}

func (g *AuthorizationGate) allows(id domain.Identity, owner domain.UserID, class domain.OperationClass) bool {
	if id.IsZero() || owner == "" {
		return false
	}

	self := id.UserID == owner
	switch class {
	case domain.OpSelfRead:
		return self
	case domain.OpSelfWrite:
		return self || (g.adminOverride && id.IsAdmin())
	case domain.OpAdminOnly:
		return id.IsAdmin()
	default:
		return false
	}
}
