// Package principal carries the authenticated actor supplied by the upstream
// gateway. Authentication itself happens elsewhere.
package principal

import (
	"context"
	"errors"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
	// RoleSystem is used by background jobs, never accepted from a request.
	RoleSystem Role = "system"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsMerchant() bool { return p.Role == RoleMerchant }
func (p Principal) IsCustomer() bool { return p.Role == RoleCustomer }

func System(id string) Principal { return Principal{ID: id, Role: RoleSystem} }

// ParseRole accepts only the roles a request may carry.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleCustomer, RoleMerchant, RoleAdmin:
		return r, true
	}
	return "", false
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok && p.ID != ""
}
