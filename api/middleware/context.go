package middleware

import (
	"context"

	"github.com/cabinetworks/contractor-backend/internal/proposals"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
)

type contextKey string

const (
	ctxPrincipal contextKey = "principal"
	ctxClientIP  contextKey = "client_ip"
)

// PrincipalFromContext returns the authenticated user seeded by Auth.
func PrincipalFromContext(ctx context.Context) (proposals.Principal, bool) {
	if ctx == nil {
		return proposals.Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(proposals.Principal)
	return p, ok
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}

// WithPrincipal injects an authenticated user into the context.
func WithPrincipal(ctx context.Context, p proposals.Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}

func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxClientIP).(string); ok {
		return v
	}
	return ""
}
