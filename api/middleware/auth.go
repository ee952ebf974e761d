package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cabinetworks/contractor-backend/api/responses"
	"github.com/cabinetworks/contractor-backend/internal/proposals"
	pkgAuth "github.com/cabinetworks/contractor-backend/pkg/auth"
	"github.com/cabinetworks/contractor-backend/pkg/config"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the principal.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithPrincipal(r.Context(), proposals.Principal{
				UserID:  claims.UserID,
				Role:    claims.Role,
				GroupID: claims.GroupID,
			})

			if logg != nil {
				ctx = logg.WithUserID(ctx, strconv.FormatInt(claims.UserID, 10))
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				if claims.GroupID != nil {
					ctx = logg.WithGroupID(ctx, *claims.GroupID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
