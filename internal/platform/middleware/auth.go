package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "cynergists/pkg/domain"
	"cynergists/pkg/requestcontext"
)

// PortalClaims are the JWT claims issued by the portal's login flow.
// Every user route requires a bearer token carrying user and tenant identity.
type PortalClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

type contextKeyUserID struct{}
type contextKeyTenantID struct{}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(contextKeyUserID{}).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// GetTenantID retrieves the authenticated tenant ID from the context.
// May be nil for users that have not created a tenant yet.
func GetTenantID(ctx context.Context) id.TenantID {
	if tenantID, ok := ctx.Value(contextKeyTenantID{}).(id.TenantID); ok {
		return tenantID
	}
	return id.TenantID{}
}

// WithIdentity injects user and tenant identity into the context.
// Exported for handler tests that bypass the HTTP middleware.
func WithIdentity(ctx context.Context, userID id.UserID, tenantID id.TenantID) context.Context {
	ctx = context.WithValue(ctx, contextKeyUserID{}, userID)
	return context.WithValue(ctx, contextKeyTenantID{}, tenantID)
}

// RequireAuth validates the Authorization bearer token and injects identity
// into the request context. Rejects with 401 on any validation failure.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	key := []byte(signingKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := bearerToken(r)
			if raw == "" {
				writeUnauthorized(w)
				return
			}

			claims := &PortalClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				logger.WarnContext(ctx, "invalid bearer token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil || userID.IsNil() {
				writeUnauthorized(w)
				return
			}

			tenantID := id.TenantID{}
			if claims.TenantID != "" {
				tenantID, err = id.ParseTenantID(claims.TenantID)
				if err != nil {
					writeUnauthorized(w)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, userID, tenantID)))
		})
	}
}

// IssueToken signs a portal bearer token. Used by the seeder and tests; the
// production login flow lives in the SSO service, not this repository.
func IssueToken(signingKey string, claims PortalClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(signingKey))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
