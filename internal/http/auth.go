package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"despesas/internal/core"
	applog "despesas/internal/log"
)

const tokenCookie = "token"

type principalKey struct{}

// principal is the authenticated caller of a request.
type principal struct {
	UserID string
	Role   core.Role
}

func withPrincipal(ctx context.Context, p principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

// bearerToken reads the session token from the cookie first, then from an
// Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireAuth rejects requests without a valid token or whose user no longer
// exists. User existence is cached.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, "authenticate", fmt.Errorf("%w: missing token", core.ErrUnauthorized))
			return
		}
		claims, err := s.users.Authenticate(token)
		if err != nil {
			writeError(w, r, "authenticate", err)
			return
		}

		exists, err := s.userCache.GetOrLoad(claims.ID, func() (bool, error) {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			return s.users.Exists(ctx, claims.ID)
		})
		if err != nil {
			writeError(w, r, "authenticate", err)
			return
		}
		if !exists {
			writeError(w, r, "authenticate", fmt.Errorf("%w: user no longer exists", core.ErrUnauthorized))
			return
		}

		ctx := withPrincipal(r.Context(), principal{UserID: claims.ID, Role: core.Role(claims.Role)})
		ctx = applog.WithLogger(ctx, applog.FromContext(ctx).With(applog.FieldUserID, claims.ID))
		next(w, r.WithContext(ctx))
	}
}

// userID returns the authenticated user. Handlers behind requireAuth always
// have one.
func userID(r *http.Request) string {
	p, _ := principalFrom(r.Context())
	return p.UserID
}

func (s *Server) sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *Server) clearedSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}
