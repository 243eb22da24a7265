// Package session derives the caller identity from a request and carries it
// explicitly through the call chain.
package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/auth"
)

// Session is the authenticated caller. A nil *Session means anonymous.
type Session struct {
	UserID string
	Email  string
}

type ctxKey struct{}

// FromRequest reads the access token from the Authorization bearer header or,
// failing that, from the access token cookie. It returns common.ErrorUnauthorized
// when no token is present.
func FromRequest(r *http.Request, secret []byte) (*Session, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if c, err := r.Cookie(common.AccessTokenCookieName); err == nil {
			token = c.Value
		}
	}
	return FromToken(token, secret)
}

// FromToken validates an access token and returns its session.
func FromToken(token string, secret []byte) (*Session, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}
	claims, err := auth.ParseToken(token, secret)
	if err != nil {
		return nil, err
	}
	return &Session{UserID: claims.UserID, Email: claims.Email}, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
