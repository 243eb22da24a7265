package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("k")

func token(t *testing.T, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.GenerateToken("u-1", "ana@example.com", secret, ttl)
	require.NoError(t, err)
	return tok
}

func TestFromRequest_Bearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token(t, time.Hour))

	s, err := FromRequest(r, secret)
	require.NoError(t, err)
	assert.Equal(t, &Session{UserID: "u-1", Email: "ana@example.com"}, s)
}

func TestFromRequest_Cookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: token(t, time.Hour)})

	s, err := FromRequest(r, secret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.UserID)
}

func TestFromRequest_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic abc")

	_, err := FromRequest(r, secret)
	assert.True(t, errors.Is(err, common.ErrorUnauthorized), "got %v", err)
}

func TestFromRequest_Expired(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer "+token(t, -time.Second))

	_, err := FromRequest(r, secret)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	s := &Session{UserID: "u-1"}
	assert.Same(t, s, FromContext(NewContext(context.Background(), s)))
}

func TestFromToken(t *testing.T) {
	s, err := FromToken(token(t, time.Hour), secret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", s.UserID)

	_, err = FromToken("", secret)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = FromToken("not-a-jwt", secret)
	assert.Error(t, err)
}
