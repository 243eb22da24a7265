package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/auth"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconcileTo(states ...services.State) func(*session.Session, services.Confirmation) services.Result {
	return func(_ *session.Session, c services.Confirmation) services.Result {
		return services.Result{Path: states, PaymentID: c.PaymentID}
	}
}

func TestConfirmPurchase_PassesQueryAndSession(t *testing.T) {
	ts := newTestServer()
	var gotSess *session.Session
	var gotConf services.Confirmation
	ts.reconciler.reconcile = func(s *session.Session, c services.Confirmation) services.Result {
		gotSess, gotConf = s, c
		return services.Result{Path: []services.State{services.StateRedirectToHistory}}
	}

	req := httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=123&status=approved&external_reference=mat-1", nil)
	rec := ts.do(ts.authed(t, req, testUserID))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, gotSess)
	assert.Equal(t, testUserID, gotSess.UserID)
	assert.Equal(t, services.Confirmation{PaymentID: "123", Status: "approved", ExternalReference: "mat-1"}, gotConf)
}

func TestConfirmPurchase_Redirects(t *testing.T) {
	tests := []struct {
		name     string
		result   services.Result
		wantLoc  string
		wantCode int
	}{
		{
			name:     "not approved goes to catalog",
			result:   services.Result{Path: []services.State{services.StateStart, services.StateValidatingStatus, services.StateRedirectToCatalog}},
			wantLoc:  "https://tienda.test/materiales",
			wantCode: http.StatusSeeOther,
		},
		{
			name:     "recorded goes to history",
			result:   services.Result{Path: []services.State{services.StateInserting, services.StateRedirectToHistory}},
			wantLoc:  "https://tienda.test/mis-compras?compra=registrada",
			wantCode: http.StatusSeeOther,
		},
		{
			name:     "duplicate goes to history",
			result:   services.Result{Path: []services.State{services.StateCheckingDuplicate, services.StateRedirectToHistory}, Duplicate: true},
			wantLoc:  "https://tienda.test/mis-compras?compra=duplicada",
			wantCode: http.StatusSeeOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.reconciler.reconcile = func(*session.Session, services.Confirmation) services.Result { return tt.result }

			rec := ts.do(httptest.NewRequest(http.MethodGet, "/compras/confirmar", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		})
	}
}

func TestConfirmPurchase_InProgressRedirectsToHistory(t *testing.T) {
	ts := newTestServer()
	ts.reconciler.reconcile = reconcileTo(services.StateStart, services.StateCheckingSession, services.StateInProgress)

	rec := ts.do(ts.authed(t, httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=77&status=approved&external_reference=m", nil), testUserID))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://tienda.test/mis-compras?compra=en_proceso", rec.Header().Get("Location"))
}

func TestConfirmPurchase_ResumesSessionFromRefreshCookie(t *testing.T) {
	ts := newTestServer()
	var gotToken string
	ts.users.refresh = func(token string) (*services.TokenPair, error) {
		gotToken = token
		return &services.TokenPair{AccessToken: ts.token(t, testUserID), RefreshToken: "ref2"}, nil
	}
	var gotSess *session.Session
	ts.reconciler.reconcile = func(s *session.Session, _ services.Confirmation) services.Result {
		gotSess = s
		return services.Result{Path: []services.State{services.StateInserting, services.StateRedirectToHistory}}
	}

	req := httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=123&status=approved&external_reference=mat-1", nil)
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: "ref1"})
	rec := ts.do(req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://tienda.test/mis-compras?compra=registrada", rec.Header().Get("Location"))
	assert.Equal(t, "ref1", gotToken)
	require.NotNil(t, gotSess)
	assert.Equal(t, testUserID, gotSess.UserID)
	refresh := cookieByName(rec, common.RefreshTokenCookieName)
	require.NotNil(t, refresh)
	assert.Equal(t, "ref2", refresh.Value)
	assert.NotEmpty(t, cookieByName(rec, common.AccessTokenCookieName).Value)
}

func TestConfirmPurchase_ExpiredAccessTokenIsResumed(t *testing.T) {
	ts := newTestServer()
	expired, err := auth.GenerateToken(testUserID, "a@example.com", []byte(ts.cfg.SecretKey), -time.Minute)
	require.NoError(t, err)
	ts.users.refresh = func(string) (*services.TokenPair, error) {
		return &services.TokenPair{AccessToken: ts.token(t, testUserID), RefreshToken: "ref2"}, nil
	}
	var gotSess *session.Session
	ts.reconciler.reconcile = func(s *session.Session, _ services.Confirmation) services.Result {
		gotSess = s
		return services.Result{Path: []services.State{services.StateRedirectToHistory}}
	}

	req := httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=123&status=approved&external_reference=mat-1", nil)
	req.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: expired})
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: "ref1"})
	rec := ts.do(req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, gotSess)
	assert.Equal(t, testUserID, gotSess.UserID)
}

func TestConfirmPurchase_InvalidRefreshCookieReportsNoSession(t *testing.T) {
	ts := newTestServer()
	ts.users.refresh = func(string) (*services.TokenPair, error) { return nil, common.ErrRefreshTokenExpired }
	ts.reconciler.reconcile = func(s *session.Session, c services.Confirmation) services.Result {
		assert.Nil(t, s)
		return services.Result{Path: []services.State{services.StateCheckingSession, services.StateFatalReport}, PaymentID: c.PaymentID, Err: services.ErrNoSession}
	}

	req := httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=123&status=approved&external_reference=mat-1", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: "stale"})
	rec := ts.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, cookieByName(rec, common.RefreshTokenCookieName).Value)
}

func TestConfirmPurchase_NotApprovedLeavesRefreshCookieAlone(t *testing.T) {
	ts := newTestServer()
	ts.users.refresh = func(string) (*services.TokenPair, error) {
		t.Fatal("refresh must not run for a cancelled payment")
		return nil, nil
	}
	ts.reconciler.reconcile = reconcileTo(services.StateValidatingStatus, services.StateRedirectToCatalog)

	req := httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=123&status=rejected&external_reference=mat-1", nil)
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: "ref1"})
	rec := ts.do(req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Nil(t, cookieByName(rec, common.RefreshTokenCookieName))
}

func TestConfirmPurchase_FatalReport(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		ts := newTestServer()
		ts.reconciler.reconcile = func(_ *session.Session, c services.Confirmation) services.Result {
			return services.Result{Path: []services.State{services.StateInserting, services.StateFatalReport}, PaymentID: c.PaymentID, Err: fmt.Errorf("db down")}
		}

		req := httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=555&status=approved&external_reference=m", nil)
		req.Header.Set("Accept", "application/json")
		rec := ts.do(ts.authed(t, req, testUserID))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body fatalReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, services.FatalMessage, body.Message)
		assert.Equal(t, "555", body.PaymentID)
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("html without session", func(t *testing.T) {
		ts := newTestServer()
		ts.reconciler.reconcile = func(_ *session.Session, c services.Confirmation) services.Result {
			return services.Result{Path: []services.State{services.StateCheckingSession, services.StateFatalReport}, PaymentID: c.PaymentID, Err: services.ErrNoSession}
		}

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/compras/confirmar?payment_id=%3Cb%3E9%3C%2Fb%3E&status=approved&external_reference=m", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "contacta a soporte")
		assert.Contains(t, rec.Body.String(), "&lt;b&gt;9&lt;/b&gt;")
	})
}

func TestPurchaseHistory(t *testing.T) {
	ts := newTestServer()
	fecha := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.purchases.history = func(s *session.Session) ([]*models.PurchaseHistoryItem, error) {
		require.Equal(t, testUserID, s.UserID)
		return []*models.PurchaseHistoryItem{{
			Purchase: models.Purchase{
				ID: "p1", MaterialID: "m1", PaymentID: "pay-1", Status: "approved",
				NombreMaterial: "Fichas", PrecioPagadoCents: 150050, Fecha: fecha,
			},
			MaterialAvailable: false,
		}}, nil
	}

	rec := ts.do(ts.authed(t, httptest.NewRequest(http.MethodGet, "/api/compras", nil), testUserID))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got []purchaseResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, 1500.5, got[0].PrecioPagado)
	assert.Equal(t, "2025-03-01T12:00:00Z", got[0].Fecha)
	require.NotNil(t, got[0].MaterialDisponible)
	assert.False(t, *got[0].MaterialDisponible)
}

func TestPurchaseHistory_RequiresSession(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/compras", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
