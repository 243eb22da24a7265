package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/logging"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

type ctxKey string

const (
	ctxKeySessionErr ctxKey = "session_err"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := logging.ContextWith(r.Context(), "request_id", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error(r.Context(), "panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case statusCode >= 500:
			h.log.Error(r.Context(), "http request completed", fields...)
		case statusCode >= 400:
			h.log.Warn(r.Context(), "http request completed", fields...)
		default:
			h.log.Info(r.Context(), "http request completed", fields...)
		}
	})
}

// sessionMiddleware attaches the caller's session when the request carries a
// valid access token. Anonymous and invalid requests pass through; routes
// that need a user are guarded by requireAuth.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := session.FromRequest(r, []byte(h.cfg.SecretKey))
		ctx := r.Context()
		switch {
		case err == nil:
			ctx = session.NewContext(ctx, sess)
		case !errors.Is(err, common.ErrorUnauthorized):
			ctx = context.WithValue(ctx, ctxKeySessionErr, err)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session.FromContext(r.Context()) == nil {
			err, _ := r.Context().Value(ctxKeySessionErr).(error)
			if err == nil {
				err = common.ErrorUnauthorized
			}
			h.writeMappedError(r.Context(), w, "require_auth", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin must run after requireAuth. The role is read from the store
// on every request, never from the token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		ok, err := h.svc.Users.IsAdmin(r.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				err = common.ErrorForbidden
			}
			h.writeMappedError(r.Context(), w, "require_admin", err)
			return
		}
		if !ok {
			h.writeMappedError(r.Context(), w, "require_admin", common.ErrorForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
