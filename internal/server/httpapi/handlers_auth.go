package httpapi

import (
	"net/http"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/server/services"
	"github.com/psicopedagogiando/tienda/internal/server/session"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "register", err)
		return
	}

	u, err := h.svc.Users.Register(r.Context(), services.RegisterInput(req))
	if err != nil {
		h.writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toUserResponse(u))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "login", err)
		return
	}

	pair, err := h.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeMappedError(r.Context(), w, "login", err)
		return
	}
	h.setTokenCookies(w, pair)
	writeSuccess(w, http.StatusOK, tokenResponse(*pair))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshTokenFromRequest(w, r)
	if err != nil {
		h.writeValidationError(r.Context(), w, "refresh", err)
		return
	}
	if token == "" {
		h.writeMappedError(r.Context(), w, "refresh", common.ErrorUnauthorized)
		return
	}

	pair, err := h.svc.Users.RefreshToken(r.Context(), token)
	if err != nil {
		h.clearTokenCookies(w)
		h.writeMappedError(r.Context(), w, "refresh", err)
		return
	}
	h.setTokenCookies(w, pair)
	writeSuccess(w, http.StatusOK, tokenResponse(*pair))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshTokenFromRequest(w, r)
	if err != nil {
		h.writeValidationError(r.Context(), w, "logout", err)
		return
	}
	if token != "" {
		if err := h.svc.Users.Logout(r.Context(), token); err != nil {
			h.writeMappedError(r.Context(), w, "logout", err)
			return
		}
	}
	h.clearTokenCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	u, err := h.svc.Users.Profile(r.Context(), sess.UserID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "get_profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeValidationError(r.Context(), w, "update_profile", err)
		return
	}

	sess := session.FromContext(r.Context())
	u, err := h.svc.Users.UpdateProfile(r.Context(), sess.UserID, services.ProfileUpdate(req))
	if err != nil {
		h.writeMappedError(r.Context(), w, "update_profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, toUserResponse(u))
}

// refreshTokenFromRequest prefers the JSON body and falls back to the
// refresh token cookie.
func (h *Handler) refreshTokenFromRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	var req refreshRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		return "", err
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, nil
	}
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		return c.Value, nil
	}
	return "", nil
}

// resumeSession rotates the refresh token cookie into a fresh session for
// routes reached by top-level navigation, where the browser cannot call the
// refresh endpoint first. It returns nil when there is nothing to resume.
func (h *Handler) resumeSession(w http.ResponseWriter, r *http.Request) *session.Session {
	c, err := r.Cookie(common.RefreshTokenCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	ctx := r.Context()
	pair, err := h.svc.Users.RefreshToken(ctx, c.Value)
	if err != nil {
		h.log.Info(ctx, "session could not be resumed", "err", err)
		h.clearTokenCookies(w)
		return nil
	}
	sess, err := session.FromToken(pair.AccessToken, []byte(h.cfg.SecretKey))
	if err != nil {
		h.log.Error(ctx, "refreshed access token rejected", "err", err)
		return nil
	}
	h.setTokenCookies(w, pair)
	return sess
}

// The refresh cookie is sent site-wide so the gateway return route can
// resume an expired session.
func (h *Handler) setTokenCookies(w http.ResponseWriter, pair *services.TokenPair) {
	http.SetCookie(w, h.cookie(common.AccessTokenCookieName, pair.AccessToken, "/", int(h.cfg.AccessTokenValidityDuration.Seconds())))
	http.SetCookie(w, h.cookie(common.RefreshTokenCookieName, pair.RefreshToken, "/", int(h.cfg.RefreshTokenValidityDuration.Seconds())))
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.cookie(common.AccessTokenCookieName, "", "/", -1))
	http.SetCookie(w, h.cookie(common.RefreshTokenCookieName, "", "/", -1))
}

func (h *Handler) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
