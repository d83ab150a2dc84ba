// Copyright 2026 The Uitsmijter Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package http exposes the authorization server over HTTP: the /authorize,
// /login, /token, /userinfo and /logout endpoints plus OIDC discovery. The
// handlers translate between the wire and the flow engine; protocol
// decisions live in internal/flow.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/uitsmijter/uitsmijter/internal/flow"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
	"github.com/uitsmijter/uitsmijter/internal/observability/logger"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// Handler bundles the flow engine with the login page renderer.
type Handler struct {
	engine     *flow.Engine
	renderer   LoginRenderer
	trustProxy bool
}

// NewHandler creates the HTTP handler set. A nil renderer falls back to
// the built-in login template.
func NewHandler(engine *flow.Engine, renderer LoginRenderer) *Handler {
	if renderer == nil {
		renderer = NewTemplateRenderer()
	}
	return &Handler{engine: engine, renderer: renderer}
}

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	// RequestTimeout bounds handler execution; zero means 60s.
	RequestTimeout time.Duration
	// LoginRPS / LoginBurst throttle the credential endpoints per IP.
	LoginRPS   float64
	LoginBurst int
	// TrustProxyHeaders makes client addresses come from X-Forwarded-For.
	// Only safe behind a proxy that overwrites the header.
	TrustProxyHeaders bool
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.LoginRPS == 0 {
		cfg.LoginRPS = 5
	}
	if cfg.LoginBurst == 0 {
		cfg.LoginBurst = 10
	}
	h.trustProxy = cfg.TrustProxyHeaders

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(h.TenantMiddleware)

	limiter := NewRateLimiter(cfg.LoginRPS, cfg.LoginBurst)
	throttled := RateLimitMiddleware(limiter, cfg.TrustProxyHeaders)

	r.Get("/health", h.Health)
	r.Get("/.well-known/openid-configuration", h.Discovery)
	r.Get("/jwks.json", h.JWKS)

	r.Group(func(r chi.Router) {
		r.Use(RequireTenant)
		r.Get("/authorize", h.Authorize)
		r.Get("/logout", h.Logout)
		r.With(throttled).Post("/login", h.Login)
	})

	r.With(throttled).Post("/token", h.Token)
	r.With(throttled).Post("/token/revoke", h.TokenRevoke)
	r.Get("/userinfo", h.UserInfo)

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Discovery serves the OIDC configuration document.
func (h *Handler) Discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Signer().Discovery())
}

// JWKS serves the public signing keys.
func (h *Handler) JWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Signer().JWKS())
}

// Authorize handles GET /authorize: either redirects with a code (silent
// SSO) or renders the login page with a signed challenge.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.engine.Authorize(r.Context(), &flow.AuthorizeRequest{
		Host:                r.Host,
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseType:        q.Get("response_type"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Nonce:               q.Get("nonce"),
		Prompt:              q.Get("prompt"),
		Request:             r,
	})
	if err != nil {
		h.frontChannelError(w, r, err)
		return
	}

	if res.Cookie != nil {
		http.SetCookie(w, res.Cookie)
	}
	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}
	h.renderLogin(w, r, res.Login, http.StatusOK)
}

// Login handles the POSTed login form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.frontChannelError(w, r, oauth.NewError(oauth.ErrInvalidRequest, "malformed form body"))
		return
	}

	res, err := h.engine.Login(r.Context(), &flow.LoginRequest{
		Host:      r.Host,
		Location:  r.PostFormValue("location"),
		Username:  r.PostFormValue("username"),
		Password:  r.PostFormValue("password"),
		IPAddress: clientIP(r, h.trustProxy),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.frontChannelError(w, r, err)
		return
	}

	if res.Cookie != nil {
		http.SetCookie(w, res.Cookie)
	}
	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}
	// Wrong credentials re-render the prompt; 200 so browsers keep the form.
	h.renderLogin(w, r, res.Login, http.StatusOK)
}

// Token handles POST /token for all supported grants.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	req, oerr := h.parseTokenRequest(r)
	if oerr != nil {
		writeError(w, oerr)
		return
	}

	res, err := h.engine.Token(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, res)
}

// TokenRevoke handles POST /token/revoke (RFC 7009).
func (h *Handler) TokenRevoke(w http.ResponseWriter, r *http.Request) {
	req, oerr := h.parseTokenRequest(r)
	if oerr != nil {
		writeError(w, oerr)
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken = r.PostFormValue("token")
	}

	if err := h.engine.Revoke(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// UserInfo handles GET /userinfo with a bearer access token.
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	bearer := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))

	claims, err := h.engine.UserInfo(r.Context(), bearer)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "access token is invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// Logout handles GET /logout: clear the SSO cookie, optionally redirect.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Logout(r.Context(), &flow.LogoutRequest{
		Host:                  r.Host,
		PostLogoutRedirectURI: r.URL.Query().Get("post_logout_redirect_uri"),
		Request:               r,
	})
	if err != nil {
		h.frontChannelError(w, r, err)
		return
	}

	if res.Cookie != nil {
		http.SetCookie(w, res.Cookie)
	}
	if res.RedirectURL != "" {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.renderer.RenderLoggedOut(w, GetTenant(r.Context()))
}

// parseTokenRequest reads the form body and client credentials. Clients
// may authenticate via HTTP Basic or form parameters (RFC 6749 2.3.1).
func (h *Handler) parseTokenRequest(r *http.Request) (*flow.TokenRequest, *oauth.Error) {
	if err := r.ParseForm(); err != nil {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "malformed form body")
	}

	clientID := r.PostFormValue("client_id")
	clientSecret := r.PostFormValue("client_secret")
	if id, secret, ok := r.BasicAuth(); ok {
		clientID, clientSecret = id, secret
	}

	return &flow.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		Scope:        r.PostFormValue("scope"),
		IPAddress:    clientIP(r, h.trustProxy),
		UserAgent:    r.UserAgent(),
	}, nil
}

// frontChannelError delivers an /authorize or /login failure. Errors with
// a verified redirect URI travel the front channel; everything else
// renders directly so an unverified redirect_uri is never followed.
func (h *Handler) frontChannelError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, tenant.ErrTenantNotFound) {
		http.NotFound(w, r)
		return
	}

	var oerr *oauth.Error
	if !errors.As(err, &oerr) {
		slog.ErrorContext(r.Context(), "unhandled flow error", logger.Error(err))
		writeOAuthError(w, http.StatusInternalServerError, oauth.ErrServerError, "internal error")
		return
	}

	if oerr.RedirectURI != "" {
		u, perr := url.Parse(oerr.RedirectURI)
		if perr == nil {
			q := u.Query()
			q.Set("error", oerr.Code)
			if oerr.Description != "" {
				q.Set("error_description", oerr.Description)
			}
			if oerr.State != "" {
				q.Set("state", oerr.State)
			}
			u.RawQuery = q.Encode()
			http.Redirect(w, r, u.String(), http.StatusFound)
			return
		}
	}

	writeError(w, oerr)
}

// writeError maps an oauth.Error onto the RFC 6749 Section 5.2 wire format
// with the matching status code.
func writeError(w http.ResponseWriter, err error) {
	var oerr *oauth.Error
	if !errors.As(err, &oerr) {
		writeOAuthError(w, http.StatusInternalServerError, oauth.ErrServerError, "internal error")
		return
	}

	status := http.StatusBadRequest
	switch oerr.Code {
	case oauth.ErrInvalidClient:
		status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Basic realm="token endpoint"`)
	case oauth.ErrRateLimited:
		status = http.StatusTooManyRequests
	case oauth.ErrTemporarilyUnavailable:
		status = http.StatusServiceUnavailable
	case oauth.ErrServerError:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(oerr)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", logger.Error(err))
	}
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, prompt *flow.LoginPrompt, status int) {
	if prompt == nil {
		writeOAuthError(w, http.StatusInternalServerError, oauth.ErrServerError, "no login prompt to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.RenderLogin(w, prompt, r.URL.RequestURI()); err != nil {
		slog.ErrorContext(r.Context(), "failed to render login page", logger.Error(err))
	}
}
