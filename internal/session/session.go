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

// Package session mints and parses the silent-SSO cookie. The cookie name
// binds to a responsibility domain hash so that a cookie issued under one
// responsibility domain is invisible to every other one.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// CookiePrefix is the fixed part of the SSO cookie name; the suffix is the
// responsibility hash.
const CookiePrefix = "uitsmijter-sso-"

// tokenType is the typ claim of every SSO cookie. The server key also
// signs access tokens and login challenges; the discriminator keeps them
// from being swapped for one another.
const tokenType = "sso_session"

// MaxSessionTTL is the absolute ceiling for the SSO cookie lifetime.
const MaxSessionTTL = 8 * time.Hour

var (
	ErrNoSession      = errors.New("no session cookie for this responsibility domain")
	ErrSessionInvalid = errors.New("session cookie invalid")
	ErrSessionExpired = errors.New("session cookie expired")
)

// Session is the verified content of an SSO cookie. Claims holds the
// user's allow-listed identity claims so a silent login can project them
// into tokens without another validator round trip.
type Session struct {
	ID                 string
	Subject            string
	TenantName         string
	ResponsibilityHash string
	Claims             map[string]any
	IssuedAt           time.Time
	ExpiresAt          time.Time
}

// ResponsibilityHash computes the hash the cookie name binds to.
//
// A tenant with silent_login enabled scopes its cookies to the tenant name,
// so every host of the tenant shares one SSO session. Without silent login
// the cookie is scoped to the responsible domain of the request instead.
// An unknown tenant yields an empty hash: no cookie is minted or honored.
func ResponsibilityHash(t *tenant.Tenant, responsibleDomain string, alg string) string {
	if t == nil {
		return ""
	}
	if t.SilentLogin {
		return crypto.DigestHex(alg, t.Name)
	}
	if responsibleDomain == "" {
		return ""
	}
	return crypto.DigestHex(alg, responsibleDomain)
}

// ResponsibleDomain derives the registered domain of a request host: the
// last two DNS labels, lowercased, port stripped. "login.example.com:443"
// becomes "example.com"; a bare host like "localhost" is returned as is.
func ResponsibleDomain(host string) string {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// TokenSigner is the subset of the server signer the session manager needs.
type TokenSigner interface {
	Issuer() string
	SignClaims(claims jwt.MapClaims) (string, error)
	Verify(raw, audience string) (jwt.MapClaims, error)
}

// Manager mints, parses, rotates and revokes SSO cookies. Rotation is
// stateless: the cookie itself carries everything, re-signed with a fresh
// issue time on every read hit.
type Manager struct {
	signer TokenSigner
	secure bool
	now    func() time.Time
}

// NewManager creates a session manager. secure controls the cookie's Secure
// attribute; it is only ever false in local development.
func NewManager(signer TokenSigner, secure bool) *Manager {
	return &Manager{signer: signer, secure: secure, now: time.Now}
}

// Mint creates a session and returns the Set-Cookie value for it. The
// lifetime is the tenant's session TTL clamped to the absolute ceiling.
// claims should already be filtered by the tenant's claim allow-list; the
// cookie payload is readable by the user agent.
func (m *Manager) Mint(subject string, claims map[string]any, t *tenant.Tenant, respHash string) (*http.Cookie, *Session, error) {
	if t == nil || respHash == "" {
		return nil, nil, fmt.Errorf("%w: cannot mint without a responsibility domain", ErrSessionInvalid)
	}

	ttl := t.EffectiveSessionTTL()
	if ttl > MaxSessionTTL {
		ttl = MaxSessionTTL
	}

	now := m.now()
	sess := &Session{
		ID:                 uuid.NewString(),
		Subject:            subject,
		TenantName:         t.Name,
		ResponsibilityHash: respHash,
		Claims:             claims,
		IssuedAt:           now,
		ExpiresAt:          now.Add(ttl),
	}

	cookie, err := m.encode(sess, t)
	if err != nil {
		return nil, nil, err
	}
	return cookie, sess, nil
}

// Parse picks the cookie matching the request's responsibility hash and
// verifies it. Cookies minted under other responsibility domains are
// ignored, never deleted; they belong to someone else.
func (m *Manager) Parse(r *http.Request, respHash string) (*Session, error) {
	if respHash == "" {
		return nil, ErrNoSession
	}

	cookie, err := r.Cookie(CookiePrefix + respHash)
	if err != nil {
		return nil, ErrNoSession
	}

	claims, err := m.signer.Verify(cookie.Value, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if stringClaim(claims, "typ") != tokenType {
		// Some other artifact signed with the server key was stuffed into
		// the cookie; an access token or login challenge is not a session.
		return nil, ErrSessionInvalid
	}

	sess := &Session{
		ID:                 stringClaim(claims, "sid"),
		Subject:            stringClaim(claims, "sub"),
		TenantName:         stringClaim(claims, "tenant"),
		ResponsibilityHash: stringClaim(claims, "rh"),
	}
	if m, ok := claims["claims"].(map[string]any); ok {
		sess.Claims = m
	}
	if iat, ok := claims["iat"].(float64); ok {
		sess.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := claims["exp"].(float64); ok {
		sess.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if sess.Subject == "" || sess.TenantName == "" {
		return nil, ErrSessionInvalid
	}
	// The hash inside the payload must match the cookie name it arrived
	// under, or the cookie was transplanted.
	if sess.ResponsibilityHash != respHash {
		return nil, ErrSessionInvalid
	}
	if !sess.ExpiresAt.After(m.now()) {
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Rotate re-signs the session with a fresh issue time, keeping the original
// expiry (the window slides on mint, not on read).
func (m *Manager) Rotate(sess *Session, t *tenant.Tenant) (*http.Cookie, error) {
	if t == nil || sess == nil {
		return nil, ErrSessionInvalid
	}
	rotated := *sess
	rotated.IssuedAt = m.now()
	return m.encode(&rotated, t)
}

// Revoke returns the Set-Cookie value that clears the session on the user
// agent.
func (m *Manager) Revoke(respHash string, t *tenant.Tenant) *http.Cookie {
	c := &http.Cookie{
		Name:     CookiePrefix + respHash,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if t != nil {
		c.Domain = t.CookieDomain
	}
	return c
}

func (m *Manager) encode(sess *Session, t *tenant.Tenant) (*http.Cookie, error) {
	payload := jwt.MapClaims{
		"iss":    m.signer.Issuer(),
		"typ":    tokenType,
		"sid":    sess.ID,
		"sub":    sess.Subject,
		"tenant": sess.TenantName,
		"rh":     sess.ResponsibilityHash,
		"iat":    sess.IssuedAt.Unix(),
		"exp":    sess.ExpiresAt.Unix(),
	}
	if len(sess.Claims) > 0 {
		payload["claims"] = sess.Claims
	}
	raw, err := m.signer.SignClaims(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return &http.Cookie{
		Name:     CookiePrefix + sess.ResponsibilityHash,
		Value:    raw,
		Path:     "/",
		Domain:   t.CookieDomain,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
