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

// Package flow implements the authorization state machine: the protocol
// logic behind /authorize, /login, /token, /userinfo and /logout. The
// engine is stateless across requests; everything a flow needs travels in
// the request, the signed challenge, or one of the stores.
package flow

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/uitsmijter/uitsmijter/internal/audit"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// Engine wires the registry, stores, validator and signer into the
// protocol state machine.
type Engine struct {
	registry   *tenant.Registry
	validators validator.Provider
	codes      oauth.CodeStore
	refresh    oauth.RefreshStore
	sessions   *session.Manager
	signer     *token.Signer
	audit      audit.Logger
	hashAlg    string
	now        func() time.Time
}

// Options configures an Engine.
type Options struct {
	Registry   *tenant.Registry
	Validators validator.Provider
	Codes      oauth.CodeStore
	Refresh    oauth.RefreshStore
	Sessions   *session.Manager
	Signer     *token.Signer
	Audit      audit.Logger

	// HashAlg selects the responsibility hash digest ("sha1" or "sha256").
	HashAlg string
}

// NewEngine creates the flow engine.
func NewEngine(opts Options) *Engine {
	if opts.Audit == nil {
		opts.Audit = audit.NewSlogLogger()
	}
	if opts.HashAlg == "" {
		opts.HashAlg = crypto.HashSHA1
	}
	return &Engine{
		registry:   opts.Registry,
		validators: opts.Validators,
		codes:      opts.Codes,
		refresh:    opts.Refresh,
		sessions:   opts.Sessions,
		signer:     opts.Signer,
		audit:      opts.Audit,
		hashAlg:    opts.HashAlg,
		now:        time.Now,
	}
}

// ResponsibilityHash computes the hash for a resolved tenant and request
// host using the configured digest.
func (e *Engine) ResponsibilityHash(t *tenant.Tenant, host string) string {
	return session.ResponsibilityHash(t, session.ResponsibleDomain(host), e.hashAlg)
}

// Registry exposes the tenant registry for transport-level host resolution.
func (e *Engine) Registry() *tenant.Registry { return e.registry }

// Sessions exposes the session manager for transport-level cookie writes.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Signer exposes the token signer for discovery and JWKS serving.
func (e *Engine) Signer() *token.Signer { return e.signer }

// issueCode mints an authorization code bound to the challenge data and
// returns the redirect URL carrying code and state.
func (e *Engine) issueCode(ctx context.Context, t *tenant.Tenant, c *LoginChallenge, subject string, claims map[string]any) (string, error) {
	now := e.now()
	code := crypto.RandomOpaque(32)

	rec := &oauth.AuthorizationCode{
		ID:                  uuid.NewString(),
		Code:                code,
		ClientID:            c.ClientID,
		TenantName:          t.Name,
		Subject:             subject,
		RedirectURI:         c.RedirectURI,
		Scope:               c.Scope,
		Claims:              claims,
		CodeChallenge:       c.CodeChallenge,
		CodeChallengeMethod: c.CodeChallengeMethod,
		Nonce:               c.Nonce,
		State:               c.State,
		ExpiresAt:           now.Add(t.EffectiveCodeTTL()),
		CreatedAt:           now,
	}
	if err := e.codes.Put(ctx, rec); err != nil {
		return "", oauth.NewError(oauth.ErrServerError, "failed to store authorization code")
	}

	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypeCodeIssued,
		Tenant:   t.Name,
		Subject:  subject,
		ClientID: c.ClientID,
	})

	return redirectWithCode(c.RedirectURI, code, c.State), nil
}

// redirectWithCode appends code and state to the redirect URI. State is
// echoed verbatim, never interpreted.
func redirectWithCode(redirectURI, code, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		// The URI was validated against the client allow-list already.
		return redirectURI
	}
	q := u.Query()
	q.Set("code", code)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String()
}

// verifyClientSecret compares a presented secret against the registered
// hash in constant time.
func verifyClientSecret(c *tenant.Client, secret string) bool {
	if c.IsPublic() {
		return secret == ""
	}
	if secret == "" {
		return false
	}
	return crypto.ConstantTimeEquals(crypto.HashOpaque(secret), c.SecretHash)
}
