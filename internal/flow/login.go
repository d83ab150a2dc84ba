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

package flow

import (
	"context"
	"errors"
	"net/http"

	"github.com/uitsmijter/uitsmijter/internal/audit"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// LoginRequest carries the POSTed login form.
type LoginRequest struct {
	Host     string
	Location string // signed challenge from the login form
	Username string
	Password string

	IPAddress string
	UserAgent string
}

// Login runs the credential half of the state machine: verify the posted
// challenge, validate credentials, mint the SSO cookie, issue the code.
// A credential failure re-renders the prompt; the account is never locked
// here (lockout is a tenant policy concern).
func (e *Engine) Login(ctx context.Context, req *LoginRequest) (*AuthorizeResult, error) {
	challenge, err := e.decodeChallenge(req.Location)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "login challenge is invalid or expired")
	}

	// The posted challenge must belong to the tenant serving this host;
	// a challenge replayed against another tenant's login page dies here.
	t, err := e.registry.LookupTenant(req.Host)
	if err != nil || t.Name != challenge.TenantName {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "login challenge does not match this host")
	}

	v, err := e.validators.ForTenant(t)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrServerError, "tenant validator unavailable")
	}

	res, err := v.Validate(ctx, req.Username, req.Password)
	if err != nil {
		e.audit.Log(ctx, audit.Event{
			Type:      audit.TypeLoginFailed,
			Tenant:    t.Name,
			ClientID:  challenge.ClientID,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})

		switch {
		case errors.Is(err, validator.ErrInvalidCredentials):
			return e.reprompt(t, challenge, "Invalid username or password.")
		case errors.Is(err, validator.ErrRateLimited):
			return nil, oauth.NewError(oauth.ErrRateLimited, "too many login attempts, try again later")
		default:
			return nil, oauth.NewError(oauth.ErrTemporarilyUnavailable, "credential validation unavailable")
		}
	}

	claims := ProjectClaims(res.Claims, challenge.Scope, t.ClaimAllowList)

	redirect, err := e.issueCode(ctx, t, challenge, res.Subject, claims)
	if err != nil {
		return nil, err
	}

	// Mint the SSO cookie so the next client in this responsibility domain
	// signs in silently. The session carries the allow-listed claims; a
	// later silent login projects them per its own scope.
	var cookie *http.Cookie
	respHash := e.ResponsibilityHash(t, req.Host)
	if respHash != "" {
		sessionClaims := FilterClaims(res.Claims, t.ClaimAllowList)
		if c, _, err := e.sessions.Mint(res.Subject, sessionClaims, t, respHash); err == nil {
			cookie = c
		}
	}

	e.audit.Log(ctx, audit.Event{
		Type:      audit.TypeLoginSuccess,
		Tenant:    t.Name,
		Subject:   res.Subject,
		ClientID:  challenge.ClientID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	return &AuthorizeResult{RedirectURL: redirect, Cookie: cookie}, nil
}

// reprompt re-encodes the challenge so the login page can be rendered again
// with an error message.
func (e *Engine) reprompt(t *tenant.Tenant, challenge *LoginChallenge, message string) (*AuthorizeResult, error) {
	location, err := e.encodeChallenge(challenge)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrServerError, "failed to encode login challenge")
	}
	return &AuthorizeResult{
		Login: &LoginPrompt{
			Location:     location,
			Tenant:       t,
			ClientID:     challenge.ClientID,
			ErrorMessage: message,
		},
	}, nil
}
