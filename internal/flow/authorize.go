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
	"net/http"

	"github.com/uitsmijter/uitsmijter/internal/audit"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// AuthorizeRequest carries the parameters of GET /authorize together with
// the raw request for cookie access.
type AuthorizeRequest struct {
	Host                string
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	Prompt              string // "login" forces the login page even with a valid cookie

	Request *http.Request
}

// AuthorizeResult is either a redirect (silent code issuance) or a login
// prompt to render.
type AuthorizeResult struct {
	// RedirectURL is set when a code was issued without user interaction.
	RedirectURL string
	// Cookie, when set, accompanies the response (session rotation).
	Cookie *http.Cookie
	// Login is set when the login page must be rendered instead.
	Login *LoginPrompt
}

// LoginPrompt is everything the login template needs.
type LoginPrompt struct {
	Location     string // signed challenge posted back by the form
	Tenant       *tenant.Tenant
	ClientID     string
	ErrorMessage string
}

// Authorize runs the /authorize half of the state machine.
//
// Error delivery is two-tiered: before the redirect URI is verified errors
// must render directly (redirecting to an unverified URI is an open
// redirect); afterwards they carry the verified URI and may travel the
// front channel.
func (e *Engine) Authorize(ctx context.Context, req *AuthorizeRequest) (*AuthorizeResult, error) {
	t, err := e.registry.LookupTenant(req.Host)
	if err != nil {
		return nil, err
	}

	client, err := e.registry.LookupClient(req.ClientID)
	if err != nil || client.TenantName != t.Name {
		// A client of another tenant is indistinguishable from an unknown
		// one; anything else leaks tenant membership.
		return nil, oauth.NewError(oauth.ErrInvalidClient, "unknown client")
	}

	if req.RedirectURI == "" || !client.ValidateRedirectURI(req.RedirectURI) {
		// Never redirect on mismatch.
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "redirect_uri is not registered for this client")
	}

	// From here on the redirect URI is trusted.
	if req.State == "" {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "state parameter is required").
			WithRedirect(req.RedirectURI)
	}
	if req.ResponseType != oauth.ResponseTypeCode {
		return nil, oauth.NewError(oauth.ErrUnsupportedResponseType, "only response_type=code is supported").
			WithState(req.State).WithRedirect(req.RedirectURI)
	}

	scope := ResolveScope(oauth.SplitScope(req.Scope), client, t)
	if len(scope) == 0 {
		return nil, oauth.NewError(oauth.ErrInvalidScope, "requested scope is not allowed").
			WithState(req.State).WithRedirect(req.RedirectURI)
	}

	if client.PKCERequired() {
		if req.CodeChallenge == "" {
			return nil, oauth.NewError(oauth.ErrInvalidRequest, "code_challenge is required for this client").
				WithState(req.State).WithRedirect(req.RedirectURI)
		}
		// A missing method defaults to plain (RFC 7636 Section 4.3).
		if req.CodeChallengeMethod != "" && !oauth.ValidChallengeMethod(req.CodeChallengeMethod) {
			return nil, oauth.NewError(oauth.ErrInvalidRequest, "unsupported code_challenge_method").
				WithState(req.State).WithRedirect(req.RedirectURI)
		}
	}

	challenge := &LoginChallenge{
		TenantName:          t.Name,
		ClientID:            client.ID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		State:               req.State,
		ResponseType:        req.ResponseType,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: normalizeChallengeMethod(req.CodeChallengeMethod, req.CodeChallenge),
		Nonce:               req.Nonce,
		Mode:                "interactive",
	}

	// Silent path: a valid SSO cookie for this responsibility domain and
	// this tenant skips the login page.
	respHash := e.ResponsibilityHash(t, req.Host)
	if req.Prompt != "login" && respHash != "" && req.Request != nil {
		if sess, err := e.sessions.Parse(req.Request, respHash); err == nil && sess.TenantName == t.Name {
			// The session carries allow-listed claims; project them by the
			// granted scope exactly like an interactive login would.
			claims := ProjectClaims(sess.Claims, challenge.Scope, t.ClaimAllowList)
			redirect, err := e.issueCode(ctx, t, challenge, sess.Subject, claims)
			if err != nil {
				return nil, err
			}
			rotated, err := e.sessions.Rotate(sess, t)
			if err != nil {
				rotated = nil
			}
			e.audit.Log(ctx, audit.Event{
				Type:     audit.TypeSilentLogin,
				Tenant:   t.Name,
				Subject:  sess.Subject,
				ClientID: client.ID,
			})
			return &AuthorizeResult{RedirectURL: redirect, Cookie: rotated}, nil
		}
	}

	location, err := e.encodeChallenge(challenge)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrServerError, "failed to encode login challenge")
	}

	return &AuthorizeResult{
		Login: &LoginPrompt{
			Location: location,
			Tenant:   t,
			ClientID: client.ID,
		},
	}, nil
}

// normalizeChallengeMethod fills in the RFC 7636 default: a challenge
// without a method is treated as plain.
func normalizeChallengeMethod(method, challenge string) string {
	if challenge == "" {
		return ""
	}
	if method == "" {
		return oauth.ChallengeMethodPlain
	}
	return method
}
