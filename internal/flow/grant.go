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
	"time"

	"github.com/google/uuid"
	"github.com/uitsmijter/uitsmijter/internal/audit"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// TokenRequest carries the POST /token form.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Username     string
	Password     string
	Scope        string

	IPAddress string
	UserAgent string
}

// TokenResponse is the RFC 6749 Section 5.1 success body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token runs the /token half of the state machine.
func (e *Engine) Token(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := e.registry.LookupClient(req.ClientID)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrInvalidClient, "unknown client")
	}
	if !verifyClientSecret(client, req.ClientSecret) {
		return nil, oauth.NewError(oauth.ErrInvalidClient, "client authentication failed")
	}
	if !client.AllowsGrantType(req.GrantType) {
		return nil, oauth.NewError(oauth.ErrUnauthorizedClient, "grant type not allowed for this client")
	}

	t, err := e.registry.TenantByName(client.TenantName)
	if err != nil {
		return nil, oauth.NewError(oauth.ErrServerError, "client without tenant")
	}

	switch req.GrantType {
	case oauth.GrantAuthorizationCode:
		return e.exchangeCode(ctx, t, client, req)
	case oauth.GrantRefreshToken:
		return e.refreshGrant(ctx, t, client, req)
	case oauth.GrantPassword:
		return e.passwordGrant(ctx, t, client, req)
	default:
		return nil, oauth.NewError(oauth.ErrUnsupportedGrantType, "unsupported grant_type")
	}
}

// exchangeCode redeems an authorization code. The code is consumed before
// the redirect and PKCE checks run; a code that fails those checks is dead
// and every refresh family it ever spawned is revoked. Codes are never
// retriable (RFC 6749 Section 4.1.2).
func (e *Engine) exchangeCode(ctx context.Context, t *tenant.Tenant, client *tenant.Client, req *TokenRequest) (*TokenResponse, error) {
	rec, err := e.codes.Consume(ctx, req.Code)
	if err != nil {
		if errors.Is(err, oauth.ErrCodeConsumed) && rec != nil {
			// Replay. Everything the first redemption produced dies.
			_ = e.refresh.RevokeFamiliesByCode(ctx, rec.ID)
			e.audit.Log(ctx, audit.Event{
				Type:      audit.TypeCodeReplayed,
				Tenant:    rec.TenantName,
				Subject:   rec.Subject,
				ClientID:  req.ClientID,
				IPAddress: req.IPAddress,
			})
		}
		return nil, oauth.NewError(oauth.ErrInvalidGrant, "authorization code is invalid or expired")
	}

	fail := func(description string) (*TokenResponse, error) {
		// The code is consumed; any family spawned by a concurrent
		// redemption is revoked as well.
		_ = e.refresh.RevokeFamiliesByCode(ctx, rec.ID)
		return nil, oauth.NewError(oauth.ErrInvalidGrant, description)
	}

	if rec.ClientID != client.ID {
		return fail("authorization code was issued to another client")
	}
	if rec.RedirectURI != req.RedirectURI {
		return fail("redirect_uri does not match the authorization request")
	}
	if rec.CodeChallenge != "" {
		if !oauth.VerifyPKCE(rec.CodeChallenge, rec.CodeChallengeMethod, req.CodeVerifier) {
			return fail("code_verifier does not match code_challenge")
		}
	} else if client.PKCERequired() {
		return fail("authorization code was issued without the required code_challenge")
	}

	return e.issueTokens(ctx, t, client, issueInput{
		subject: rec.Subject,
		scope:   rec.Scope,
		claims:  rec.Claims,
		nonce:   rec.Nonce,
		codeID:  rec.ID,
	})
}

// refreshGrant rotates a refresh token. Replay of an already-rotated token
// condemns its whole family before the request fails.
func (e *Engine) refreshGrant(ctx context.Context, t *tenant.Tenant, client *tenant.Client, req *TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "refresh_token is required")
	}

	rec, err := e.refresh.Rotate(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, oauth.ErrTokenRevoked) {
			e.audit.Log(ctx, audit.Event{
				Type:      audit.TypeRefreshReplayed,
				Tenant:    t.Name,
				ClientID:  client.ID,
				IPAddress: req.IPAddress,
			})
		}
		return nil, oauth.NewError(oauth.ErrInvalidGrant, "refresh token is invalid, expired or revoked")
	}

	if rec.ClientID != client.ID || rec.TenantName != t.Name {
		// Cross-client presentation is treated as theft.
		_ = e.refresh.RevokeFamily(ctx, rec.FamilyID)
		return nil, oauth.NewError(oauth.ErrInvalidGrant, "refresh token was issued to another client")
	}

	return e.issueTokens(ctx, t, client, issueInput{
		subject:  rec.Subject,
		scope:    rec.Scope,
		claims:   rec.Claims,
		familyID: rec.FamilyID,
		parentID: rec.ID,
		codeID:   rec.CodeID,
	})
}

// passwordGrant validates credentials directly. No user agent is involved,
// so no SSO cookie is minted. Both the tenant and the client must opt in.
func (e *Engine) passwordGrant(ctx context.Context, t *tenant.Tenant, client *tenant.Client, req *TokenRequest) (*TokenResponse, error) {
	if !t.AllowPassword {
		return nil, oauth.NewError(oauth.ErrUnauthorizedClient, "password grant not enabled for this tenant")
	}
	if req.Username == "" || req.Password == "" {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "username and password are required")
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
			ClientID:  client.ID,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
		switch {
		case errors.Is(err, validator.ErrInvalidCredentials):
			return nil, oauth.NewError(oauth.ErrInvalidGrant, "invalid credentials")
		case errors.Is(err, validator.ErrRateLimited):
			return nil, oauth.NewError(oauth.ErrRateLimited, "too many attempts")
		default:
			return nil, oauth.NewError(oauth.ErrTemporarilyUnavailable, "credential validation unavailable")
		}
	}

	scope := ResolveScope(oauth.SplitScope(req.Scope), client, t)
	if len(scope) == 0 {
		return nil, oauth.NewError(oauth.ErrInvalidScope, "requested scope is not allowed")
	}

	return e.issueTokens(ctx, t, client, issueInput{
		subject: res.Subject,
		scope:   scope,
		claims:  ProjectClaims(res.Claims, scope, t.ClaimAllowList),
	})
}

type issueInput struct {
	subject  string
	scope    []string
	claims   map[string]any
	nonce    string
	codeID   string
	familyID string // continues an existing family when set
	parentID string
}

// issueTokens mints the access token, the rotated or initial refresh
// token, and the ID token when openid is in scope.
func (e *Engine) issueTokens(ctx context.Context, t *tenant.Tenant, client *tenant.Client, in issueInput) (*TokenResponse, error) {
	ttl := t.EffectiveTokenTTL()

	access, err := e.signer.IssueAccessToken(token.AccessTokenInput{
		Subject:  in.subject,
		ClientID: client.ID,
		Tenant:   t.Name,
		Scope:    oauth.JoinScope(in.scope),
		Claims:   in.claims,
		TTL:      ttl,
	})
	if err != nil {
		return nil, oauth.NewError(oauth.ErrServerError, "failed to sign access token")
	}

	now := e.now()
	rawRefresh := crypto.RandomOpaque(32)
	familyID := in.familyID
	if familyID == "" {
		familyID = uuid.NewString()
	}
	err = e.refresh.Create(ctx, &oauth.RefreshToken{
		ID:         uuid.NewString(),
		TokenHash:  crypto.HashOpaque(rawRefresh),
		FamilyID:   familyID,
		CodeID:     in.codeID,
		ClientID:   client.ID,
		TenantName: t.Name,
		Subject:    in.subject,
		Scope:      in.scope,
		Claims:     in.claims,
		ParentID:   in.parentID,
		ExpiresAt:  now.Add(t.EffectiveRefreshTTL()),
		CreatedAt:  now,
	})
	if err != nil {
		return nil, oauth.NewError(oauth.ErrServerError, "failed to store refresh token")
	}

	resp := &TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(ttl / time.Second),
		RefreshToken: rawRefresh,
		Scope:        oauth.JoinScope(in.scope),
	}

	if oauth.ContainsScope(in.scope, oauth.ScopeOpenID) {
		idToken, err := e.signer.IssueIDToken(token.AccessTokenInput{
			Subject:     in.subject,
			ClientID:    client.ID,
			Tenant:      t.Name,
			Claims:      in.claims,
			TTL:         ttl,
			Nonce:       in.nonce,
			AccessToken: access,
		})
		if err != nil {
			return nil, oauth.NewError(oauth.ErrServerError, "failed to sign id token")
		}
		resp.IDToken = idToken
	}

	eventType := audit.TypeTokenIssued
	if in.parentID != "" {
		eventType = audit.TypeTokenRefreshed
	}
	e.audit.Log(ctx, audit.Event{
		Type:     eventType,
		Tenant:   t.Name,
		Subject:  in.subject,
		ClientID: client.ID,
		Metadata: map[string]any{"scope": oauth.JoinScope(in.scope)},
	})

	return resp, nil
}
