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
)

// LogoutRequest carries GET /logout parameters.
type LogoutRequest struct {
	Host                  string
	PostLogoutRedirectURI string

	Request *http.Request
}

// LogoutResult clears the SSO cookie and optionally redirects.
type LogoutResult struct {
	Cookie      *http.Cookie
	RedirectURL string
}

// Logout revokes the SSO session of the current responsibility domain. A
// post_logout_redirect_uri is followed only when it is an exact member of
// some tenant client's redirect allow-list; anything else renders the
// plain logged-out page.
func (e *Engine) Logout(ctx context.Context, req *LogoutRequest) (*LogoutResult, error) {
	t, err := e.registry.LookupTenant(req.Host)
	if err != nil {
		return nil, err
	}

	respHash := e.ResponsibilityHash(t, req.Host)
	if respHash == "" {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "no responsibility domain for this request")
	}

	result := &LogoutResult{Cookie: e.sessions.Revoke(respHash, t)}

	if req.Request != nil {
		if sess, err := e.sessions.Parse(req.Request, respHash); err == nil && sess.TenantName == t.Name {
			e.audit.Log(ctx, audit.Event{
				Type:    audit.TypeLogout,
				Tenant:  t.Name,
				Subject: sess.Subject,
			})
		}
	}

	if uri := req.PostLogoutRedirectURI; uri != "" {
		for _, client := range e.registry.ClientsOfTenant(t.Name) {
			if client.ValidateRedirectURI(uri) {
				result.RedirectURL = uri
				break
			}
		}
	}

	return result, nil
}

// Revoke implements RFC 7009: a client hands back a refresh token and the
// token's family dies. Unknown tokens succeed silently per Section 2.2;
// revocation must not be usable as an oracle.
func (e *Engine) Revoke(ctx context.Context, req *TokenRequest) error {
	client, err := e.registry.LookupClient(req.ClientID)
	if err != nil {
		return oauth.NewError(oauth.ErrInvalidClient, "unknown client")
	}
	if !verifyClientSecret(client, req.ClientSecret) {
		return oauth.NewError(oauth.ErrInvalidClient, "client authentication failed")
	}

	rec, err := e.refresh.Get(ctx, req.RefreshToken)
	if err != nil || rec.ClientID != client.ID {
		return nil
	}

	if err := e.refresh.RevokeFamily(ctx, rec.FamilyID); err != nil {
		return oauth.NewError(oauth.ErrServerError, "failed to revoke token")
	}

	e.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRevoked,
		Tenant:   rec.TenantName,
		Subject:  rec.Subject,
		ClientID: client.ID,
	})
	return nil
}
