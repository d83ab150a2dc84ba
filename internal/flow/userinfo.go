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

	"github.com/uitsmijter/uitsmijter/internal/oauth"
	"github.com/uitsmijter/uitsmijter/internal/token"
)

// UserInfo verifies a bearer access token and returns the claims it is
// entitled to: sub always, plus what the token's scope projected at issue
// time. Verification failures surface as invalid_token to the transport
// layer, which renders the WWW-Authenticate challenge.
func (e *Engine) UserInfo(ctx context.Context, bearer string) (map[string]any, error) {
	if bearer == "" {
		return nil, oauth.NewError(oauth.ErrInvalidRequest, "missing bearer token")
	}

	claims, err := e.signer.Verify(bearer, "")
	if err != nil {
		return nil, oauth.NewError(oauth.ErrInvalidGrant, "access token is invalid or expired")
	}

	// The server key signs more than access tokens. SSO cookies, login
	// challenges and ID tokens verify just as well, so only the typ claim
	// separates a bearer credential from a server-internal artifact.
	if stringClaim(claims, "typ") != token.TypeAccessToken {
		return nil, oauth.NewError(oauth.ErrInvalidGrant, "token is not an access token")
	}
	if _, err := e.registry.LookupClient(stringClaim(claims, "aud")); err != nil {
		return nil, oauth.NewError(oauth.ErrInvalidGrant, "token audience is not a registered client")
	}

	out := map[string]any{
		"sub": claims["sub"],
	}

	// The access token already carries only the projected claims; echo
	// everything that is not a registered JWT or protocol claim.
	reserved := map[string]bool{
		"iss": true, "sub": true, "aud": true, "exp": true, "iat": true,
		"nbf": true, "jti": true, "typ": true, "scope": true, "tenant": true,
	}
	for name, value := range claims {
		if !reserved[name] {
			out[name] = value
		}
	}

	return out, nil
}
