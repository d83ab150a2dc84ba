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
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
)

// challengeTTL bounds how long a rendered login page stays submittable.
const challengeTTL = 10 * time.Minute

var errChallengeInvalid = errors.New("login challenge invalid")

// LoginChallenge is the transient record written before the login page
// renders. It travels as a signed opaque `location` value posted back by
// the form, so the server stays stateless between /authorize and /login.
type LoginChallenge struct {
	TenantName          string
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	ResponseType        string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	Mode                string
}

func (e *Engine) encodeChallenge(c *LoginChallenge) (string, error) {
	now := e.now()
	return e.signer.SignClaims(jwt.MapClaims{
		"iss":    e.signer.Issuer(),
		"typ":    "login_challenge",
		"tenant": c.TenantName,
		"cid":    c.ClientID,
		"ruri":   c.RedirectURI,
		"scope":  oauth.JoinScope(c.Scope),
		"state":  c.State,
		"rt":     c.ResponseType,
		"cc":     c.CodeChallenge,
		"ccm":    c.CodeChallengeMethod,
		"nonce":  c.Nonce,
		"mode":   c.Mode,
		"iat":    now.Unix(),
		"exp":    now.Add(challengeTTL).Unix(),
	})
}

func (e *Engine) decodeChallenge(location string) (*LoginChallenge, error) {
	claims, err := e.signer.Verify(location, "")
	if err != nil {
		return nil, errChallengeInvalid
	}
	if typ, _ := claims["typ"].(string); typ != "login_challenge" {
		return nil, errChallengeInvalid
	}

	c := &LoginChallenge{
		TenantName:          stringClaim(claims, "tenant"),
		ClientID:            stringClaim(claims, "cid"),
		RedirectURI:         stringClaim(claims, "ruri"),
		Scope:               oauth.SplitScope(stringClaim(claims, "scope")),
		State:               stringClaim(claims, "state"),
		ResponseType:        stringClaim(claims, "rt"),
		CodeChallenge:       stringClaim(claims, "cc"),
		CodeChallengeMethod: stringClaim(claims, "ccm"),
		Nonce:               stringClaim(claims, "nonce"),
		Mode:                stringClaim(claims, "mode"),
	}
	if c.TenantName == "" || c.ClientID == "" || c.RedirectURI == "" {
		return nil, errChallengeInvalid
	}
	return c, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
