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

package tenant

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrClientNotFound = errors.New("client not found")
)

// TTL ceilings. The token codec refuses tokens beyond these regardless of
// per-tenant configuration.
const (
	MaxTokenTTL   = 24 * time.Hour
	MaxRefreshTTL = 90 * 24 * time.Hour
	MaxCodeTTL    = 60 * time.Second
	MaxSessionTTL = 8 * time.Hour
)

// Informations carries the optional imprint/privacy/register URLs rendered
// on the tenant's login page.
type Informations struct {
	Imprint  string `yaml:"imprint,omitempty" json:"imprint,omitempty"`
	Privacy  string `yaml:"privacy,omitempty" json:"privacy,omitempty"`
	Register string `yaml:"register,omitempty" json:"register,omitempty"`
}

// StaticUser is one entry of a static allow-list validator: an argon2id
// password hash plus the claims attached to a successful login.
type StaticUser struct {
	PasswordHash string         `yaml:"password_hash" json:"password_hash"`
	Subject      string         `yaml:"subject,omitempty" json:"subject,omitempty"`
	Claims       map[string]any `yaml:"claims,omitempty" json:"claims,omitempty"`
}

// ScriptRule is one predicate of a script validator: regular expressions
// over username and password plus the claims derived on match.
type ScriptRule struct {
	UsernamePattern string         `yaml:"username_pattern" json:"username_pattern"`
	PasswordPattern string         `yaml:"password_pattern" json:"password_pattern"`
	Claims          map[string]any `yaml:"claims,omitempty" json:"claims,omitempty"`
}

// ValidatorSpec references the credential predicate a tenant supplies.
// Exactly one concrete kind is configured per tenant.
type ValidatorSpec struct {
	Kind  string                `yaml:"kind" json:"kind"` // static | script
	Users map[string]StaticUser `yaml:"users,omitempty" json:"users,omitempty"`
	Rules []ScriptRule          `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Tenant is the identity of a customer boundary. Immutable at runtime;
// snapshots are reloaded out-of-band by a registry source.
type Tenant struct {
	Name           string        `yaml:"name" json:"name"`
	Hosts          []string      `yaml:"hosts" json:"hosts"`
	SilentLogin    bool          `yaml:"silent_login" json:"silent_login"`
	AllowPassword  bool          `yaml:"allow_password_grant" json:"allow_password_grant"`
	Informations   *Informations `yaml:"informations,omitempty" json:"informations,omitempty"`
	Validator      ValidatorSpec `yaml:"validator" json:"validator"`
	AllowedScopes  []string      `yaml:"allowed_scopes" json:"allowed_scopes"`
	ClaimAllowList []string      `yaml:"claim_allow_list" json:"claim_allow_list"`
	TokenTTL       time.Duration `yaml:"token_ttl" json:"token_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl" json:"refresh_ttl"`
	CodeTTL        time.Duration `yaml:"code_ttl" json:"code_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl" json:"session_ttl"`
	CookieDomain   string        `yaml:"cookie_domain,omitempty" json:"cookie_domain,omitempty"`
}

// Client is an OAuth relying party registered under one tenant.
// Immutable at runtime.
type Client struct {
	ID                string   `yaml:"id" json:"id"`
	SecretHash        string   `yaml:"secret_hash,omitempty" json:"-"`
	RedirectURIs      []string `yaml:"redirect_uris" json:"redirect_uris"`
	AllowedScopes     []string `yaml:"allowed_scopes" json:"allowed_scopes"`
	TenantName        string   `yaml:"-" json:"tenant_name"`
	RequirePKCE       bool     `yaml:"require_pkce" json:"require_pkce"`
	AllowedGrantTypes []string `yaml:"allowed_grant_types" json:"allowed_grant_types"`
}

// IsPublic reports whether the client has no secret. Public clients must
// use PKCE.
func (c *Client) IsPublic() bool {
	return c.SecretHash == ""
}

// PKCERequired reports whether the client must present a PKCE challenge.
func (c *Client) PKCERequired() bool {
	return c.IsPublic() || c.RequirePKCE
}

// ValidateRedirectURI checks the redirect URI against the exact-match
// allow-list (RFC 6749 Section 3.1.2).
func (c *Client) ValidateRedirectURI(redirectURI string) bool {
	for _, uri := range c.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// AllowsGrantType reports whether the grant type is permitted for this
// client. An unset list permits the authorization_code and refresh_token
// grants only.
func (c *Client) AllowsGrantType(grantType string) bool {
	grants := c.AllowedGrantTypes
	if len(grants) == 0 {
		grants = []string{"authorization_code", "refresh_token"}
	}
	for _, gt := range grants {
		if gt == grantType {
			return true
		}
	}
	return false
}

// EffectiveTokenTTL clamps the tenant's access token TTL to the ceiling.
func (t *Tenant) EffectiveTokenTTL() time.Duration {
	return clamp(t.TokenTTL, time.Hour, MaxTokenTTL)
}

// EffectiveRefreshTTL clamps the tenant's refresh token TTL to the ceiling.
func (t *Tenant) EffectiveRefreshTTL() time.Duration {
	return clamp(t.RefreshTTL, 30*24*time.Hour, MaxRefreshTTL)
}

// EffectiveCodeTTL clamps the tenant's authorization code TTL to 60s.
func (t *Tenant) EffectiveCodeTTL() time.Duration {
	return clamp(t.CodeTTL, 30*time.Second, MaxCodeTTL)
}

// EffectiveSessionTTL clamps the tenant's SSO cookie TTL to 8h.
func (t *Tenant) EffectiveSessionTTL() time.Duration {
	return clamp(t.SessionTTL, 4*time.Hour, MaxSessionTTL)
}

func clamp(d, def, max time.Duration) time.Duration {
	if d <= 0 {
		d = def
	}
	if d > max {
		return max
	}
	return d
}

// MatchesHost reports whether the tenant serves the given request host.
// A port suffix on the host is ignored.
func (t *Tenant) MatchesHost(host string) bool {
	host = stripPort(host)
	for _, h := range t.Hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
