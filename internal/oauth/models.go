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

package oauth

import (
	"context"
	"errors"
	"time"
)

// Domain errors (internal). The transport layer maps these onto the
// RFC 6749 wire labels in errors.go.
var (
	ErrCodeNotFound     = errors.New("authorization code not found")
	ErrCodeConsumed     = errors.New("authorization code already consumed")
	ErrCodeExpired      = errors.New("authorization code expired")
	ErrTokenNotFound    = errors.New("refresh token not found")
	ErrTokenRevoked     = errors.New("refresh token revoked")
	ErrTokenExpired     = errors.New("refresh token expired")
	ErrFamilyRevoked    = errors.New("refresh token family revoked")
	ErrUnsupportedGrant = errors.New("grant type not supported")
)

// Grant type identifiers (RFC 6749 Section 4).
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantPassword          = "password"
)

// ResponseTypeCode is the only supported response_type.
const ResponseTypeCode = "code"

// PKCE code challenge methods (RFC 7636 Section 4.3).
const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "PLAIN"
)

// ScopeOpenID gates ID token issuance.
const ScopeOpenID = "openid"

// AuthorizationCode is the server-side record behind an opaque code. The
// code value itself is 32 random bytes transmitted as base64url; only the
// record lives in the store. Consumed records are retained until expiry so
// a replay can be attributed to the family it spawned.
type AuthorizationCode struct {
	ID                  string
	Code                string
	ClientID            string
	TenantName          string
	Subject             string
	RedirectURI         string
	Scope               []string
	Claims              map[string]any
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string
	State               string
	ExpiresAt           time.Time
	Consumed            bool
	CreatedAt           time.Time
}

// IsExpired checks if the authorization code has expired
func (c *AuthorizationCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// RefreshToken is the server-side record behind an opaque refresh token.
// Every token belongs to a family created at the initial exchange; rotation
// links successors via ParentID, and a replayed (already revoked) token
// condemns the entire family.
type RefreshToken struct {
	ID         string
	TokenHash  string
	FamilyID   string
	CodeID     string
	ClientID   string
	TenantName string
	Subject    string
	Scope      []string
	Claims     map[string]any
	ParentID   string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
}

// IsExpired checks if the refresh token has expired
func (r *RefreshToken) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// CodeStore is the short-TTL at-most-once store of pending authorizations.
// Consume is linearizable: concurrent calls with the same code observe
// exactly one success.
type CodeStore interface {
	// Put inserts a pending authorization.
	Put(ctx context.Context, code *AuthorizationCode) error

	// Consume atomically flips the consumed flag and returns the record.
	// A second consumption returns the record together with
	// ErrCodeConsumed so the caller can revoke descendants.
	Consume(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteExpired drops expired records.
	DeleteExpired(ctx context.Context) error
}

// RefreshStore is the rotation-aware refresh token store.
type RefreshStore interface {
	// Create inserts the initial token of a new family.
	Create(ctx context.Context, token *RefreshToken) error

	// Rotate presents a raw token value: on success the presented token is
	// atomically revoked and its record returned so the caller can mint the
	// successor. Presenting an already-revoked token revokes the whole
	// family and returns ErrTokenRevoked.
	Rotate(ctx context.Context, raw string) (*RefreshToken, error)

	// Get looks up a token by its raw value without mutating it.
	Get(ctx context.Context, raw string) (*RefreshToken, error)

	// RevokeFamily revokes every token of a family.
	RevokeFamily(ctx context.Context, familyID string) error

	// RevokeFamiliesByCode revokes all families descended from an
	// authorization code record.
	RevokeFamiliesByCode(ctx context.Context, codeID string) error

	// DeleteExpired drops expired records.
	DeleteExpired(ctx context.Context) error
}
