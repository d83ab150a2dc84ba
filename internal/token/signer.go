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

// Package token issues and verifies the signed JWTs of the server: access
// tokens, ID tokens, and the login challenge / SSO session tokens the flow
// layer embeds in cookies and forms.
package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signing errors
var (
	ErrNoKeyMaterial  = errors.New("no signing key material configured")
	ErrTTLCeiling     = errors.New("token lifetime exceeds ceiling")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongAudience  = errors.New("token audience mismatch")
	ErrWrongIssuer    = errors.New("token issuer mismatch")
	ErrIssuedInFuture = errors.New("token issued in the future")
)

// Lifetime ceilings. The encoder refuses tokens that outlive them
// regardless of tenant configuration.
const (
	MaxAccessTokenTTL = 24 * time.Hour
	MaxIDTokenTTL     = 24 * time.Hour

	// ClockSkew is the tolerated difference between the issuing and the
	// verifying clock when checking iat.
	ClockSkew = 60 * time.Second
)

// Token type discriminators. Everything the server signs shares one key,
// so every artifact carries a typ claim and consumers must check it; an
// SSO cookie or login challenge presented as a bearer token dies on the
// mismatch.
const (
	TypeAccessToken = "access_token"
	TypeIDToken     = "id_token"
)

// Signer signs and verifies the server's JWTs. The algorithm is selected by
// key material: an RSA private key enables RS256, otherwise the shared HMAC
// secret is used with HS256. Verification accepts exactly the configured
// algorithm and nothing else; alg "none" is rejected by construction.
type Signer struct {
	issuer string
	secret []byte
	rsaKey *rsa.PrivateKey
	kid    string
	now    func() time.Time
}

// NewSigner creates an HS256 signer from a shared secret.
func NewSigner(issuer string, secret []byte) (*Signer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: HMAC secret must be at least 32 bytes", ErrNoKeyMaterial)
	}
	return &Signer{issuer: issuer, secret: secret, now: time.Now}, nil
}

// NewRSASigner creates an RS256 signer from a PEM encoded RSA private key.
// The key id is a stable thumbprint of the public modulus so JWKS consumers
// can pin it across restarts.
func NewRSASigner(issuer string, keyPEM []byte) (*Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrNoKeyMaterial)
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA key: %w", err)
		}
		key = k
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: PKCS#8 key is not RSA", ErrNoKeyMaterial)
		}
		key = rsaKey
	default:
		return nil, fmt.Errorf("%w: unsupported PEM block %q", ErrNoKeyMaterial, block.Type)
	}

	hash := sha256.Sum256(key.PublicKey.N.Bytes())
	kid := base64.RawURLEncoding.EncodeToString(hash[:16])

	return &Signer{issuer: issuer, rsaKey: key, kid: kid, now: time.Now}, nil
}

// Issuer returns the configured issuer URL.
func (s *Signer) Issuer() string { return s.issuer }

// Algorithm returns the JWA name of the configured signing algorithm.
func (s *Signer) Algorithm() string {
	if s.rsaKey != nil {
		return "RS256"
	}
	return "HS256"
}

func (s *Signer) method() jwt.SigningMethod {
	if s.rsaKey != nil {
		return jwt.SigningMethodRS256
	}
	return jwt.SigningMethodHS256
}

func (s *Signer) signingKey() any {
	if s.rsaKey != nil {
		return s.rsaKey
	}
	return s.secret
}

func (s *Signer) verifyKey(t *jwt.Token) (any, error) {
	if t.Method.Alg() != s.Algorithm() {
		return nil, fmt.Errorf("%w: unexpected signing method %s", ErrTokenInvalid, t.Method.Alg())
	}
	if s.rsaKey != nil {
		return &s.rsaKey.PublicKey, nil
	}
	return s.secret, nil
}

// AccessTokenInput carries everything an access or ID token needs.
type AccessTokenInput struct {
	Subject  string
	ClientID string
	Tenant   string
	Scope    string
	Claims   map[string]any
	TTL      time.Duration

	// ID token only
	Nonce       string
	AccessToken string // for at_hash
}

// IssueAccessToken signs an access token. The encoder refuses lifetimes
// beyond MaxAccessTokenTTL.
func (s *Signer) IssueAccessToken(in AccessTokenInput) (string, error) {
	if in.TTL <= 0 || in.TTL > MaxAccessTokenTTL {
		return "", fmt.Errorf("%w: access token ttl %s", ErrTTLCeiling, in.TTL)
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":    s.issuer,
		"typ":    TypeAccessToken,
		"sub":    in.Subject,
		"aud":    in.ClientID,
		"iat":    now.Unix(),
		"exp":    now.Add(in.TTL).Unix(),
		"scope":  in.Scope,
		"tenant": in.Tenant,
	}
	for k, v := range in.Claims {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}

	return s.sign(claims)
}

// IssueIDToken signs an ID token (OIDC Core Section 2). The nonce is echoed
// when the authorize request supplied one, and at_hash binds the token to
// the access token it was issued alongside (OIDC Core Section 3.1.3.6).
func (s *Signer) IssueIDToken(in AccessTokenInput) (string, error) {
	if in.TTL <= 0 || in.TTL > MaxIDTokenTTL {
		return "", fmt.Errorf("%w: id token ttl %s", ErrTTLCeiling, in.TTL)
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss":    s.issuer,
		"typ":    TypeIDToken,
		"sub":    in.Subject,
		"aud":    in.ClientID,
		"iat":    now.Unix(),
		"exp":    now.Add(in.TTL).Unix(),
		"tenant": in.Tenant,
	}
	if in.Nonce != "" {
		claims["nonce"] = in.Nonce
	}
	if in.AccessToken != "" {
		// at_hash is the base64url encoding of the left-most half of the
		// SHA-256 hash of the access token.
		h := sha256.Sum256([]byte(in.AccessToken))
		claims["at_hash"] = base64.RawURLEncoding.EncodeToString(h[:len(h)/2])
	}
	for k, v := range in.Claims {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}

	return s.sign(claims)
}

// SignClaims signs an arbitrary claim set with the server key. Used for the
// login challenge and SSO session tokens, which are server-internal and
// therefore carry whatever claims the flow layer needs.
func (s *Signer) SignClaims(claims jwt.MapClaims) (string, error) {
	return s.sign(claims)
}

func (s *Signer) sign(claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(s.method(), claims)
	if s.kid != "" {
		tok.Header["kid"] = s.kid
	}
	signed, err := tok.SignedString(s.signingKey())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and verifies a token issued by this server. It enforces the
// signature, issuer, expiry, and the iat clock skew bound; when audience is
// non-empty it must match the token's aud claim.
func (s *Signer) Verify(raw, audience string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.Algorithm()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(ClockSkew),
		jwt.WithTimeFunc(s.now),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	_, err := jwt.ParseWithClaims(raw, claims, s.verifyKey, opts...)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return nil, ErrWrongIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return nil, ErrWrongAudience
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrIssuedInFuture
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
