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

// Package crypto wraps the platform crypto primitives the protocol engine
// depends on: random opaque values, the responsibility-domain digests, the
// PKCE S256 transform, and constant-time comparison for secret material.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Hash algorithm selectors for the responsibility-domain digest.
const (
	HashSHA1   = "sha1"
	HashSHA256 = "sha256"
)

// RandomOpaque returns n cryptographically random bytes encoded as
// base64url without padding. Authorization codes and refresh tokens are
// 32-byte (256-bit) opaques.
func RandomOpaque(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; if it does the
		// process must not continue issuing credentials.
		panic(fmt.Sprintf("crypto: rand.Read: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// SHA1Hex returns the hex-encoded SHA-1 digest of s.
func SHA1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA256Hex returns the hex-encoded SHA-256 digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DigestHex computes the hex digest of s using the selected algorithm.
// SHA-1 is the wire-compatible default; the digest is public (it names a
// cookie) and is not a security boundary.
func DigestHex(alg, s string) string {
	if alg == HashSHA256 {
		return SHA256Hex(s)
	}
	return SHA1Hex(s)
}

// S256Challenge computes the PKCE S256 transform of a code verifier
// (RFC 7636 Section 4.2): base64url(SHA256(verifier)) without padding.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashOpaque returns the base64url-encoded SHA-256 digest of an opaque
// token value. Stores keep digests, never raw credentials.
func HashOpaque(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ConstantTimeEquals compares two strings without leaking the position of
// the first differing byte. Used for client secrets, PKCE verifiers and
// code comparisons.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HMACSHA256 computes the HMAC-SHA256 tag of data under key.
func HMACSHA256(key []byte, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
