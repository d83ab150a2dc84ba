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

package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that opaque values are unpadded base64url and carry the requested entropy.
// Scope: Unit Test
// Security: Credential unpredictability (authorization codes, refresh tokens)
// Expected: 32 random bytes encode to 43 base64url characters without padding, and two draws differ.
func TestCrypto_RandomOpaque(t *testing.T) {
	a := RandomOpaque(32)
	b := RandomOpaque(32)

	assert.Len(t, a, 43)
	assert.False(t, strings.ContainsAny(a, "+/="), "must be base64url without padding")
	assert.NotEqual(t, a, b, "two opaque draws must not collide")
}

// TestPurpose: Verifies the PKCE S256 transform against the RFC 7636 Appendix B vector.
// Scope: Unit Test
// Security: PKCE binding (RFC 7636 Section 4.6)
// Expected: The documented verifier hashes to the documented challenge.
func TestCrypto_S256Challenge_RFC7636Vector(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	assert.Equal(t, challenge, S256Challenge(verifier))
}

func TestCrypto_DigestHex(t *testing.T) {
	// Known digests of "example.com"
	assert.Equal(t, "0caaf24ab1a0c33440c06afe99df986365b0781f", DigestHex(HashSHA1, "example.com"))
	assert.Equal(t, SHA256Hex("example.com"), DigestHex(HashSHA256, "example.com"))
	// Unknown algorithm falls back to SHA-1
	assert.Equal(t, SHA1Hex("example.com"), DigestHex("", "example.com"))
}

func TestCrypto_ConstantTimeEquals(t *testing.T) {
	assert.True(t, ConstantTimeEquals("secret", "secret"))
	assert.False(t, ConstantTimeEquals("secret", "secreT"))
	assert.False(t, ConstantTimeEquals("secret", "secret2"))
	assert.False(t, ConstantTimeEquals("", "x"))
}

func TestCrypto_HashOpaque_Deterministic(t *testing.T) {
	tok := RandomOpaque(32)
	assert.Equal(t, HashOpaque(tok), HashOpaque(tok))
	assert.NotEqual(t, HashOpaque(tok), HashOpaque(tok+"x"))
}
