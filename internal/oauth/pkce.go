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
	"strings"

	"github.com/uitsmijter/uitsmijter/internal/crypto"
)

// ValidChallengeMethod reports whether the code_challenge_method is one the
// server supports. The empty method is accepted at /authorize only when no
// challenge was supplied at all.
func ValidChallengeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case ChallengeMethodS256, ChallengeMethodPlain:
		return true
	}
	return false
}

// VerifyPKCE checks a code_verifier against the stored challenge
// (RFC 7636 Section 4.6). Comparisons are constant-time; the verifier is
// secret material.
func VerifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}

	switch strings.ToUpper(method) {
	case ChallengeMethodS256:
		return crypto.ConstantTimeEquals(challenge, crypto.S256Challenge(verifier))
	case ChallengeMethodPlain, "":
		return crypto.ConstantTimeEquals(challenge, verifier)
	}

	return false
}

// SplitScope splits a space-separated scope string (RFC 6749 Section 3.3)
// into its members, dropping empty fields.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// JoinScope renders a scope list back into its wire form.
func JoinScope(scope []string) string {
	return strings.Join(scope, " ")
}

// ContainsScope reports whether target is a member of scope.
func ContainsScope(scope []string, target string) bool {
	for _, s := range scope {
		if s == target {
			return true
		}
	}
	return false
}
