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
	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// scopeClaims maps a scope value to the claims it unlocks in tokens and at
// the userinfo endpoint (OIDC Core Section 5.4).
var scopeClaims = map[string][]string{
	"email":   {"email", "email_verified"},
	"profile": {"name", "given_name", "family_name", "picture", "preferred_username"},
}

// ResolveScope computes the granted scope: the requested scope intersected
// with the client's and the tenant's allow-lists. An empty allow-list on
// either side means "no restriction". An empty result is an error at the
// call site (invalid_scope); an empty request resolves to the client's
// full allowance.
func ResolveScope(requested []string, c *tenant.Client, t *tenant.Tenant) []string {
	allowed := func(scope string) bool {
		return inList(scope, c.AllowedScopes) && inList(scope, t.AllowedScopes)
	}

	if len(requested) == 0 {
		// Default to everything the client may have.
		base := c.AllowedScopes
		if len(base) == 0 {
			base = t.AllowedScopes
		}
		var out []string
		for _, s := range base {
			if allowed(s) {
				out = append(out, s)
			}
		}
		return out
	}

	var out []string
	for _, s := range requested {
		if allowed(s) {
			out = append(out, s)
		}
	}
	return out
}

// ProjectClaims filters the validator's claims down to what the granted
// scope unlocks and the tenant's claim allow-list permits. An empty
// allow-list permits nothing; tenants opt into every claim they leak.
func ProjectClaims(claims map[string]any, scope []string, allowList []string) map[string]any {
	if len(claims) == 0 || len(allowList) == 0 {
		return map[string]any{}
	}

	unlocked := make(map[string]bool)
	for _, s := range scope {
		for _, c := range scopeClaims[s] {
			unlocked[c] = true
		}
	}

	out := make(map[string]any)
	for name, value := range claims {
		if !unlocked[name] {
			continue
		}
		if !inList(name, allowList) {
			continue
		}
		out[name] = value
	}
	return out
}

// FilterClaims applies only the tenant allow-list, without scope
// projection. The result is what an SSO session may carry: scope varies
// per authorize request, the allow-list does not. An empty allow-list
// permits nothing.
func FilterClaims(claims map[string]any, allowList []string) map[string]any {
	out := make(map[string]any)
	if len(allowList) == 0 {
		return out
	}
	for name, value := range claims {
		if inList(name, allowList) {
			out[name] = value
		}
	}
	return out
}

func inList(s string, list []string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
