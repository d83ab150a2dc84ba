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

package validator

import (
	"context"
	"fmt"
	"regexp"

	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// Script evaluates the tenant's embeddable predicate rules: regular
// expressions over username and password. The first matching rule wins and
// contributes its claims. The predicate never sees the HTTP request.
type Script struct {
	rules []compiledRule
}

type compiledRule struct {
	username *regexp.Regexp
	password *regexp.Regexp
	claims   map[string]any
}

// NewScript compiles the tenant's rules. Compilation failures surface at
// snapshot build time, not at login time.
func NewScript(rules []tenant.ScriptRule) (*Script, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("script validator requires at least one rule")
	}

	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		ur, err := regexp.Compile(r.UsernamePattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid username pattern: %w", i, err)
		}
		pr, err := regexp.Compile(r.PasswordPattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid password pattern: %w", i, err)
		}
		compiled = append(compiled, compiledRule{username: ur, password: pr, claims: r.Claims})
	}

	return &Script{rules: compiled}, nil
}

// Validate runs the rules in order; the subject of a match is the
// username itself.
func (s *Script) Validate(ctx context.Context, username, password string) (*Result, error) {
	for _, r := range s.rules {
		if r.username.MatchString(username) && r.password.MatchString(password) {
			return &Result{Subject: username, Claims: r.claims}, nil
		}
	}
	return nil, ErrInvalidCredentials
}
