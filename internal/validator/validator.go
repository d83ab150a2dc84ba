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

// Package validator adapts the tenant-supplied credential predicate behind
// a uniform interface. This is the only place that sees plaintext
// credentials; nothing here may log them or hand them to the HTTP layer.
package validator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// Domain errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnavailable        = errors.New("validator unavailable")
	ErrRateLimited        = errors.New("validator concurrency limit reached")
)

// Result is the outcome of a successful validation: the stable subject
// identifier plus the claims the predicate derived for the user.
type Result struct {
	Subject string
	Claims  map[string]any
}

// Validator is a tenant's credential predicate.
type Validator interface {
	// Validate checks the credentials and returns the subject and claims
	// on success, or ErrInvalidCredentials on a definite mismatch.
	Validate(ctx context.Context, username, password string) (*Result, error)
}

// Provider resolves the validator configured for a tenant.
type Provider interface {
	ForTenant(t *tenant.Tenant) (Validator, error)
}

// ConfigProvider builds validators from the tenant's ValidatorSpec. Built
// validators are cached per tenant snapshot object so the per-tenant
// concurrency cap is shared across requests; a registry snapshot swap
// produces fresh tenant pointers and thereby fresh validators.
type ConfigProvider struct {
	guard GuardConfig
	cache sync.Map // *tenant.Tenant -> Validator
}

// NewConfigProvider creates a provider with the given guard configuration.
func NewConfigProvider(guard GuardConfig) *ConfigProvider {
	return &ConfigProvider{guard: guard}
}

// ForTenant constructs the guarded validator for a tenant.
func (p *ConfigProvider) ForTenant(t *tenant.Tenant) (Validator, error) {
	if cached, ok := p.cache.Load(t); ok {
		return cached.(Validator), nil
	}

	var v Validator
	var err error

	switch t.Validator.Kind {
	case "static":
		v, err = NewStatic(t.Validator.Users)
	case "script":
		v, err = NewScript(t.Validator.Rules)
	default:
		return nil, fmt.Errorf("tenant %q: unknown validator kind %q", t.Name, t.Validator.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("tenant %q: %w", t.Name, err)
	}

	guarded := Guard(v, p.guard)
	actual, _ := p.cache.LoadOrStore(t, guarded)
	return actual.(Validator), nil
}
