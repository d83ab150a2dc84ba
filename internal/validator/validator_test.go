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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// TestPurpose: Validates the static allow-list validator against argon2id hashes.
// Scope: Unit Test
// Security: Credential verification; unknown users and wrong passwords are indistinguishable failures.
// Expected: Correct password yields subject+claims; wrong password and unknown user yield ErrInvalidCredentials.
func TestValidator_Static(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	v, err := NewStatic(map[string]tenant.StaticUser{
		"alice@acme.test": {
			PasswordHash: hash,
			Subject:      "alice",
			Claims:       map[string]any{"email": "alice@acme.test", "email_verified": true},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()

	res, err := v.Validate(ctx, "alice@acme.test", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Subject)
	assert.Equal(t, true, res.Claims["email_verified"])

	_, err = v.Validate(ctx, "alice@acme.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = v.Validate(ctx, "mallory@acme.test", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidator_Static_SubjectDefaultsToUsername(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)

	v, err := NewStatic(map[string]tenant.StaticUser{"bob": {PasswordHash: hash}})
	require.NoError(t, err)

	res, err := v.Validate(context.Background(), "bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Subject)
}

// TestPurpose: Validates the regex-rule script validator.
// Scope: Unit Test
// Expected: First matching rule wins and contributes its claims; no match fails.
func TestValidator_Script(t *testing.T) {
	v, err := NewScript([]tenant.ScriptRule{
		{
			UsernamePattern: `^admin@`,
			PasswordPattern: `^.{12,}$`,
			Claims:          map[string]any{"role": "admin"},
		},
		{
			UsernamePattern: `@acme\.test$`,
			PasswordPattern: `^.{8,}$`,
			Claims:          map[string]any{"email_verified": true},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()

	res, err := v.Validate(ctx, "admin@acme.test", "a-long-password")
	require.NoError(t, err)
	assert.Equal(t, "admin", res.Claims["role"], "first matching rule wins")

	res, err = v.Validate(ctx, "carol@acme.test", "password1")
	require.NoError(t, err)
	assert.Equal(t, true, res.Claims["email_verified"])

	_, err = v.Validate(ctx, "carol@acme.test", "short")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidator_Script_InvalidPatternFailsAtBuild(t *testing.T) {
	_, err := NewScript([]tenant.ScriptRule{{UsernamePattern: `([`, PasswordPattern: `.`}})
	require.Error(t, err)
}

type slowValidator struct {
	delay time.Duration
}

func (s *slowValidator) Validate(ctx context.Context, username, password string) (*Result, error) {
	select {
	case <-time.After(s.delay):
		return &Result{Subject: username}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TestPurpose: Validates the guard's timeout behavior.
// Scope: Unit Test
// Security: A slow tenant validator must not stall the engine (DoS protection).
// Expected: A call exceeding the timeout fails with ErrUnavailable.
func TestValidator_Guard_Timeout(t *testing.T) {
	v := Guard(&slowValidator{delay: time.Second}, GuardConfig{Timeout: 20 * time.Millisecond, MaxConcurrency: 4})

	_, err := v.Validate(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, ErrUnavailable)
}

// TestPurpose: Validates the guard's fail-fast concurrency cap.
// Scope: Unit Test
// Security: Excess concurrent validations fail fast instead of queueing.
// Expected: With the cap saturated by slow calls, an additional call fails with ErrRateLimited.
func TestValidator_Guard_ConcurrencyCap(t *testing.T) {
	v := Guard(&slowValidator{delay: 200 * time.Millisecond}, GuardConfig{Timeout: time.Second, MaxConcurrency: 2})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = v.Validate(context.Background(), "alice", "pw")
		}()
	}

	// Let the two in-flight calls take their slots.
	time.Sleep(50 * time.Millisecond)

	_, err := v.Validate(context.Background(), "bob", "pw")
	assert.ErrorIs(t, err, ErrRateLimited)

	wg.Wait()
}

func TestValidator_ConfigProvider(t *testing.T) {
	p := NewConfigProvider(DefaultGuardConfig())

	ten := &tenant.Tenant{
		Name: "acme",
		Validator: tenant.ValidatorSpec{
			Kind: "script",
			Rules: []tenant.ScriptRule{
				{UsernamePattern: `.`, PasswordPattern: `.`},
			},
		},
	}

	v1, err := p.ForTenant(ten)
	require.NoError(t, err)
	v2, err := p.ForTenant(ten)
	require.NoError(t, err)
	assert.Same(t, v1.(*guarded), v2.(*guarded), "validators are cached per tenant snapshot")

	_, err = p.ForTenant(&tenant.Tenant{Name: "bad", Validator: tenant.ValidatorSpec{Kind: "ldap"}})
	assert.Error(t, err)
}
