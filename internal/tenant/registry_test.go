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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return NewSnapshot(
		[]*Tenant{
			{Name: "acme", Hosts: []string{"login.acme.test", "sso.acme.test"}},
			{Name: "initech", Hosts: []string{"auth.initech.test"}, SilentLogin: true},
		},
		[]*Client{
			{ID: "app1", TenantName: "acme", RedirectURIs: []string{"https://app1.acme.test/cb"}},
			{ID: "orphan", TenantName: "nobody"},
		},
	)
}

// TestPurpose: Validates host-based tenant resolution including case and port normalization.
// Scope: Unit Test
// Security: Tenant isolation starts at host routing
// Expected: Known hosts resolve, port suffixes are stripped, unknown hosts fail with ErrTenantNotFound.
func TestTenant_Registry_LookupTenant(t *testing.T) {
	reg := NewRegistry()
	reg.Swap(testSnapshot())

	got, err := reg.LookupTenant("login.acme.test")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)

	got, err = reg.LookupTenant("LOGIN.ACME.TEST:8443")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)

	_, err = reg.LookupTenant("evil.test")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

// TestPurpose: Validates that clients referencing an unknown tenant are dropped at snapshot build time.
// Scope: Unit Test
// Security: No client can exist outside a tenant boundary
// Expected: app1 resolves; the orphan client does not.
func TestTenant_Registry_LookupClient_OrphanDropped(t *testing.T) {
	reg := NewRegistry()
	reg.Swap(testSnapshot())

	c, err := reg.LookupClient("app1")
	require.NoError(t, err)
	assert.Equal(t, "acme", c.TenantName)

	_, err = reg.LookupClient("orphan")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

// TestPurpose: Validates that snapshot swaps are atomic under concurrent readers.
// Scope: Unit Test (race-detector sensitive)
// Expected: Readers always observe a complete snapshot, never a partial one.
func TestTenant_Registry_ConcurrentSwap(t *testing.T) {
	reg := NewRegistry()
	reg.Swap(testSnapshot())

	var wg sync.WaitGroup
	stop := time.After(50 * time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				reg.Swap(testSnapshot())
			}
		}
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if ten, err := reg.LookupTenant("auth.initech.test"); err == nil {
					assert.Equal(t, "initech", ten.Name)
					assert.True(t, ten.SilentLogin)
				}
			}
		}()
	}
	wg.Wait()
}

func TestTenant_Client_Validation(t *testing.T) {
	c := &Client{
		ID:           "app1",
		RedirectURIs: []string{"https://app1/cb"},
	}

	assert.True(t, c.IsPublic())
	assert.True(t, c.PKCERequired(), "public clients always require PKCE")
	assert.True(t, c.ValidateRedirectURI("https://app1/cb"))
	assert.False(t, c.ValidateRedirectURI("https://app1/cb/"), "redirect match is exact")
	assert.False(t, c.ValidateRedirectURI("https://evil/"))

	assert.True(t, c.AllowsGrantType("authorization_code"))
	assert.False(t, c.AllowsGrantType("password"), "password grant needs explicit opt-in")

	c.AllowedGrantTypes = []string{"authorization_code", "password"}
	assert.True(t, c.AllowsGrantType("password"))
}

func TestTenant_TTLClamping(t *testing.T) {
	ten := &Tenant{
		TokenTTL:   48 * time.Hour,
		RefreshTTL: 365 * 24 * time.Hour,
		CodeTTL:    10 * time.Minute,
		SessionTTL: 100 * time.Hour,
	}

	assert.Equal(t, MaxTokenTTL, ten.EffectiveTokenTTL())
	assert.Equal(t, MaxRefreshTTL, ten.EffectiveRefreshTTL())
	assert.Equal(t, MaxCodeTTL, ten.EffectiveCodeTTL())
	assert.Equal(t, MaxSessionTTL, ten.EffectiveSessionTTL())

	// Zero values fall back to defaults below the ceilings.
	def := &Tenant{}
	assert.Equal(t, time.Hour, def.EffectiveTokenTTL())
	assert.Equal(t, 30*time.Second, def.EffectiveCodeTTL())
}
