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

// Package system provides integration tests that run the flow engine on a
// registry loaded from a real PostgreSQL database.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
package system

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/flow"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/store/memory"
	"github.com/uitsmijter/uitsmijter/internal/store/postgres"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// testDB is the shared database connection for integration tests
var testDB *postgres.DB

// TestMain sets up and tears down the test database connection
func TestMain(m *testing.M) {
	// Skip if not integration test
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "uitsmijter"),
		Password:     getEnvOrDefault("DB_PASSWORD", "uitsmijter_dev_password"),
		Database:     getEnvOrDefault("DB_NAME", "uitsmijter"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
	})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	testDB = db

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		panic("failed to apply schema: " + err.Error())
	}

	code := m.Run()
	db.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// seedTenants installs two tenants with overlapping usernames and one
// client each, then builds an engine on the database-loaded registry.
func seedTenants(t *testing.T) *flow.Engine {
	t.Helper()
	ctx := context.Background()

	_, err := testDB.Pool().Exec(ctx, `DELETE FROM tenants WHERE name LIKE 'sys-%'`)
	require.NoError(t, err)

	_, err = testDB.Pool().Exec(ctx, `
		INSERT INTO tenants (name, hosts, silent_login, validator, allowed_scopes)
		VALUES
			('sys-acme', '["login.sys-acme.test"]', TRUE,
			 '{"kind":"script","rules":[{"username_pattern":"^alice$","password_pattern":"^acme-pass$"}]}',
			 '["openid"]'),
			('sys-globex', '["login.sys-globex.test"]', TRUE,
			 '{"kind":"script","rules":[{"username_pattern":"^alice$","password_pattern":"^globex-pass$"}]}',
			 '["openid"]')
	`)
	require.NoError(t, err)

	_, err = testDB.Pool().Exec(ctx, `
		INSERT INTO clients (id, tenant_name, redirect_uris)
		VALUES
			('sys-acme-app', 'sys-acme', '["https://app.sys-acme.test/cb"]'),
			('sys-globex-app', 'sys-globex', '["https://app.sys-globex.test/cb"]')
	`)
	require.NoError(t, err)

	snap, err := postgres.NewSnapshotSource(testDB).LoadSnapshot(ctx)
	require.NoError(t, err)

	registry := tenant.NewRegistry()
	registry.Swap(snap)

	signer, err := token.NewSigner("https://login.sys-acme.test", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	return flow.NewEngine(flow.Options{
		Registry:   registry,
		Validators: validator.NewConfigProvider(validator.DefaultGuardConfig()),
		Codes:      memory.NewCodeStore(),
		Refresh:    memory.NewRefreshStore(),
		Sessions:   session.NewManager(signer, true),
		Signer:     signer,
	})
}

func authorizeReq(host, clientID, redirectURI string) *flow.AuthorizeRequest {
	return &flow.AuthorizeRequest{
		Host:         host,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		ResponseType: "code",
		Scope:        "openid",
		State:        "sys-state",
		Request:      httptest.NewRequest(http.MethodGet, "https://"+host+"/authorize", nil),
	}
}

// TestPurpose: Validates that database-loaded tenants cannot use each other's clients.
// Scope: System Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: A client id of another tenant is rejected as unknown.
// Test Case ID: TEN-01
// Metadata:
//   - Category: Tenant
//   - Priority: High
//   - Tags: multi-tenancy, isolation
func TestTenantIsolation_CrossTenantClient(t *testing.T) {
	engine := seedTenants(t)
	ctx := context.Background()

	_, err := engine.Authorize(ctx, authorizeReq("login.sys-acme.test", "sys-globex-app", "https://app.sys-globex.test/cb"))
	require.Error(t, err)
	var oerr *oauth.Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, oauth.ErrInvalidClient, oerr.Code)
}

// TestPurpose: Validates that overlapping usernames stay separate credential spaces per tenant.
// Scope: System Integration Test
// Security: Credential Isolation (CWE-287)
// Expected: alice's acme password fails on globex and vice versa.
// Test Case ID: TEN-02
// Metadata:
//   - Category: Tenant
//   - Priority: High
//   - Tags: multi-tenancy, credentials
func TestTenantIsolation_CredentialSpaces(t *testing.T) {
	engine := seedTenants(t)
	ctx := context.Background()

	res, err := engine.Authorize(ctx, authorizeReq("login.sys-acme.test", "sys-acme-app", "https://app.sys-acme.test/cb"))
	require.NoError(t, err)
	require.NotNil(t, res.Login)

	lres, err := engine.Login(ctx, &flow.LoginRequest{
		Host:     "login.sys-acme.test",
		Location: res.Login.Location,
		Username: "alice",
		Password: "acme-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, lres.RedirectURL, "correct tenant password logs in")

	res, err = engine.Authorize(ctx, authorizeReq("login.sys-acme.test", "sys-acme-app", "https://app.sys-acme.test/cb"))
	require.NoError(t, err)
	wrong, err := engine.Login(ctx, &flow.LoginRequest{
		Host:     "login.sys-acme.test",
		Location: res.Login.Location,
		Username: "alice",
		Password: "globex-pass",
	})
	require.NoError(t, err)
	require.NotNil(t, wrong.Login, "globex password must not work on acme")
	assert.NotEmpty(t, wrong.Login.ErrorMessage)
}

// TestPurpose: Validates that an SSO session of one tenant is never honored by another.
// Scope: System Integration Test
// Security: Session Fixation / Cross-tenant SSO (CWE-384)
// Expected: the acme cookie does not silence globex's login page.
// Test Case ID: TEN-03
// Metadata:
//   - Category: Tenant
//   - Priority: High
//   - Tags: multi-tenancy, session, sso
func TestTenantIsolation_SessionBoundary(t *testing.T) {
	engine := seedTenants(t)
	ctx := context.Background()

	res, err := engine.Authorize(ctx, authorizeReq("login.sys-acme.test", "sys-acme-app", "https://app.sys-acme.test/cb"))
	require.NoError(t, err)
	lres, err := engine.Login(ctx, &flow.LoginRequest{
		Host:     "login.sys-acme.test",
		Location: res.Login.Location,
		Username: "alice",
		Password: "acme-pass",
	})
	require.NoError(t, err)
	require.NotNil(t, lres.Cookie)

	req := authorizeReq("login.sys-globex.test", "sys-globex-app", "https://app.sys-globex.test/cb")
	req.Request.AddCookie(lres.Cookie)
	other, err := engine.Authorize(ctx, req)
	require.NoError(t, err)
	assert.NotNil(t, other.Login, "acme's session must not log into globex")
	assert.Empty(t, other.RedirectURL)
}
