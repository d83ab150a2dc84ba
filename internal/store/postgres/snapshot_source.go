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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// SnapshotSource loads tenant registry snapshots from the database. It is
// the persistent counterpart of the YAML directory loader; the registry
// does not care which one produced the snapshot.
type SnapshotSource struct {
	db *DB
}

// NewSnapshotSource creates a snapshot source on an open connection pool.
func NewSnapshotSource(db *DB) *SnapshotSource {
	return &SnapshotSource{db: db}
}

// LoadSnapshot reads all tenants and clients and builds a registry
// snapshot. Clients referencing unknown tenants are dropped by the
// snapshot constructor, mirroring the YAML loader.
func (s *SnapshotSource) LoadSnapshot(ctx context.Context) (*tenant.Snapshot, error) {
	tenants, err := s.loadTenants(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := s.loadClients(ctx)
	if err != nil {
		return nil, err
	}
	return tenant.NewSnapshot(tenants, clients), nil
}

func (s *SnapshotSource) loadTenants(ctx context.Context) ([]*tenant.Tenant, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT
			name, hosts, silent_login, allow_password_grant, informations, validator,
			allowed_scopes, claim_allow_list,
			token_ttl_seconds, refresh_ttl_seconds, code_ttl_seconds, session_ttl_seconds,
			cookie_domain
		FROM tenants
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		var (
			t                                      tenant.Tenant
			hosts, informations, validator, scopes []byte
			claimAllowList                         []byte
			tokenTTL, refreshTTL, codeTTL, sessTTL int64
		)
		if err := rows.Scan(
			&t.Name, &hosts, &t.SilentLogin, &t.AllowPassword, &informations, &validator,
			&scopes, &claimAllowList,
			&tokenTTL, &refreshTTL, &codeTTL, &sessTTL,
			&t.CookieDomain,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}

		if err := json.Unmarshal(hosts, &t.Hosts); err != nil {
			return nil, fmt.Errorf("tenant %q: invalid hosts: %w", t.Name, err)
		}
		if len(informations) > 0 {
			if err := json.Unmarshal(informations, &t.Informations); err != nil {
				return nil, fmt.Errorf("tenant %q: invalid informations: %w", t.Name, err)
			}
		}
		if err := json.Unmarshal(validator, &t.Validator); err != nil {
			return nil, fmt.Errorf("tenant %q: invalid validator: %w", t.Name, err)
		}
		if len(scopes) > 0 {
			if err := json.Unmarshal(scopes, &t.AllowedScopes); err != nil {
				return nil, fmt.Errorf("tenant %q: invalid allowed scopes: %w", t.Name, err)
			}
		}
		if len(claimAllowList) > 0 {
			if err := json.Unmarshal(claimAllowList, &t.ClaimAllowList); err != nil {
				return nil, fmt.Errorf("tenant %q: invalid claim allow list: %w", t.Name, err)
			}
		}

		t.TokenTTL = time.Duration(tokenTTL) * time.Second
		t.RefreshTTL = time.Duration(refreshTTL) * time.Second
		t.CodeTTL = time.Duration(codeTTL) * time.Second
		t.SessionTTL = time.Duration(sessTTL) * time.Second

		tenants = append(tenants, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return tenants, nil
}

func (s *SnapshotSource) loadClients(ctx context.Context) ([]*tenant.Client, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT
			id, tenant_name, secret_hash, redirect_uris,
			allowed_scopes, allowed_grant_types, require_pkce
		FROM clients
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []*tenant.Client
	for rows.Next() {
		var (
			c                            tenant.Client
			redirectURIs, scopes, grants []byte
		)
		if err := rows.Scan(
			&c.ID, &c.TenantName, &c.SecretHash, &redirectURIs,
			&scopes, &grants, &c.RequirePKCE,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}

		if err := json.Unmarshal(redirectURIs, &c.RedirectURIs); err != nil {
			return nil, fmt.Errorf("client %q: invalid redirect uris: %w", c.ID, err)
		}
		if len(scopes) > 0 {
			if err := json.Unmarshal(scopes, &c.AllowedScopes); err != nil {
				return nil, fmt.Errorf("client %q: invalid allowed scopes: %w", c.ID, err)
			}
		}
		if len(grants) > 0 {
			if err := json.Unmarshal(grants, &c.AllowedGrantTypes); err != nil {
				return nil, fmt.Errorf("client %q: invalid grant types: %w", c.ID, err)
			}
		}

		clients = append(clients, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}

	return clients, nil
}
