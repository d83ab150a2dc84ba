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
	"strings"
	"sync/atomic"
)

// Snapshot is an immutable view over all tenants and clients. Sources
// build a complete snapshot and swap it into the registry atomically; no
// request ever observes half an update.
type Snapshot struct {
	tenantsByName map[string]*Tenant
	tenantsByHost map[string]*Tenant
	clientsByID   map[string]*Client
}

// NewSnapshot indexes the given tenants and clients. Client tenant
// references are resolved by name; clients of unknown tenants are dropped.
func NewSnapshot(tenants []*Tenant, clients []*Client) *Snapshot {
	s := &Snapshot{
		tenantsByName: make(map[string]*Tenant, len(tenants)),
		tenantsByHost: make(map[string]*Tenant),
		clientsByID:   make(map[string]*Client, len(clients)),
	}
	for _, t := range tenants {
		s.tenantsByName[t.Name] = t
		for _, h := range t.Hosts {
			s.tenantsByHost[strings.ToLower(h)] = t
		}
	}
	for _, c := range clients {
		if _, ok := s.tenantsByName[c.TenantName]; !ok {
			continue
		}
		s.clientsByID[c.ID] = c
	}
	return s
}

// Registry is the read-only lookup the flow engine uses to resolve tenants
// by request host and clients by id. It holds the current snapshot behind
// an atomic pointer.
type Registry struct {
	snap atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry primed with an empty snapshot.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(NewSnapshot(nil, nil))
	return r
}

// Swap atomically replaces the current snapshot.
func (r *Registry) Swap(s *Snapshot) {
	if s == nil {
		return
	}
	r.snap.Store(s)
}

// LookupTenant resolves a tenant by the request Host header.
func (r *Registry) LookupTenant(host string) (*Tenant, error) {
	t, ok := r.snap.Load().tenantsByHost[strings.ToLower(stripPort(host))]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// TenantByName resolves a tenant by its name.
func (r *Registry) TenantByName(name string) (*Tenant, error) {
	t, ok := r.snap.Load().tenantsByName[name]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return t, nil
}

// LookupClient resolves a client by its id.
func (r *Registry) LookupClient(clientID string) (*Client, error) {
	c, ok := r.snap.Load().clientsByID[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// ClientsOfTenant returns every client registered under the tenant. Used
// by post-logout redirect validation.
func (r *Registry) ClientsOfTenant(name string) []*Client {
	var out []*Client
	for _, c := range r.snap.Load().clientsByID {
		if c.TenantName == name {
			out = append(out, c)
		}
	}
	return out
}
