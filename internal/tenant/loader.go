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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// tenantDocument is the on-disk YAML form of one tenant and its clients.
// Durations are Go duration strings ("12h", "45s").
type tenantDocument struct {
	Name           string         `yaml:"name"`
	Hosts          []string       `yaml:"hosts"`
	SilentLogin    bool           `yaml:"silent_login"`
	AllowPassword  bool           `yaml:"allow_password_grant"`
	Informations   *Informations  `yaml:"informations"`
	Validator      ValidatorSpec  `yaml:"validator"`
	AllowedScopes  []string       `yaml:"allowed_scopes"`
	ClaimAllowList []string       `yaml:"claim_allow_list"`
	TokenTTL       string         `yaml:"token_ttl"`
	RefreshTTL     string         `yaml:"refresh_ttl"`
	CodeTTL        string         `yaml:"code_ttl"`
	SessionTTL     string         `yaml:"session_ttl"`
	CookieDomain   string         `yaml:"cookie_domain"`
	Clients        []clientRecord `yaml:"clients"`
}

type clientRecord struct {
	ID                string   `yaml:"id"`
	SecretHash        string   `yaml:"secret_hash"`
	RedirectURIs      []string `yaml:"redirect_uris"`
	AllowedScopes     []string `yaml:"allowed_scopes"`
	RequirePKCE       bool     `yaml:"require_pkce"`
	AllowedGrantTypes []string `yaml:"allowed_grant_types"`
}

// LoadDir parses every *.yaml / *.yml file in dir into a snapshot. Each
// file declares one tenant with its clients.
func LoadDir(dir string) (*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant directory: %w", err)
	}

	var tenants []*Tenant
	var clients []*Client

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		t, cs, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		tenants = append(tenants, t)
		clients = append(clients, cs...)
	}

	return NewSnapshot(tenants, clients), nil
}

func loadFile(path string) (*Tenant, []*Client, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var doc tenantDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid tenant document: %w", err)
	}
	if doc.Name == "" {
		return nil, nil, fmt.Errorf("tenant name is required")
	}
	if len(doc.Hosts) == 0 {
		return nil, nil, fmt.Errorf("tenant %q declares no hosts", doc.Name)
	}

	t := &Tenant{
		Name:           doc.Name,
		Hosts:          doc.Hosts,
		SilentLogin:    doc.SilentLogin,
		AllowPassword:  doc.AllowPassword,
		Informations:   doc.Informations,
		Validator:      doc.Validator,
		AllowedScopes:  doc.AllowedScopes,
		ClaimAllowList: doc.ClaimAllowList,
		TokenTTL:       parseTTL(doc.TokenTTL),
		RefreshTTL:     parseTTL(doc.RefreshTTL),
		CodeTTL:        parseTTL(doc.CodeTTL),
		SessionTTL:     parseTTL(doc.SessionTTL),
		CookieDomain:   doc.CookieDomain,
	}

	clients := make([]*Client, 0, len(doc.Clients))
	for _, cr := range doc.Clients {
		if cr.ID == "" {
			return nil, nil, fmt.Errorf("tenant %q declares a client without id", doc.Name)
		}
		clients = append(clients, &Client{
			ID:                cr.ID,
			SecretHash:        cr.SecretHash,
			RedirectURIs:      cr.RedirectURIs,
			AllowedScopes:     cr.AllowedScopes,
			TenantName:        doc.Name,
			RequirePKCE:       cr.RequirePKCE,
			AllowedGrantTypes: cr.AllowedGrantTypes,
		})
	}

	return t, clients, nil
}

func parseTTL(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Watch reloads the directory into the registry whenever a tenant file
// changes. Reload failures keep the previous snapshot; a broken edit never
// takes half the tenants offline. Blocks until ctx is done.
func Watch(ctx context.Context, dir string, reg *Registry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Editors produce bursts of events; debounce before reloading.
	const settle = 250 * time.Millisecond
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isYAML(event.Name) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(settle, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("tenant watcher error", "error", err)
		case <-reload:
			snap, err := LoadDir(dir)
			if err != nil {
				slog.Error("tenant reload failed, keeping previous snapshot", "error", err, "dir", dir)
				continue
			}
			reg.Swap(snap)
			slog.Info("tenant snapshot reloaded", "dir", dir)
		}
	}
}
