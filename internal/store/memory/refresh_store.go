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

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
)

// RefreshStore keeps refresh token families in memory. Tokens are indexed
// by the hash of their raw value; the raw value itself is never stored.
type RefreshStore struct {
	mu       sync.Mutex
	byHash   map[string]*oauth.RefreshToken   // token hash -> record
	families map[string][]*oauth.RefreshToken // family id -> members
	byCode   map[string][]string              // code record id -> family ids
	now      func() time.Time
}

// NewRefreshStore creates an empty refresh token store.
func NewRefreshStore() *RefreshStore {
	return &RefreshStore{
		byHash:   make(map[string]*oauth.RefreshToken),
		families: make(map[string][]*oauth.RefreshToken),
		byCode:   make(map[string][]string),
		now:      time.Now,
	}
}

// Create inserts a token record. The first member of a family also links
// the family to the authorization code it descended from.
func (s *RefreshStore) Create(ctx context.Context, token *oauth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.byHash[cp.TokenHash] = &cp
	s.families[cp.FamilyID] = append(s.families[cp.FamilyID], &cp)
	if cp.CodeID != "" && cp.ParentID == "" {
		s.byCode[cp.CodeID] = append(s.byCode[cp.CodeID], cp.FamilyID)
	}
	return nil
}

// Rotate atomically revokes the presented token and returns its record.
// A presented token that was already revoked is a replay: the whole family
// is condemned before ErrTokenRevoked is returned.
func (s *RefreshStore) Rotate(ctx context.Context, raw string) (*oauth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHash[crypto.HashOpaque(raw)]
	if !ok {
		return nil, oauth.ErrTokenNotFound
	}
	if rec.Revoked {
		s.revokeFamilyLocked(rec.FamilyID)
		return nil, oauth.ErrTokenRevoked
	}
	if !rec.ExpiresAt.After(s.now()) {
		return nil, oauth.ErrTokenExpired
	}

	rec.Revoked = true
	cp := *rec
	return &cp, nil
}

// Get looks a token up without mutating it.
func (s *RefreshStore) Get(ctx context.Context, raw string) (*oauth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHash[crypto.HashOpaque(raw)]
	if !ok {
		return nil, oauth.ErrTokenNotFound
	}
	cp := *rec
	return &cp, nil
}

// RevokeFamily revokes every member of a family.
func (s *RefreshStore) RevokeFamily(ctx context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revokeFamilyLocked(familyID)
	return nil
}

// RevokeFamiliesByCode revokes every family descended from a code record.
// Called when an authorization code is replayed (RFC 6749 Section 4.1.2:
// the server SHOULD revoke all tokens previously issued on that code).
func (s *RefreshStore) RevokeFamiliesByCode(ctx context.Context, codeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, familyID := range s.byCode[codeID] {
		s.revokeFamilyLocked(familyID)
	}
	return nil
}

// DeleteExpired removes expired records and empty families.
func (s *RefreshStore) DeleteExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for familyID, members := range s.families {
		kept := members[:0]
		for _, rec := range members {
			if rec.ExpiresAt.After(now) {
				kept = append(kept, rec)
			} else {
				delete(s.byHash, rec.TokenHash)
			}
		}
		if len(kept) == 0 {
			delete(s.families, familyID)
		} else {
			s.families[familyID] = kept
		}
	}
	return nil
}

func (s *RefreshStore) revokeFamilyLocked(familyID string) {
	for _, rec := range s.families[familyID] {
		rec.Revoked = true
	}
}
