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

// Package memory provides the in-process implementations of the code and
// refresh token stores. They are the default for single-node deployments;
// everything is guarded by per-store mutexes so consumption is linearized.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/oauth"
)

// CodeStore holds authorization codes until they are consumed or expire.
// Consumed codes are retained until their natural expiry so a replay can be
// attributed to the code it reused.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]*oauth.AuthorizationCode // keyed by code value
	now   func() time.Time
}

// NewCodeStore creates an empty code store.
func NewCodeStore() *CodeStore {
	return &CodeStore{
		codes: make(map[string]*oauth.AuthorizationCode),
		now:   time.Now,
	}
}

// Put stores a freshly minted code.
func (s *CodeStore) Put(ctx context.Context, code *oauth.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *code
	s.codes[code.Code] = &cp
	return nil
}

// Consume atomically marks the code as used and returns it. Exactly one
// caller wins a concurrent race; every later caller gets the record back
// together with ErrCodeConsumed so the replay can be attributed. The
// consumed check runs before the expiry check: a replay stays
// attributable past the code TTL, until DeleteExpired reaps the record.
func (s *CodeStore) Consume(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.codes[code]
	if !ok {
		return nil, oauth.ErrCodeNotFound
	}
	if rec.Consumed {
		cp := *rec
		return &cp, oauth.ErrCodeConsumed
	}
	if !rec.ExpiresAt.After(s.now()) {
		delete(s.codes, code)
		return nil, oauth.ErrCodeExpired
	}

	rec.Consumed = true
	cp := *rec
	return &cp, nil
}

// DeleteExpired removes codes past their expiry, consumed or not.
func (s *CodeStore) DeleteExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, rec := range s.codes {
		if !rec.ExpiresAt.After(now) {
			delete(s.codes, k)
		}
	}
	return nil
}
