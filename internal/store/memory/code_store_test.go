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
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
)

func testCode(code string, ttl time.Duration) *oauth.AuthorizationCode {
	now := time.Now()
	return &oauth.AuthorizationCode{
		ID:          uuid.NewString(),
		Code:        code,
		ClientID:    "web-app",
		TenantName:  "acme",
		Subject:     "alice",
		RedirectURI: "https://app.example.com/cb",
		Scope:       []string{"openid"},
		State:       "xyz",
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
}

// TestPurpose: Validates at-most-once consumption of authorization codes.
// Scope: Unit Test
// Security: RFC 6749 Section 4.1.2 single-use requirement.
// Expected: First Consume succeeds; the second returns the record with ErrCodeConsumed.
func TestCodeStore_ConsumeOnce(t *testing.T) {
	s := NewCodeStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testCode("abc", time.Minute)))

	rec, err := s.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Subject)
	assert.True(t, rec.Consumed)

	replayed, err := s.Consume(ctx, "abc")
	assert.ErrorIs(t, err, oauth.ErrCodeConsumed)
	require.NotNil(t, replayed, "the record is returned so the replay can be attributed")
	assert.Equal(t, rec.ID, replayed.ID)
}

func TestCodeStore_ConsumeUnknown(t *testing.T) {
	s := NewCodeStore()
	_, err := s.Consume(context.Background(), "nope")
	assert.ErrorIs(t, err, oauth.ErrCodeNotFound)
}

func TestCodeStore_ConsumeExpired(t *testing.T) {
	s := NewCodeStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testCode("old", -time.Second)))
	_, err := s.Consume(ctx, "old")
	assert.ErrorIs(t, err, oauth.ErrCodeExpired)
}

// TestPurpose: Validates that replay attribution outlives the code TTL.
// Scope: Unit Test
// Security: A stolen code replayed after expiry must still surface as a replay so the caller can revoke the refresh family spawned by the first redemption.
// Expected: Consuming an already-consumed code past its expiry returns the record with ErrCodeConsumed, not ErrCodeExpired.
func TestCodeStore_ReplayAfterExpiry(t *testing.T) {
	s := NewCodeStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testCode("late", 30*time.Second)))
	rec, err := s.Consume(ctx, "late")
	require.NoError(t, err)

	// Well past the code TTL, long before the refresh family expires.
	s.now = func() time.Time { return time.Now().Add(time.Hour) }

	replayed, err := s.Consume(ctx, "late")
	assert.ErrorIs(t, err, oauth.ErrCodeConsumed)
	require.NotNil(t, replayed, "attribution requires the record")
	assert.Equal(t, rec.ID, replayed.ID)
}

// TestPurpose: Validates linearized consumption under concurrency.
// Scope: Unit Test
// Security: Duplicate concurrent redemption of the same code must have exactly one winner.
// Expected: Of N parallel Consume calls, exactly one succeeds.
func TestCodeStore_ConcurrentConsume(t *testing.T) {
	s := NewCodeStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, testCode("race", time.Minute)))

	const workers = 32
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
}

func TestCodeStore_DeleteExpired(t *testing.T) {
	s := NewCodeStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testCode("fresh", time.Minute)))
	require.NoError(t, s.Put(ctx, testCode("stale", -time.Minute)))

	require.NoError(t, s.DeleteExpired(ctx))

	_, err := s.Consume(ctx, "stale")
	assert.ErrorIs(t, err, oauth.ErrCodeNotFound)
	_, err = s.Consume(ctx, "fresh")
	assert.NoError(t, err)
}

func TestCodeStore_PutCopies(t *testing.T) {
	s := NewCodeStore()
	ctx := context.Background()

	code := testCode("copy", time.Minute)
	require.NoError(t, s.Put(ctx, code))
	code.Subject = "mallory"

	rec, err := s.Consume(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Subject, "store keeps its own copy")
}
