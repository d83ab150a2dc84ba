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
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/oauth"
)

func testRefresh(raw, familyID, codeID, parentID string, ttl time.Duration) *oauth.RefreshToken {
	now := time.Now()
	return &oauth.RefreshToken{
		ID:         uuid.NewString(),
		TokenHash:  crypto.HashOpaque(raw),
		FamilyID:   familyID,
		CodeID:     codeID,
		ClientID:   "web-app",
		TenantName: "acme",
		Subject:    "alice",
		Scope:      []string{"openid"},
		ParentID:   parentID,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
}

// TestPurpose: Validates refresh token rotation.
// Scope: Unit Test
// Security: Strict rotation; the presented token is dead after use.
// Expected: Rotate returns the record and revokes it; rotating the successor works independently.
func TestRefreshStore_Rotate(t *testing.T) {
	s := NewRefreshStore()
	ctx := context.Background()
	family := uuid.NewString()

	first := testRefresh("raw-1", family, "code-1", "", time.Hour)
	require.NoError(t, s.Create(ctx, first))

	rec, err := s.Rotate(ctx, "raw-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, rec.ID)
	assert.Equal(t, family, rec.FamilyID)

	// The engine mints the successor from the returned record.
	second := testRefresh("raw-2", family, "code-1", rec.ID, time.Hour)
	require.NoError(t, s.Create(ctx, second))

	rec2, err := s.Rotate(ctx, "raw-2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, rec2.ID)
}

// TestPurpose: Validates family-wide revocation on replay.
// Scope: Unit Test
// Security: A replayed (already rotated) refresh token signals theft; every descendant must die.
// Expected: Replaying raw-1 returns ErrTokenRevoked and condemns the still-live successor.
func TestRefreshStore_ReplayCondemnsFamily(t *testing.T) {
	s := NewRefreshStore()
	ctx := context.Background()
	family := uuid.NewString()

	require.NoError(t, s.Create(ctx, testRefresh("raw-1", family, "code-1", "", time.Hour)))

	rec, err := s.Rotate(ctx, "raw-1")
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, testRefresh("raw-2", family, "code-1", rec.ID, time.Hour)))

	// Replay of the consumed token.
	_, err = s.Rotate(ctx, "raw-1")
	assert.ErrorIs(t, err, oauth.ErrTokenRevoked)

	// The successor is collateral damage.
	_, err = s.Rotate(ctx, "raw-2")
	assert.ErrorIs(t, err, oauth.ErrTokenRevoked)
}

func TestRefreshStore_RotateUnknown(t *testing.T) {
	s := NewRefreshStore()
	_, err := s.Rotate(context.Background(), "nope")
	assert.ErrorIs(t, err, oauth.ErrTokenNotFound)
}

func TestRefreshStore_RotateExpired(t *testing.T) {
	s := NewRefreshStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRefresh("old", uuid.NewString(), "", "", -time.Minute)))

	_, err := s.Rotate(ctx, "old")
	assert.ErrorIs(t, err, oauth.ErrTokenExpired)
}

// TestPurpose: Validates revocation of all families descended from a code.
// Scope: Unit Test
// Security: RFC 6749 Section 4.1.2; a replayed authorization code voids everything it ever produced.
// Expected: RevokeFamiliesByCode kills tokens of the code's family and leaves other families alone.
func TestRefreshStore_RevokeFamiliesByCode(t *testing.T) {
	s := NewRefreshStore()
	ctx := context.Background()

	familyA := uuid.NewString()
	familyB := uuid.NewString()
	require.NoError(t, s.Create(ctx, testRefresh("a-1", familyA, "code-a", "", time.Hour)))
	require.NoError(t, s.Create(ctx, testRefresh("b-1", familyB, "code-b", "", time.Hour)))

	require.NoError(t, s.RevokeFamiliesByCode(ctx, "code-a"))

	_, err := s.Rotate(ctx, "a-1")
	assert.ErrorIs(t, err, oauth.ErrTokenRevoked)

	_, err = s.Rotate(ctx, "b-1")
	assert.NoError(t, err, "unrelated family survives")
}

// TestPurpose: Validates that concurrent rotation of one token has a single winner.
// Scope: Unit Test
// Expected: Of N parallel Rotate calls on the same raw value, exactly one succeeds.
func TestRefreshStore_ConcurrentRotate(t *testing.T) {
	s := NewRefreshStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testRefresh("race", uuid.NewString(), "", "", time.Hour)))

	const workers = 32
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Rotate(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
}

func TestRefreshStore_DeleteExpired(t *testing.T) {
	s := NewRefreshStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRefresh("fresh", uuid.NewString(), "", "", time.Hour)))
	require.NoError(t, s.Create(ctx, testRefresh("stale", uuid.NewString(), "", "", -time.Hour)))

	require.NoError(t, s.DeleteExpired(ctx))

	_, err := s.Get(ctx, "stale")
	assert.ErrorIs(t, err, oauth.ErrTokenNotFound)
	_, err = s.Get(ctx, "fresh")
	assert.NoError(t, err)
}
