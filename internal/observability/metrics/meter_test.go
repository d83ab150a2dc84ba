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

package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/audit"
)

type captureLogger struct {
	events []audit.Event
}

func (c *captureLogger) Log(ctx context.Context, event audit.Event) {
	c.events = append(c.events, event)
}

// TestPurpose: Validates that metric recording never swallows audit events.
// Scope: Unit Test
// Expected: Every event reaches the wrapped sink unchanged; recording handles all known event types.
func TestMetrics_AuditRecorderDelegates(t *testing.T) {
	meter, err := New(context.Background(), Config{Enabled: false}, "uitsmijter")
	require.NoError(t, err)

	sink := &captureLogger{}
	recorder := NewAuditRecorder(meter, sink)

	types := []string{
		audit.TypeLoginSuccess, audit.TypeLoginFailed, audit.TypeSilentLogin,
		audit.TypeTokenIssued, audit.TypeTokenRefreshed,
		audit.TypeCodeReplayed, audit.TypeRefreshReplayed,
		audit.TypeTokenRevoked, audit.TypeFamilyRevoked,
		audit.TypeLogout, audit.TypeCodeIssued,
	}
	for _, typ := range types {
		recorder.Log(context.Background(), audit.Event{Type: typ, Tenant: "acme"})
	}

	require.Len(t, sink.events, len(types))
	for i, typ := range types {
		assert.Equal(t, typ, sink.events[i].Type)
		assert.Equal(t, "acme", sink.events[i].Tenant)
	}
}
