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

package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that credential-bearing attributes are masked before they reach any sink.
// Scope: Unit Test
// Security: Credential leakage prevention in log output (CWE-532).
// Expected: password, client_secret, refresh_token etc. become [REDACTED]; ordinary attributes pass through.
func TestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: replaceAttr}))

	log.Info("token request",
		slog.String("password", "hunter2"),
		slog.String("Client_Secret", "s3cret"),
		slog.String("refresh_token", "opaque-value"),
		slog.String("tenant", "acme"),
	)

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "opaque-value")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "acme")
}

func TestLogger_ParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestLogger_TeeFansOut(t *testing.T) {
	var a, b bytes.Buffer
	handlers := tee{
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	log := slog.New(handlers)

	log.InfoContext(context.Background(), "only the info sink")
	log.ErrorContext(context.Background(), "both sinks")

	require.Contains(t, a.String(), "only the info sink")
	assert.NotContains(t, b.String(), "only the info sink", "level gate applies per sink")
	assert.Contains(t, a.String(), "both sinks")
	assert.Contains(t, b.String(), "both sinks")
}
