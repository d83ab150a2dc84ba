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

package validator

import (
	"context"
	"time"
)

// GuardConfig bounds a tenant's validator. A slow predicate is a denial
// of service; the guard caps call duration and in-flight concurrency.
type GuardConfig struct {
	Timeout        time.Duration
	MaxConcurrency int
}

// DefaultGuardConfig returns the documented defaults: 5s timeout, 32
// concurrent calls.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:        5 * time.Second,
		MaxConcurrency: 32,
	}
}

type guarded struct {
	inner   Validator
	timeout time.Duration
	sem     chan struct{}
}

// Guard wraps a validator with the per-tenant timeout and concurrency cap.
// Excess calls fail fast with ErrRateLimited instead of queueing.
func Guard(v Validator, cfg GuardConfig) Validator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 32
	}
	return &guarded{
		inner:   v,
		timeout: cfg.Timeout,
		sem:     make(chan struct{}, cfg.MaxConcurrency),
	}
}

func (g *guarded) Validate(ctx context.Context, username, password string) (*Result, error) {
	// The slot is held until the predicate actually returns, so an
	// abandoned slow call still counts against the cap.
	select {
	case g.sem <- struct{}{}:
	default:
		return nil, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() { <-g.sem }()
		res, err := g.inner.Validate(ctx, username, password)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		// The predicate call is abandoned; any state it mutated stays
		// mutated, which the protocol tolerates.
		return nil, ErrUnavailable
	case o := <-done:
		return o.res, o.err
	}
}
