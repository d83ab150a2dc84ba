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
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/uitsmijter/uitsmijter/internal/tenant"
	"golang.org/x/crypto/argon2"
)

// Static validates against a tenant-supplied allow-list of users whose
// passwords are stored as argon2id hashes. This is configuration handed in
// by the tenant, not a user store; there is no registration path.
type Static struct {
	users map[string]tenant.StaticUser
}

// NewStatic creates a static allow-list validator.
func NewStatic(users map[string]tenant.StaticUser) (*Static, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("static validator requires at least one user")
	}
	return &Static{users: users}, nil
}

// Validate checks the password against the stored argon2id hash.
func (s *Static) Validate(ctx context.Context, username, password string) (*Result, error) {
	user, ok := s.users[username]
	if !ok {
		// Burn comparable work for unknown users so timing does not reveal
		// membership in the allow-list.
		_, _ = verifyArgon2id(password, dummyHash)
		return nil, ErrInvalidCredentials
	}

	match, err := verifyArgon2id(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("malformed password hash for user: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	subject := user.Subject
	if subject == "" {
		subject = username
	}
	return &Result{Subject: subject, Claims: user.Claims}, nil
}

// dummyHash is a valid argon2id hash of an unguessable value, used to
// equalize timing for unknown usernames.
var dummyHash = func() string {
	salt := make([]byte, 16)
	_, _ = rand.Read(salt)
	h := argon2.IDKey([]byte("uitsmijter-dummy"), salt, 3, 64*1024, 4, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, 64*1024, 3, 4,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(h),
	)
}()

// HashPassword produces an argon2id encoded hash suitable for a tenant's
// static user list.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	const (
		memory      = 64 * 1024
		iterations  = 3
		parallelism = 4
		keyLength   = 32
	)

	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	// Encode as: $argon2id$v=19$m=memory,t=iterations,p=parallelism$salt$hash
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id checks a password against an encoded argon2id hash.
func verifyArgon2id(password, encodedHash string) (bool, error) {
	sections := strings.Split(strings.TrimPrefix(encodedHash, "$"), "$")

	// Expected 5 sections: ["argon2id", "v=19", "m=65536,t=3,p=4", "salt", "hash"]
	if len(sections) != 5 || sections[0] != "argon2id" {
		return false, fmt.Errorf("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(sections[1], "v=%d", &version); err != nil {
		return false, fmt.Errorf("invalid version: %w", err)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("invalid parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		return false, fmt.Errorf("invalid salt encoding: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, fmt.Errorf("invalid hash encoding: %w", err)
	}

	actual := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}
