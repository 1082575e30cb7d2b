// Package idgen generates opaque record identifiers.
//
// Identifiers are a UUIDv4's raw bytes encoded as base32 (RFC 4648,
// no padding), lowercased to a 26-character string. This matches the
// scheme the engine's identifiers have always used.
package idgen

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// New generates a new 26-character lowercase identifier.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ToLower(encoding.EncodeToString(id[:])), nil
}

// MustNew generates a new identifier and panics on failure. Use only in
// contexts where uuid generation cannot realistically fail (tests, init).
func MustNew() string {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}
