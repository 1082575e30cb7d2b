// Package random provides cryptographic seed generation helpers.
//
// It uses crypto/rand to generate high-entropy seeds suitable for
// initializing pseudo-random number generators in deterministic systems,
// such as the dice engine's per-roll seeding.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

var errSeedOutOfRange = errors.New("seed must fit in int64")

// ErrSeedOutOfRange reports when a seed does not fit in int64.
func ErrSeedOutOfRange() error {
	return errSeedOutOfRange
}

// NewSeed generates a random, non-negative seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	seed := binary.LittleEndian.Uint64(b[:]) & uint64(^uint64(0)>>1)
	return int64(seed), nil
}
