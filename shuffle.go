/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"
)

// newSeed reads a high-entropy seed from crypto/rand.
func newSeed() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

// newShuffler returns a Fisher-Yates shuffler. A non-zero seed makes the
// photo order reproducible; the session id is mixed in so that sessions
// sharing a seed still differ from one another.
func newShuffler(seed uint64, gameID string) (*mrand.Rand, error) {
	if seed == 0 {
		var err error
		seed, err = newSeed()
		if err != nil {
			return nil, err
		}
	}

	var stream uint64
	for _, b := range []byte(gameID) {
		stream = stream*31 + uint64(b)
	}

	return mrand.New(mrand.NewPCG(seed, stream)), nil
}
