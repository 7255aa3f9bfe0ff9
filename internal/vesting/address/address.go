// Package address derives stable account addresses from namespaced seeds.
//
// An address is the base58 rendering of a SHA-256 digest over a namespace
// tag and an ordered list of seeds. Every input is length-framed before
// hashing, so two distinct (namespace, seeds) tuples can never produce the
// same preimage by shifting bytes across seed boundaries. The same inputs
// always yield the same address, which lets stored records carry derived
// addresses that remain verifiable against their seeds.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mr-tron/base58"

	apperrors "github.com/vestledger/vestledger/internal/platform/errors"
)

// Derivation namespaces. Each entity kind hashes under its own tag so a
// grant, its treasury, and an employee record can never collide even when
// they share seed material.
const (
	NamespaceGrant    = "grant"
	NamespaceTreasury = "treasury"
	NamespaceEmployee = "employee"
)

// MaxSeedBytes caps the concatenated seed material for one derivation.
const MaxSeedBytes = 256

// ErrSeedTooLong indicates the combined seed material exceeds MaxSeedBytes.
var ErrSeedTooLong = apperrors.New(apperrors.CodeSeedTooLong, "seed material exceeds derivation limit")

// Derive computes the address for a namespace tag and ordered seeds.
func Derive(namespace string, seeds ...[]byte) (string, error) {
	if namespace == "" {
		return "", fmt.Errorf("derivation namespace is required")
	}

	total := 0
	for _, seed := range seeds {
		total += len(seed)
	}
	if total > MaxSeedBytes {
		return "", apperrors.WithMetadata(
			apperrors.CodeSeedTooLong,
			fmt.Sprintf("seed material is %d bytes, limit is %d", total, MaxSeedBytes),
			map[string]string{"Bytes": fmt.Sprintf("%d", total)},
		)
	}

	h := sha256.New()
	writeFramed(h, []byte(namespace))
	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(seeds)))
	h.Write(count[:])
	for _, seed := range seeds {
		writeFramed(h, seed)
	}

	return base58.Encode(h.Sum(nil)), nil
}

// DeriveStrings is a convenience wrapper for string seeds.
func DeriveStrings(namespace string, seeds ...string) (string, error) {
	raw := make([][]byte, len(seeds))
	for i, seed := range seeds {
		raw[i] = []byte(seed)
	}
	return Derive(namespace, raw...)
}

// writeFramed writes a big-endian length prefix followed by the value.
func writeFramed(w io.Writer, value []byte) {
	var frame [2]byte
	binary.BigEndian.PutUint16(frame[:], uint16(len(value)))
	w.Write(frame[:])
	w.Write(value)
}
