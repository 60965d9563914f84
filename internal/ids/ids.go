// Package ids mints compact, URL-safe identifiers for strategies and
// backtest runs, stored alongside their records in internal/storage.
package ids

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/jxskiss/base62"
)

// New returns a random base62-encoded identifier with the given prefix,
// e.g. New("strat") -> "strat_3mK9pQ".
func New(prefix string) string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is unrecoverable for ID generation; fall
		// back to a fixed-width zero ID rather than panic.
		return prefix + "_00000000"
	}
	n := binary.BigEndian.Uint64(buf[:])
	encoded := base62.EncodeToString(encodeUint64(n))
	if prefix == "" {
		return encoded
	}
	return prefix + "_" + encoded
}

func encodeUint64(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}
