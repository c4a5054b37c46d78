package dedupe

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Mode selects how the idempotency key is derived.
type Mode string

const (
	// ModeContentAddressed hashes the raw artifact bytes: identical bytes
	// always yield the identical key, so a re-fetched unchanged artifact
	// can be suppressed downstream.
	ModeContentAddressed Mode = "content"
	// ModeBypassUnique salts the hash with the current time and a random
	// component so every call yields a distinct key. Only used to exercise
	// the delivery path during testing.
	ModeBypassUnique Mode = "bypass"
)

// BuildKey derives the caller-facing idempotency key for the artifact bytes.
func BuildKey(raw []byte, mode Mode) string {
	h := sha256.New()
	h.Write(raw)

	if mode == ModeBypassUnique {
		var nano [8]byte
		binary.BigEndian.PutUint64(nano[:], uint64(time.Now().UnixNano()))
		h.Write(nano[:])
		h.Write([]byte(uuid.NewString()))
	}

	return hex.EncodeToString(h.Sum(nil))
}
