package core

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/minio/highwayhash"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// fingerprintKey is the fixed HighwayHash key. Changing it changes every fingerprint.
var fingerprintKey = []byte("flowrun-fingerprint-key-00000000")

// NewID returns a time-sortable ULID string.
// IDs created later in the same process sort after earlier ones.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a 64-bit HighwayHash of data as a hex string.
// Used to detect files that were already ingested.
func Fingerprint(data []byte) string {
	sum := highwayhash.Sum64(data, fingerprintKey)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sum)
	return hex.EncodeToString(buf[:])
}

// EdgeID returns the deterministic ID of an edge between two records.
func EdgeID(from, to *Record) string {
	return IDFromContent(from.Ref() + "->" + to.Ref())
}
