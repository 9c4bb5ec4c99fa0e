package reality

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Domain prefixes for content-addressed identity. The version suffix
// leaves room for algorithm migration without colliding with old hashes.
const (
	DomainPayload = "coherence/payload/v1"
	DomainHealth  = "coherence/health/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PayloadHash computes the content-addressed identity of an operation
// payload. Stable across restarts and platforms: the payload is canonical
// JSON and contains no floats.
func PayloadHash(p Object) (string, error) {
	canonical, err := MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("payload hash: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// MustPayloadHash is like PayloadHash but panics on error.
// Use only in tests or when the payload is known to be valid.
func MustPayloadHash(p Object) string {
	h, err := PayloadHash(p)
	if err != nil {
		panic(err)
	}
	return h
}

// HealthFingerprint computes a stable fingerprint of a health snapshot.
// Scores are scaled to milliunit integers before hashing because canonical
// JSON forbids floats; two snapshots within half a milliunit share a
// fingerprint, which is exactly the resolution drift reports care about.
func HealthFingerprint(h Health) string {
	obj := Object{
		"stability":             milli(h.Stability),
		"coherence":             milli(h.Coherence),
		"dimensional_integrity": milli(h.DimensionalIntegrity),
		"temporal_stability":    milli(h.TemporalStability),
		"consistency":           milli(h.Consistency),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Unreachable: the object above is strings and ints only.
		panic(fmt.Sprintf("health fingerprint: %v", err))
	}
	return hashWithDomain(DomainHealth, canonical)
}

func milli(v float64) Int {
	return Int(int64(math.Round(v * 1000)))
}
