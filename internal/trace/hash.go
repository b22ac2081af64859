package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTrace is the domain-separation prefix for trace hashes.
// Version suffix enables future algorithm migration.
const DomainTrace = "txscope/trace/v1"

// Hash computes the content-addressed identity of a named trace:
// SHA256(domain + 0x00 + canonical JSON). Two runs that issued the same
// adapter calls in the same order produce the same hash regardless of where
// or when they ran.
func Hash(name string, events []Event) (string, error) {
	canonical, err := MarshalCanonical(Snapshot(name, events))
	if err != nil {
		return "", fmt.Errorf("trace hash: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00}) // null separator prevents domain/data boundary ambiguity
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
