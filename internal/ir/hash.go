package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows future algorithm migration.
const (
	DomainProblem = "closer/problem/v1"
	DomainClosure = "closer/closure/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes a problem description. Checkpoints are only resumed
// against a problem with the same fingerprint.
func Fingerprint(problem Object) (string, error) {
	canonical, err := MarshalCanonical(problem)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProblem, canonical), nil
}

// ClosureDigest hashes an element set independently of discovery order.
func ClosureDigest(elems []Element) string {
	sorted := slices.Clone(elems)
	slices.SortFunc(sorted, CompareElements)

	arr := make(Array, len(sorted))
	for i, e := range sorted {
		arr[i] = IntArray(e.Raw())
	}
	// Arrays of ints always marshal.
	canonical, _ := MarshalCanonical(arr)
	return hashWithDomain(DomainClosure, canonical)
}
