package evo

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes a genome's encoded form. Individuals with equal
// fingerprints are structurally identical.
func Fingerprint[G any](rep Representation[G], g G) string {
	data, err := rep.Encode(g)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// distinct counts the different fingerprints among members.
func distinct[G any](rep Representation[G], members []G) int {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		seen[Fingerprint(rep, m)] = struct{}{}
	}
	return len(seen)
}
