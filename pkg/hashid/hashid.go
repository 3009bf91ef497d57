package hashid

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Derive returns the hex SHA-256 digest of parts concatenated in order.
// No separator is inserted between parts, so ("ab", "c") and ("a", "bc")
// yield the same identifier. Existing identifiers depend on this.
func Derive(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Canonical renders v as JSON for use as a Derive part. Map keys are
// sorted by encoding/json so equal values always render identically.
func Canonical(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
