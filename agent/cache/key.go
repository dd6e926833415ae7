package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives a cache key from a request descriptor. encoding/json emits struct fields
// in declaration order and map keys sorted, so equal descriptors always hash equally.
func Key(descriptor any) (string, error) {
	raw, err := json.Marshal(descriptor)
	if err != nil {
		return "", fmt.Errorf("marshal cache descriptor: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
