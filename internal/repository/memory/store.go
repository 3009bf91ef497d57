// Package memory implements the repositories in process. It backs the
// "memory" database driver and the service and handler tests.
package memory

import (
	"encoding/json"
	"fmt"
)

// clone deep-copies v through JSON so callers never share state with the store.
func clone[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memory: marshal: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("memory: unmarshal: %w", err)
	}
	return &out, nil
}
