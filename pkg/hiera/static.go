package hiera

import (
	"context"
	"strings"
)

// Static is an in-memory backend keyed by lookup key.
type Static map[string]interface{}

// Lookup implements engine.Backend.
func (s Static) Lookup(_ context.Context, key string) (interface{}, bool, error) {
	bare := strings.TrimPrefix(key, ":")
	if v, ok := s[bare]; ok {
		return v, true, nil
	}
	v, ok := s[":"+bare]
	return v, ok, nil
}
