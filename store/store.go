// Package store defines the durable key-value contract the kit persists
// through. Backends must tolerate missing keys; decoding concerns stay with
// the caller, which treats corrupt values the same as absent ones.
package store

import (
	"context"
	"encoding/json"

	"github.com/kochabx/sessionkit/errors"
)

// Store is a durable string key-value store.
type Store interface {
	// GetItem returns the value under key, or an error with CodeNotFound
	// when the key is absent.
	GetItem(ctx context.Context, key string) (string, error)

	// SetItem writes value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

// ErrNotFound is the sentinel for absent keys; backends wrap it so callers
// can match with errors.Is regardless of backend.
var ErrNotFound = errors.NotFound("store: item not found")

// GetJSON reads key and unmarshals it into v.
// Returns CodeNotFound when absent and CodeCorrupt when the value does not
// decode; callers are expected to treat both as "no prior state".
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.GetItem(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Corrupt("store: decode %s", key).WithCause(err)
	}
	return nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Invalid("store: encode %s", key).WithCause(err)
	}
	return s.SetItem(ctx, key, string(raw))
}

// Absent reports whether err means "no usable prior state": the key is
// missing or its value failed to decode.
func Absent(err error) bool {
	code := errors.CodeOf(err)
	return code == errors.CodeNotFound || code == errors.CodeCorrupt
}
