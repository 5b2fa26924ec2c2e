// Package kv provides single-slot key-value backends. Each key holds one
// opaque value that is replaced wholesale on Put; there is no read-modify-write
// atomicity across processes (last writer wins).
package kv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open picks a backend by name: "memory", "file" (zstd files under dir) or
// "sqlite" (a database file under dir).
func Open(backend, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "sqlite":
		if dir == "" {
			dir = "."
		}
		return OpenSQLite(filepath.Join(dir, "scores.db"))
	case "file":
		return NewZstdDir(dir)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", backend)
	}
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("kv: empty key")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("kv: bad key %q", key)
	}
	return nil
}
