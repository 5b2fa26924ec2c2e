package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ZstdDir stores each key as <dir>/<key>.zst. Writes go to a temp file and
// are renamed into place so a crash never leaves a half-written slot.
type ZstdDir struct {
	dir string
}

func NewZstdDir(dir string) (*ZstdDir, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty kv dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ZstdDir{dir: dir}, nil
}

func (s *ZstdDir) path(key string) string { return filepath.Join(s.dir, key+".zst") }

func (s *ZstdDir) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	b, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("kv %s: %w", key, err)
	}
	return b, nil
}

func (s *ZstdDir) Put(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(value); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *ZstdDir) Close() error { return nil }
