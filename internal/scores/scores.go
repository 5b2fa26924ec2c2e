// Package scores keeps a capped, score-sorted leaderboard in one key-value slot.
//
// None of the operations fail from the caller's point of view: a missing or
// unreadable slot reads as an empty board, and a failed write is logged and
// dropped.
package scores

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sort"
	"strings"

	"gridsnake.dev/internal/persistence/kv"
)

const (
	DefaultKey        = "snake_leaderboard"
	DefaultMaxEntries = 10
	DefaultName       = "Anonymous"
)

type Entry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Config struct {
	Key         string
	MaxEntries  int
	DefaultName string
}

type Store struct {
	kv     kv.Store
	cfg    Config
	logger *log.Logger
}

// New wraps backend. Zero-valued Config fields fall back to the defaults above.
// A nil logger discards output.
func New(backend kv.Store, cfg Config, logger *log.Logger) *Store {
	if strings.TrimSpace(cfg.Key) == "" {
		cfg.Key = DefaultKey
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if strings.TrimSpace(cfg.DefaultName) == "" {
		cfg.DefaultName = DefaultName
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{kv: backend, cfg: cfg, logger: logger}
}

func (s *Store) MaxEntries() int { return s.cfg.MaxEntries }

// List returns the persisted board as stored.
func (s *Store) List(ctx context.Context) []Entry {
	return s.load(ctx)
}

// Record appends (name, score), re-sorts, truncates and persists. It returns
// the truncated board even when the write fails.
func (s *Store) Record(ctx context.Context, name string, score int) []Entry {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.cfg.DefaultName
	}
	if score < 0 {
		score = 0
	}

	entries := append(s.load(ctx), Entry{Name: name, Score: score})
	// Stable: among equal scores, older entries stay ahead of the new one.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > s.cfg.MaxEntries {
		entries = entries[:s.cfg.MaxEntries]
	}

	b, err := json.Marshal(entries)
	if err != nil {
		s.logger.Printf("scores: encode: %v", err)
		return entries
	}
	if err := s.kv.Put(ctx, s.cfg.Key, b); err != nil {
		s.logger.Printf("scores: persist %s: %v", s.cfg.Key, err)
	}
	return entries
}

// Qualifies reports whether score would make it onto the board.
func (s *Store) Qualifies(ctx context.Context, score int) bool {
	return Rank(s.load(ctx), score, s.cfg.MaxEntries) > 0
}

// Rank is the 1-based position score would take if recorded now, or 0 when it
// would be cut off by the cap.
func Rank(entries []Entry, score, maxEntries int) int {
	pos := len(entries) + 1
	for i, e := range entries {
		if score > e.Score {
			pos = i + 1
			break
		}
	}
	if maxEntries > 0 && pos > maxEntries {
		return 0
	}
	return pos
}

func (s *Store) load(ctx context.Context) []Entry {
	raw, err := s.kv.Get(ctx, s.cfg.Key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Printf("scores: read %s: %v", s.cfg.Key, err)
		}
		return []Entry{}
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Printf("scores: corrupt %s: %v", s.cfg.Key, err)
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}
