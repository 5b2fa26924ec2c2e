package scores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"

	"gridsnake.dev/internal/persistence/kv"
)

type failingKV struct {
	kv.Store
	putErr error
	getErr error
}

func (f failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Store.Get(ctx, key)
}

func (f failingKV) Put(ctx context.Context, key string, value []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Store.Put(ctx, key, value)
}

func TestRecordThenList(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), Config{}, nil)
	s.Record(ctx, "Ann", 5)
	s.Record(ctx, "Bob", 10)

	got := s.List(ctx)
	want := []Entry{{"Bob", 10}, {"Ann", 5}}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRecord_DefaultName(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), Config{}, nil)
	got := s.Record(ctx, "   ", 3)
	if len(got) != 1 || got[0].Name != "Anonymous" {
		t.Fatalf("got %v", got)
	}

	s2 := New(kv.NewMemory(), Config{DefaultName: "Player"}, nil)
	if got := s2.Record(ctx, "", 1); got[0].Name != "Player" {
		t.Fatalf("got %v", got)
	}
}

func TestRecord_CapAndOrder(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem, Config{}, nil)
	scores := []int{3, 17, 0, 8, 8, 42, 1, 5, 9, 12, 7, 30, 2, 8, 99}
	for i, sc := range scores {
		s.Record(ctx, string(rune('a'+i)), sc)

		raw, err := mem.Get(ctx, DefaultKey)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var persisted []Entry
		if err := json.Unmarshal(raw, &persisted); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(persisted) > DefaultMaxEntries {
			t.Fatalf("persisted %d entries", len(persisted))
		}
		for j := 1; j < len(persisted); j++ {
			if persisted[j-1].Score < persisted[j].Score {
				t.Fatalf("not sorted after %d records: %v", i+1, persisted)
			}
		}
	}
	got := s.List(ctx)
	if len(got) != 10 || got[0].Score != 99 || got[9].Score != 7 {
		t.Fatalf("final board %v", got)
	}
}

func TestRecord_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), Config{}, nil)
	s.Record(ctx, "first", 4)
	s.Record(ctx, "second", 4)
	got := s.Record(ctx, "third", 4)
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	if strings.Join(names, ",") != "first,second,third" {
		t.Fatalf("order %v", names)
	}
}

func TestRecord_TieAtCapDropsNewcomer(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), Config{MaxEntries: 2}, nil)
	s.Record(ctx, "a", 5)
	s.Record(ctx, "b", 5)
	got := s.Record(ctx, "c", 5)
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("got %v", got)
	}
}

func TestRecord_NegativeScoreClamped(t *testing.T) {
	s := New(kv.NewMemory(), Config{}, nil)
	got := s.Record(context.Background(), "x", -4)
	if got[0].Score != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestList_EmptyAndCorrupt(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	var buf bytes.Buffer
	s := New(mem, Config{}, log.New(&buf, "", 0))

	if got := s.List(ctx); got == nil || len(got) != 0 {
		t.Fatalf("empty store: got %#v", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("missing slot should not log: %q", buf.String())
	}

	for _, bad := range []string{"{not json", `{"name":"x"}`, `"str"`} {
		if err := mem.Put(ctx, DefaultKey, []byte(bad)); err != nil {
			t.Fatal(err)
		}
		if got := s.List(ctx); len(got) != 0 {
			t.Fatalf("corrupt %q: got %v", bad, got)
		}
	}
	if !strings.Contains(buf.String(), "corrupt") {
		t.Fatalf("expected corrupt log, got %q", buf.String())
	}

	if err := mem.Put(ctx, DefaultKey, []byte("null")); err != nil {
		t.Fatal(err)
	}
	if got := s.List(ctx); got == nil || len(got) != 0 {
		t.Fatalf("null slot: got %#v", got)
	}
}

func TestRecord_CorruptSlotStartsOver(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	_ = mem.Put(ctx, DefaultKey, []byte("garbage"))
	s := New(mem, Config{}, nil)
	got := s.Record(ctx, "a", 1)
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	if l := s.List(ctx); len(l) != 1 || l[0].Name != "a" {
		t.Fatalf("list %v", l)
	}
}

func TestRecord_PersistFailureIsSilent(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	s := New(failingKV{Store: kv.NewMemory(), putErr: errors.New("quota exceeded")}, Config{}, log.New(&buf, "", 0))

	got := s.Record(ctx, "a", 7)
	if len(got) != 1 || got[0].Score != 7 {
		t.Fatalf("got %v", got)
	}
	if l := s.List(ctx); len(l) != 0 {
		t.Fatalf("nothing should have persisted: %v", l)
	}
	if !strings.Contains(buf.String(), "quota exceeded") {
		t.Fatalf("log %q", buf.String())
	}
}

func TestList_ReadFailureIsEmpty(t *testing.T) {
	s := New(failingKV{Store: kv.NewMemory(), getErr: errors.New("disk gone")}, Config{}, nil)
	if got := s.List(context.Background()); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestRank(t *testing.T) {
	board := []Entry{{"a", 10}, {"b", 8}, {"c", 8}, {"d", 2}}
	cases := []struct {
		score, max, want int
	}{
		{11, 10, 1},
		{10, 10, 2},
		{9, 10, 2},
		{8, 10, 4},
		{1, 10, 5},
		{1, 4, 0},
		{3, 4, 4},
	}
	for _, tc := range cases {
		if got := Rank(board, tc.score, tc.max); got != tc.want {
			t.Fatalf("Rank(%d,max=%d)=%d want %d", tc.score, tc.max, got, tc.want)
		}
	}
	if got := Rank(nil, 0, 10); got != 1 {
		t.Fatalf("empty board rank=%d", got)
	}
}

func TestQualifies(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemory(), Config{MaxEntries: 2}, nil)
	s.Record(ctx, "a", 5)
	s.Record(ctx, "b", 3)
	if s.Qualifies(ctx, 3) {
		t.Fatalf("tie at last place should not qualify")
	}
	if !s.Qualifies(ctx, 4) {
		t.Fatalf("4 should qualify")
	}
}
