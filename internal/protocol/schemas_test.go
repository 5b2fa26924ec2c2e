package protocol_test

import (
	"encoding/json"
	"testing"

	"gridsnake.dev/internal/protocol"
)

func mustValidator(t *testing.T) *protocol.Validator {
	t.Helper()
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestSchemas_ValidateSamples(t *testing.T) {
	v := mustValidator(t)

	samples := map[string]string{
		protocol.TypeHello: `{
		  "type":"HELLO",
		  "protocol_version":"1.0",
		  "player_name":"Ann",
		  "capabilities":{"max_queue":8}
		}`,
		protocol.TypeInput: `{"type":"INPUT","protocol_version":"1.0","action":"LEFT"}`,
		protocol.TypeSubmitScore: `{
		  "type":"SUBMIT_SCORE",
		  "protocol_version":"1.0",
		  "run_id":"3f1c",
		  "name":""
		}`,
		protocol.TypeGameOver: `{
		  "type":"GAME_OVER",
		  "protocol_version":"1.0",
		  "run_id":"3f1c",
		  "score":4,
		  "collision":"WALL",
		  "rank":2
		}`,
		protocol.TypeError: `{"type":"ERROR","protocol_version":"1.0","code":"E_STALE","message":"old run"}`,
	}
	for typ, raw := range samples {
		if err := v.Validate(typ, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}
}

func TestSchemas_RejectBadInput(t *testing.T) {
	v := mustValidator(t)
	bad := map[string]string{
		"unknown action":   `{"type":"INPUT","protocol_version":"1.0","action":"JUMP"}`,
		"missing action":   `{"type":"INPUT","protocol_version":"1.0"}`,
		"extra field":      `{"type":"INPUT","protocol_version":"1.0","action":"UP","speed":2}`,
		"wrong type const": `{"type":"HELLO","protocol_version":"1.0","action":"UP"}`,
		"not json":         `{"type":`,
	}
	for name, raw := range bad {
		if err := v.Validate(protocol.TypeInput, []byte(raw)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	long := `{"type":"SUBMIT_SCORE","protocol_version":"1.0","run_id":"r","name":"` +
		"abcdefghijklmnopqrstuvwxyz0123456789" + `"}`
	if err := v.Validate(protocol.TypeSubmitScore, []byte(long)); err == nil {
		t.Fatalf("expected name length rejection")
	}
	if err := v.Validate("NOPE", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestSchemas_GoStructsConform(t *testing.T) {
	v := mustValidator(t)

	state := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		RunID:           "r1",
		Tick:            5,
		Phase:           "RUNNING",
		Direction:       "RIGHT",
		Snake:           [][2]int{{15, 10}, {14, 10}},
		Food:            [2]int{3, 7},
		Score:           1,
		Ate:             true,
	}
	board := protocol.LeaderboardMsg{
		Type:            protocol.TypeLeaderboard,
		ProtocolVersion: protocol.Version,
		Entries:         []protocol.LeaderboardEntry{{Rank: 1, Name: "Bob", Score: 10}, {Rank: 2, Name: "Ann", Score: 5}},
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "s1",
		GameParams:      protocol.GameParams{GridSize: 20, TickMs: 300, MaxEntries: 10},
		State:           state,
		Leaderboard:     board,
	}

	for typ, msg := range map[string]any{
		protocol.TypeState:       state,
		protocol.TypeLeaderboard: board,
		protocol.TypeWelcome:     welcome,
		protocol.TypeError:       protocol.NewError(protocol.ErrConflict, "already submitted"),
	} {
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("%s marshal: %v", typ, err)
		}
		if err := v.Validate(typ, b); err != nil {
			t.Fatalf("%s: %v\n%s", typ, err, b)
		}
	}
}

func TestDefaultValidator_Cached(t *testing.T) {
	a, err := protocol.DefaultValidator()
	if err != nil {
		t.Fatalf("DefaultValidator: %v", err)
	}
	b, _ := protocol.DefaultValidator()
	if a != b {
		t.Fatalf("expected the same validator instance")
	}
}
