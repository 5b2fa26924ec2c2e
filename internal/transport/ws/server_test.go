package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"gridsnake.dev/internal/persistence/kv"
	"gridsnake.dev/internal/protocol"
	"gridsnake.dev/internal/scores"
	"gridsnake.dev/internal/sim/game"
	"gridsnake.dev/internal/sim/session"
)

type fixture struct {
	sess   *session.Session
	sched  *session.ManualScheduler
	scores *scores.Store
	srv    *Server
	http   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, err := game.New(game.DefaultConfig(), game.NewFixedFood(game.Position{X: 11, Y: 10}, game.Position{X: 0, Y: 0}))
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	sched := session.NewManualScheduler()
	sess := session.New(eng, session.Config{TickPeriod: 300 * time.Millisecond, Scheduler: sched})
	sess.Start()
	t.Cleanup(sess.Stop)

	store := scores.New(kv.NewMemory(), scores.Config{}, nil)
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	srv := NewServer(sess, store, v, log.New(io.Discard, "", 0))

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", srv.Handler())
	mux.HandleFunc("/v1/leaderboard", srv.LeaderboardHandler())
	hs := httptest.NewServer(mux)
	t.Cleanup(hs.Close)

	return &fixture{sess: sess, sched: sched, scores: store, srv: srv, http: hs}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads messages until one of type typ arrives and decodes it into out.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, out any) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type != typ {
			continue
		}
		if err := json.Unmarshal(msg, out); err != nil {
			t.Fatalf("unmarshal %s: %v", typ, err)
		}
		return
	}
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: "Ann"})
	var w protocol.WelcomeMsg
	readUntil(t, conn, protocol.TypeWelcome, &w)
	return w
}

func input(action string) protocol.InputMsg {
	return protocol.InputMsg{Type: protocol.TypeInput, ProtocolVersion: protocol.Version, Action: action}
}

func waitPending(t *testing.T, s *session.Session, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.Metrics().Pending < n {
		if time.Now().After(deadline) {
			t.Fatalf("input never queued")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitClients(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for srv.Clients() < n {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServer_Welcome(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	w := hello(t, conn)
	if w.GameParams.GridSize != 20 || w.GameParams.TickMs != 300 || w.GameParams.MaxEntries != 10 {
		t.Fatalf("params=%+v", w.GameParams)
	}
	if w.State.Phase != string(game.PhasePaused) || len(w.State.Snake) != 1 || w.State.Snake[0] != [2]int{10, 10} {
		t.Fatalf("state=%+v", w.State)
	}
	if w.Leaderboard.Entries == nil || len(w.Leaderboard.Entries) != 0 {
		t.Fatalf("leaderboard=%+v", w.Leaderboard)
	}
}

func TestServer_RejectsNonHello(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	send(t, conn, input(protocol.ActionUp))
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestServer_PlayToGameOverAndSubmit(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	hello(t, conn)
	waitClients(t, f.srv, 1)

	send(t, conn, input(protocol.ActionPause))
	waitPending(t, f.sess, 1)
	f.sched.Fire()

	var st protocol.StateMsg
	readUntil(t, conn, protocol.TypeState, &st)
	if st.Phase != string(game.PhaseRunning) || st.Score != 1 || !st.Ate {
		t.Fatalf("first state=%+v", st)
	}

	// Head is at (11,10); nine more ticks reach the right wall.
	f.sched.FireN(9)
	var over protocol.GameOverMsg
	readUntil(t, conn, protocol.TypeGameOver, &over)
	if over.Score != 1 || over.Collision != "WALL" || over.Rank != 1 {
		t.Fatalf("game over=%+v", over)
	}

	send(t, conn, protocol.SubmitScoreMsg{Type: protocol.TypeSubmitScore, ProtocolVersion: protocol.Version, RunID: over.RunID, Name: "Ann"})
	var board protocol.LeaderboardMsg
	readUntil(t, conn, protocol.TypeLeaderboard, &board)
	if len(board.Entries) != 1 || board.Entries[0] != (protocol.LeaderboardEntry{Rank: 1, Name: "Ann", Score: 1}) {
		t.Fatalf("board=%+v", board)
	}

	send(t, conn, protocol.SubmitScoreMsg{Type: protocol.TypeSubmitScore, ProtocolVersion: protocol.Version, RunID: over.RunID, Name: "Ann"})
	var e protocol.ErrorMsg
	readUntil(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrConflict {
		t.Fatalf("second submit code=%s", e.Code)
	}

	if got := f.scores.List(context.Background()); len(got) != 1 {
		t.Fatalf("persisted=%v", got)
	}
}

func TestServer_SubmitErrors(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	w := hello(t, conn)

	send(t, conn, protocol.SubmitScoreMsg{Type: protocol.TypeSubmitScore, ProtocolVersion: protocol.Version, RunID: w.State.RunID})
	var e protocol.ErrorMsg
	readUntil(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrNotFinished {
		t.Fatalf("code=%s want %s", e.Code, protocol.ErrNotFinished)
	}

	send(t, conn, protocol.SubmitScoreMsg{Type: protocol.TypeSubmitScore, ProtocolVersion: protocol.Version, RunID: "nope"})
	readUntil(t, conn, protocol.TypeError, &e)
	if e.Code != protocol.ErrStale {
		t.Fatalf("code=%s want %s", e.Code, protocol.ErrStale)
	}
}

func TestServer_BadMessages(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	hello(t, conn)

	cases := []struct {
		raw  string
		code string
	}{
		{`{"type":"INPUT","protocol_version":"1.0","action":"JUMP"}`, protocol.ErrBadRequest},
		{`{"type":"INPUT","protocol_version":"0.1","action":"UP"}`, protocol.ErrProtoVersion},
		{`{"type":"HELLO","protocol_version":"1.0"}`, protocol.ErrProtoBadRequest},
		{`not json`, protocol.ErrProtoBadRequest},
	}
	for _, tc := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tc.raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var e protocol.ErrorMsg
		readUntil(t, conn, protocol.TypeError, &e)
		if e.Code != tc.code {
			t.Fatalf("%s: code=%s want %s", tc.raw, e.Code, tc.code)
		}
	}
}

func TestServer_ResetInput(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	w := hello(t, conn)

	send(t, conn, input(protocol.ActionReset))
	var st protocol.StateMsg
	readUntil(t, conn, protocol.TypeState, &st)
	if st.RunID == w.State.RunID || st.Phase != string(game.PhasePaused) {
		t.Fatalf("state after reset=%+v", st)
	}
}

func TestServer_LeaderboardHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scores.Record(ctx, "Ann", 5)
	f.scores.Record(ctx, "Bob", 10)

	resp, err := http.Get(f.http.URL + "/v1/leaderboard")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var board protocol.LeaderboardMsg
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []protocol.LeaderboardEntry{{Rank: 1, Name: "Bob", Score: 10}, {Rank: 2, Name: "Ann", Score: 5}}
	if len(board.Entries) != 2 || board.Entries[0] != want[0] || board.Entries[1] != want[1] {
		t.Fatalf("board=%+v", board)
	}

	req, _ := http.NewRequest(http.MethodPost, f.http.URL+"/v1/leaderboard", nil)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp2.StatusCode)
	}
}
