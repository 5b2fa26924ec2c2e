package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridsnake.dev/internal/protocol"
	"gridsnake.dev/internal/scores"
	"gridsnake.dev/internal/sim/game"
	"gridsnake.dev/internal/sim/session"
)

// Server bridges one game session to websocket clients. Every client sees the
// same game; any client may steer it.
type Server struct {
	sess   *session.Session
	scores *scores.Store
	valid  *protocol.Validator
	log    *log.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	lastRun  string
	lastOver protocol.GameOverMsg
	claimed  bool
}

type client struct {
	id  string
	out chan []byte
}

func NewServer(sess *session.Session, store *scores.Store, valid *protocol.Validator, logger *log.Logger) *Server {
	s := &Server{
		sess:    sess,
		scores:  store,
		valid:   valid,
		log:     logger,
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	sess.OnGameOver(s.handleGameOver)
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := s.handshake(r.Context(), conn)
		if c == nil {
			return
		}
		frames, unsubscribe := s.sess.Subscribe(cap(c.out))
		s.mu.Lock()
		s.clients[c] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			unsubscribe()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case f, ok := <-frames:
					if !ok {
						return
					}
					b, _ = json.Marshal(stateMsg(f))
				case msg := <-c.out:
					b = msg
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.dispatch(ctx, c, msg)
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	if err := s.valid.Validate(protocol.TypeHello, msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad HELLO"), time.Now().Add(time.Second))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	c := &client{id: uuid.NewString(), out: make(chan []byte, maxQ)}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       c.id,
		GameParams: protocol.GameParams{
			GridSize:   s.sess.GridSize(),
			TickMs:     int(s.sess.TickPeriod() / time.Millisecond),
			MaxEntries: s.scores.MaxEntries(),
		},
		State:       stateMsg(s.sess.Snapshot()),
		Leaderboard: leaderboardMsg(s.scores.List(ctx)),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	name := strings.TrimSpace(hello.PlayerName)
	if name == "" {
		name = "anonymous"
	}
	s.log.Printf("client %s joined (%s)", c.id, name)
	return c
}

func (s *Server) dispatch(ctx context.Context, c *client, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.sendTo(c, protocol.NewError(protocol.ErrProtoBadRequest, "invalid json"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.sendTo(c, protocol.NewError(protocol.ErrProtoVersion, "bad protocol_version"))
		return
	}
	switch base.Type {
	case protocol.TypeInput, protocol.TypeSubmitScore:
	default:
		s.sendTo(c, protocol.NewError(protocol.ErrProtoBadRequest, "unexpected message type"))
		return
	}
	if err := s.valid.Validate(base.Type, msg); err != nil {
		s.sendTo(c, protocol.NewError(protocol.ErrBadRequest, err.Error()))
		return
	}

	switch base.Type {
	case protocol.TypeInput:
		var in protocol.InputMsg
		if err := json.Unmarshal(msg, &in); err != nil {
			s.sendTo(c, protocol.NewError(protocol.ErrBadRequest, err.Error()))
			return
		}
		s.applyInput(in.Action)
	case protocol.TypeSubmitScore:
		var sub protocol.SubmitScoreMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			s.sendTo(c, protocol.NewError(protocol.ErrBadRequest, err.Error()))
			return
		}
		if code, why := s.submit(ctx, sub); code != "" {
			s.sendTo(c, protocol.NewError(code, why))
		}
	}
}

func (s *Server) applyInput(action string) {
	switch action {
	case protocol.ActionPause:
		s.sess.Input(session.Pause())
	case protocol.ActionReset:
		s.sess.Reset()
	default:
		if d, err := game.ParseDirection(action); err == nil {
			s.sess.Input(session.Turn(d))
		}
	}
}

// submit records the score of the most recently finished run. Each run can be
// recorded once; the score comes from the server's state, never the client.
func (s *Server) submit(ctx context.Context, sub protocol.SubmitScoreMsg) (code, why string) {
	s.mu.Lock()
	switch {
	case sub.RunID != s.lastRun:
		s.mu.Unlock()
		if sub.RunID == s.sess.Snapshot().RunID {
			return protocol.ErrNotFinished, "run still in progress"
		}
		return protocol.ErrStale, "unknown or expired run"
	case s.claimed:
		s.mu.Unlock()
		return protocol.ErrConflict, "score already submitted"
	}
	s.claimed = true
	score := s.lastOver.Score
	s.mu.Unlock()

	entries := s.scores.Record(ctx, sub.Name, score)
	s.log.Printf("score recorded run=%s score=%d", sub.RunID, score)
	s.broadcast(leaderboardMsg(entries))
	return "", ""
}

func (s *Server) handleGameOver(ev session.GameOver) {
	rank := scores.Rank(s.scores.List(context.Background()), ev.Score, s.scores.MaxEntries())
	msg := protocol.GameOverMsg{
		Type:            protocol.TypeGameOver,
		ProtocolVersion: protocol.Version,
		RunID:           ev.RunID,
		Score:           ev.Score,
		Collision:       ev.Collision.String(),
		Rank:            rank,
	}
	s.mu.Lock()
	s.lastRun = ev.RunID
	s.lastOver = msg
	s.claimed = false
	s.mu.Unlock()
	s.broadcast(msg)
}

// LeaderboardHandler serves the current board as JSON.
func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(leaderboardMsg(s.scores.List(r.Context())))
	}
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("broadcast: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.out <- b:
		default:
		}
	}
}

func (s *Server) sendTo(c *client, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- b:
	default:
	}
}

func stateMsg(f session.Frame) protocol.StateMsg {
	st := f.State
	snake := make([][2]int, len(st.Snake))
	for i, p := range st.Snake {
		snake[i] = [2]int{p.X, p.Y}
	}
	m := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		RunID:           f.RunID,
		Tick:            st.Tick,
		Phase:           string(st.Phase()),
		Direction:       st.Direction.String(),
		Snake:           snake,
		Food:            [2]int{st.Food.X, st.Food.Y},
		Score:           st.Score,
		Ate:             f.Result.Ate,
	}
	if f.Result.Collision != game.CollisionNone {
		m.Collision = f.Result.Collision.String()
	}
	return m
}

func leaderboardMsg(entries []scores.Entry) protocol.LeaderboardMsg {
	out := make([]protocol.LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, protocol.LeaderboardEntry{Rank: i + 1, Name: e.Name, Score: e.Score})
	}
	return protocol.LeaderboardMsg{
		Type:            protocol.TypeLeaderboard,
		ProtocolVersion: protocol.Version,
		Entries:         out,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
