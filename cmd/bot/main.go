package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"gridsnake.dev/internal/protocol"
	"gridsnake.dev/internal/sim/game"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "name submitted to the leaderboard")
		games = flag.Int("games", 1, "runs to play before exiting (0 = forever)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 16},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	b := &bot{conn: conn, log: logger, name: *name, games: *games}
	for !b.done {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.handle(msg)
	}
}

type bot struct {
	conn  *websocket.Conn
	log   *log.Logger
	name  string
	games int

	gridSize int
	played   int
	lastTick uint64
	done     bool
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		b.gridSize = w.GameParams.GridSize
		b.log.Printf("WELCOME session=%s grid=%d tick=%dms phase=%s", w.SessionID, w.GameParams.GridSize, w.GameParams.TickMs, w.State.Phase)
		switch w.State.Phase {
		case string(game.PhasePaused):
			b.input(protocol.ActionPause)
		case string(game.PhaseGameOver):
			b.input(protocol.ActionReset)
		}

	case protocol.TypeState:
		var st protocol.StateMsg
		if err := json.Unmarshal(msg, &st); err != nil {
			return
		}
		if st.Phase == string(game.PhasePaused) && st.Tick == 0 {
			// fresh run after a reset
			b.lastTick = 0
			b.input(protocol.ActionPause)
			return
		}
		if st.Phase != string(game.PhaseRunning) || (st.Tick != 0 && st.Tick == b.lastTick) {
			return
		}
		b.lastTick = st.Tick
		if d := steer(st, b.gridSize); d != game.DirNone {
			b.input(d.String())
		}

	case protocol.TypeGameOver:
		var over protocol.GameOverMsg
		if err := json.Unmarshal(msg, &over); err != nil {
			return
		}
		b.played++
		b.log.Printf("GAME_OVER run=%s score=%d collision=%s rank=%d", over.RunID, over.Score, over.Collision, over.Rank)
		if over.Rank > 0 {
			_ = b.conn.WriteJSON(protocol.SubmitScoreMsg{
				Type:            protocol.TypeSubmitScore,
				ProtocolVersion: protocol.Version,
				RunID:           over.RunID,
				Name:            b.name,
			})
		}
		if b.games > 0 && b.played >= b.games {
			// let the LEADERBOARD reply arrive before closing
			time.Sleep(200 * time.Millisecond)
			b.done = true
			return
		}
		b.input(protocol.ActionReset)

	case protocol.TypeLeaderboard:
		var lb protocol.LeaderboardMsg
		if err := json.Unmarshal(msg, &lb); err != nil {
			return
		}
		for _, e := range lb.Entries {
			b.log.Printf("  #%d %-16s %d", e.Rank, e.Name, e.Score)
		}

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err == nil {
			b.log.Printf("ERROR %s: %s", e.Code, e.Message)
		}
	}
}

func (b *bot) input(action string) {
	_ = b.conn.WriteJSON(protocol.InputMsg{
		Type:            protocol.TypeInput,
		ProtocolVersion: protocol.Version,
		Action:          action,
	})
}
