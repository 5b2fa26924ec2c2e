package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"

	"gridsnake.dev/internal/persistence/kv"
	"gridsnake.dev/internal/scores"
	"gridsnake.dev/internal/sim/game"
	"gridsnake.dev/internal/sim/session"
	"gridsnake.dev/internal/sim/tuning"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", defaultDataDir(), "where the leaderboard and log live")
		backend    = flag.String("kv", "sqlite", "leaderboard backend: sqlite|file|memory")
		seed       = flag.Uint64("seed", 0, "food rng seed (0 = time based)")
	)
	flag.Parse()

	// The terminal belongs to tcell, so logs go to a file.
	logger := log.New(io.Discard, "[snake] ", log.LstdFlags|log.Lmicroseconds)
	if err := os.MkdirAll(*dataDir, 0o755); err == nil {
		if f, err := os.OpenFile(filepath.Join(*dataDir, "snake.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			defer f.Close()
			logger.SetOutput(f)
		}
	}

	if err := run(*tuningPath, *dataDir, *backend, *seed, logger); err != nil {
		fmt.Fprintln(os.Stderr, "snake:", err)
		os.Exit(1)
	}
}

func run(tuningPath, dataDir, backend string, seed uint64, logger *log.Logger) error {
	tune, err := tuning.Load(tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tuningPath)
		tune = tuning.Defaults()
	}
	gcfg, err := tune.GameConfig()
	if err != nil {
		return err
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	eng, err := game.New(gcfg, game.NewRandomFood(seed))
	if err != nil {
		return err
	}

	store, err := kv.Open(backend, dataDir)
	if err != nil {
		return fmt.Errorf("open leaderboard: %w", err)
	}
	defer store.Close()
	board := scores.New(store, scores.Config{
		Key:         tune.Leaderboard.SlotKey,
		MaxEntries:  tune.Leaderboard.MaxEntries,
		DefaultName: tune.Leaderboard.DefaultName,
	}, logger)

	sess := session.New(eng, session.Config{
		TickPeriod: time.Duration(tune.TickDurationMs) * time.Millisecond,
		Scheduler:  session.TickerScheduler{},
		Logger:     logger,
	})

	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()
	s.HideCursor()

	a := newApp(sess, board, logger)
	frames, unsub := sess.Subscribe(16)
	defer unsub()
	sess.Start()
	defer sess.Stop()

	return loop(context.Background(), s, a, frames)
}

func loop(ctx context.Context, s tcell.Screen, a *app, frames <-chan session.Frame) error {
	events := make(chan tcell.Event, 32)
	go func() {
		for {
			ev := s.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	a.draw(s)
	for !a.quit {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case *tcell.EventResize:
				s.Sync()
			case *tcell.EventKey:
				a.handleKey(ctx, e)
			}
		case f := <-frames:
			a.onFrame(ctx, f)
		case <-ctx.Done():
			return ctx.Err()
		}
		a.draw(s)
	}
	return nil
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gridsnake")
	}
	return "./data"
}
