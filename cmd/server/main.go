package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gridsnake.dev/internal/persistence/kv"
	persistlog "gridsnake.dev/internal/persistence/log"
	"gridsnake.dev/internal/protocol"
	"gridsnake.dev/internal/scores"
	"gridsnake.dev/internal/sim/game"
	"gridsnake.dev/internal/sim/session"
	"gridsnake.dev/internal/sim/tuning"
	"gridsnake.dev/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		backend     = flag.String("kv", "sqlite", "leaderboard backend: sqlite|file|memory")
		seed        = flag.Uint64("seed", 0, "food rng seed (0 = time based)")
		disableTick = flag.Bool("disable_ticklog", false, "disable the compressed per-tick log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	store, err := kv.Open(*backend, filepath.Join(*dataDir, "kv"))
	if err != nil {
		logger.Fatalf("open kv backend: %v", err)
	}
	defer store.Close()

	var tickLog *persistlog.TickLogger
	if !*disableTick {
		tickLog = persistlog.NewTickLogger(*dataDir)
		defer tickLog.Close()
	}

	rt, err := newRuntime(runtimeConfig{
		Tuning:    tune,
		KV:        store,
		TickLog:   tickLog,
		Seed:      *seed,
		Scheduler: session.TickerScheduler{},
		Metrics:   envBool("SNAKE_ENABLE_METRICS", true),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("runtime: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	rt.sess.Start()
	defer rt.sess.Stop()

	mux := rt.mux
	if envBool("SNAKE_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (SNAKE_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (grid=%d tick=%dms kv=%s)", *addr, tune.GridSize, tune.TickDurationMs, *backend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

type runtimeConfig struct {
	Tuning    tuning.Tuning
	KV        kv.Store
	TickLog   *persistlog.TickLogger
	Seed      uint64
	Scheduler session.Scheduler
	Metrics   bool
	Logger    *log.Logger
}

type runtime struct {
	sess   *session.Session
	scores *scores.Store
	ws     *ws.Server
	mux    *http.ServeMux
}

func newRuntime(cfg runtimeConfig) (*runtime, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	gcfg, err := cfg.Tuning.GameConfig()
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	eng, err := game.New(gcfg, game.NewRandomFood(seed))
	if err != nil {
		return nil, err
	}
	sessCfg := session.Config{
		TickPeriod: time.Duration(cfg.Tuning.TickDurationMs) * time.Millisecond,
		Scheduler:  cfg.Scheduler,
		Logger:     cfg.Logger,
	}
	if cfg.TickLog != nil {
		sessCfg.TickLogger = cfg.TickLog
	}
	sess := session.New(eng, sessCfg)

	lb := cfg.Tuning.Leaderboard
	board := scores.New(cfg.KV, scores.Config{
		Key:         lb.SlotKey,
		MaxEntries:  lb.MaxEntries,
		DefaultName: lb.DefaultName,
	}, cfg.Logger)

	valid, err := protocol.DefaultValidator()
	if err != nil {
		return nil, fmt.Errorf("protocol schemas: %w", err)
	}
	wsSrv := ws.NewServer(sess, board, valid, cfg.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	if cfg.Metrics {
		mux.HandleFunc("/metrics", metricsHandler(sess, wsSrv))
	}
	mux.HandleFunc("/v1/leaderboard", wsSrv.LeaderboardHandler())
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	return &runtime{sess: sess, scores: board, ws: wsSrv, mux: mux}, nil
}

func metricsHandler(sess *session.Session, wsSrv *ws.Server) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := sess.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP gridsnake_session_tick Ticks advanced in the current run.\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_session_tick gauge\n")
		fmt.Fprintf(rw, "gridsnake_session_tick %d\n", m.Tick)

		fmt.Fprintf(rw, "# HELP gridsnake_session_score Score of the current run.\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_session_score gauge\n")
		fmt.Fprintf(rw, "gridsnake_session_score %d\n", m.Score)

		fmt.Fprintf(rw, "# HELP gridsnake_session_length Snake length in the current run.\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_session_length gauge\n")
		fmt.Fprintf(rw, "gridsnake_session_length %d\n", m.Length)

		fmt.Fprintf(rw, "# HELP gridsnake_session_phase Current phase (1 for the active one).\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_session_phase gauge\n")
		for _, p := range []game.Phase{game.PhasePaused, game.PhaseRunning, game.PhaseGameOver} {
			v := 0
			if m.Phase == p {
				v = 1
			}
			fmt.Fprintf(rw, "gridsnake_session_phase{phase=%q} %d\n", p, v)
		}

		fmt.Fprintf(rw, "# HELP gridsnake_session_runs_total Runs started since boot.\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_session_runs_total counter\n")
		fmt.Fprintf(rw, "gridsnake_session_runs_total %d\n", m.Runs)

		fmt.Fprintf(rw, "# HELP gridsnake_session_pending_inputs Inputs queued for the next tick.\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_session_pending_inputs gauge\n")
		fmt.Fprintf(rw, "gridsnake_session_pending_inputs %d\n", m.Pending)

		fmt.Fprintf(rw, "# HELP gridsnake_session_step_ms Last step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_session_step_ms gauge\n")
		fmt.Fprintf(rw, "gridsnake_session_step_ms %.3f\n", m.StepMS)

		fmt.Fprintf(rw, "# HELP gridsnake_ws_clients Connected websocket clients.\n")
		fmt.Fprintf(rw, "# TYPE gridsnake_ws_clients gauge\n")
		fmt.Fprintf(rw, "gridsnake_ws_clients %d\n", wsSrv.Clients())
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
