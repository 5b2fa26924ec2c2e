package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "gridsnake.dev/internal/persistence/log"
	"gridsnake.dev/internal/sim/game"
	"gridsnake.dev/internal/sim/session"
)

func main() {
	var (
		ticksDir = flag.String("ticks", "./data/ticks", "dir containing ticks-*.jsonl.zst")
		gridSize = flag.Int("grid", game.DefaultGridSize, "grid size the runs were played on")
		runID    = flag.String("run", "", "only audit this run id (optional)")
	)
	flag.Parse()

	files, err := persistlog.ListTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	a := newAuditor(*gridSize)
	for _, path := range files {
		err := persistlog.ReadTickFile(path, func(e session.TickLogEntry) error {
			if *runID != "" && e.RunID != *runID {
				return nil
			}
			return a.add(e)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}

	for _, r := range a.summaries() {
		end := "open"
		if r.Ended {
			end = r.Collision
		}
		fmt.Printf("run=%s ticks=%d-%d score=%d len=%d eaten=%d inputs=%d end=%s dur=%s\n",
			r.RunID, r.FirstTick, r.LastTick, r.Score, r.Length, r.Eaten, r.Inputs, end, r.End.Sub(r.Start))
	}
	if len(a.violations) > 0 {
		for _, v := range a.violations {
			fmt.Fprintln(os.Stderr, "violation:", v)
		}
		os.Exit(1)
	}
	fmt.Printf("replay ok: files=%d runs=%d\n", len(files), len(a.order))
}
