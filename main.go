package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soocke/marker-lens-go/app"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/store"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to the JSON config file")
	targetsPath := flag.String("targets", "", "targets JSON to import into the database, or scan from directly when no database is available")
	dbPath := flag.String("db", "", "sqlite database path (overrides the config file)")
	debugFlag := flag.Bool("debug", false, "verbose logging and runtime stats")
	history := flag.Int("history", 0, "print the N most recent scans and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if *debugFlag {
		cfg.Debug = true
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)
	if err != nil {
		logger.Error("config load failed, using defaults", "path", *cfgPath, "error", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *targetsPath != "" {
		cfg.TargetsPath = *targetsPath
	}

	opts := app.Options{ConfigPath: *cfgPath, TargetsPath: cfg.TargetsPath, Logger: logger}
	var st *store.Store
	if cfg.DatabasePath != "" {
		st, err = store.Open(cfg.DatabasePath, logger)
		if err != nil {
			logger.Error("store open failed, scans will not be recorded", "path", cfg.DatabasePath, "error", err)
			st = nil
		} else {
			defer st.Close()
			opts.Store = st
		}
	}

	if *history > 0 {
		if err := printHistory(st, *history); err != nil {
			logger.Error("history", "error", err)
			os.Exit(1)
		}
		return
	}
	if st != nil && *targetsPath != "" {
		importTargets(st, *targetsPath, logger)
	}

	application := app.NewApp("Marker Lens", 900, 720, cfg, opts)
	application.Start()
}

func importTargets(st *store.Store, path string, logger *slog.Logger) {
	recs, err := store.LoadTargetsJSON(path)
	if err != nil {
		logger.Error("targets load failed", "path", path, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := st.ImportTargets(ctx, recs)
	if err != nil {
		logger.Error("targets import failed", "path", path, "error", err)
		return
	}
	logger.Info("targets imported", "path", path, "count", n)
}

func printHistory(st *store.Store, n int) error {
	if st == nil {
		return fmt.Errorf("no database available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events, err := st.RecentScans(ctx, n)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Printf("%s  %-24s session=%s\n", ev.Timestamp.Format(time.RFC3339), ev.TargetID, ev.SessionID)
	}
	return nil
}
