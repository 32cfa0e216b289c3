package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/spray/cloud"
	"github.com/pthm-cable/spray/config"
	"github.com/pthm-cable/spray/parcel"
	"github.com/pthm-cable/spray/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (empty = use config)")
	snapshot := flag.Bool("snapshot", false, "Write a JSON snapshot of the parcel cloud at the end of the run")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = use config)")
	workers := flag.Int("workers", -1, "Parcel generation workers (-1 = use config, 0 = GOMAXPROCS)")
	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *workers >= 0 {
		cfg.Run.Workers = *workers
	}
	if *outputDir != "" {
		cfg.Telemetry.OutputDir = *outputDir
	}
	if *statsWindow > 0 {
		cfg.Telemetry.WindowSec = *statsWindow
	}
	if *snapshot {
		cfg.Telemetry.Snapshot = true
	}

	setup, err := cfg.Build()
	if err != nil {
		slog.Error("failed to build injectors", "error", err)
		os.Exit(1)
	}

	out, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	opts := cloud.Options{
		Workers:       cfg.Run.Workers,
		ParcelDensity: cfg.Parcel.Density,
		WindowSec:     cfg.Telemetry.WindowSec,
		OnWindow: func(ws telemetry.WindowStats, ps telemetry.PerfStats) {
			if *logStats {
				ws.LogStats()
				ps.LogStats()
			}
			if err := out.WriteTelemetry(ws); err != nil {
				slog.Warn("failed to write telemetry", "error", err)
			}
			if err := out.WritePerf(ps, ws.WindowEnd); err != nil {
				slog.Warn("failed to write perf stats", "error", err)
			}
		},
	}
	if cfg.Telemetry.WriteParcels {
		opts.OnStep = func(_ float64, added []parcel.Parcel) {
			if err := out.WriteParcels(added); err != nil {
				slog.Warn("failed to write parcels", "error", err)
			}
		}
	}

	sched, err := cloud.New(parcel.NewCloud(), opts)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Close()

	names := make([]string, 0, len(setup.Injectors))
	for _, inj := range setup.Injectors {
		sched.Add(inj)
		names = append(names, inj.Name())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting injection run",
		"seed", cfg.Seed,
		"injectors", names,
		"start", cfg.Run.Start,
		"end", cfg.Derived.End,
		"dt", cfg.Run.DT,
		"workers", cfg.Run.Workers,
		"cells", cfg.Derived.NumCells,
	)

	runErr := sched.Run(ctx, cfg.Run.Start, cfg.Derived.End, cfg.Run.DT)
	if runErr != nil {
		slog.Warn("run stopped early", "error", runErr)
	}

	for _, inj := range setup.Injectors {
		slog.Info("injector summary",
			"injector", inj.Name(),
			"speed_clamps", inj.SpeedClamps(),
			"mesh_misses", inj.Misses(),
		)
	}
	c := sched.Cloud()
	slog.Info("run complete", "parcels", c.Len(), "mass", c.TotalMass())

	if cfg.Telemetry.Snapshot {
		dir := cfg.Telemetry.OutputDir
		if dir == "" {
			dir = "."
		}
		path, err := telemetry.SaveSnapshot(telemetry.NewSnapshot(cfg.Seed, cfg.Derived.End, names, c.Parcels()), dir)
		if err != nil {
			slog.Error("failed to save snapshot", "error", err)
			os.Exit(1)
		}
		slog.Info("snapshot saved", "path", path)
	}
}
