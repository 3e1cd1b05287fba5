package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/shellrace/config"
	"github.com/pthm-cable/shellrace/game"
	"github.com/pthm-cable/shellrace/genetics"
	"github.com/pthm-cable/shellrace/server"
	"github.com/pthm-cable/shellrace/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mode := flag.String("mode", "race", "race (headless career) or serve (live server)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	races := flag.Int("races", 100, "Races to run in race mode (0 = until interrupted)")
	entrants := flag.Int("entrants", 0, "Turtles per race (0 = use config)")
	level := flag.Int("level", 0, "Shop level for purchased turtles")
	courseKind := flag.String("course", "linear", "Race layout: linear or checkpoint")
	maxTicks := flag.Int("max-ticks", 0, "Tick limit per race (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for stable snapshots")
	resume := flag.String("resume", "", "Snapshot file to resume the career from")
	hallOfFame := flag.String("hall-of-fame", "", "hall_of_fame.json to preload")
	addr := flag.String("addr", "", "Listen address in serve mode (empty = use config)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logStats := flag.Bool("log-stats", false, "Output race and window stats via slog")

	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*logLevel)); err != nil {
		slog.Error("invalid log level", "level", *logLevel, "error", err)
		os.Exit(1)
	}
	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch *mode {
	case "race":
		err = runCareer(ctx, logger, *races, game.Options{
			Seed:        rngSeed,
			Entrants:    *entrants,
			Level:       *level,
			Course:      *courseKind,
			MaxTicks:    *maxTicks,
			OutputDir:   *outputDir,
			SnapshotDir: *snapshotDir,
			Resume:      *resume,
			HallOfFame:  *hallOfFame,
			LogStats:    *logStats,
			Logger:      logger,
		})
	case "serve":
		err = serve(ctx, logger, serveOptions{
			addr:       *addr,
			seed:       rngSeed,
			course:     *courseKind,
			hallOfFame: *hallOfFame,
			outputDir:  *outputDir,
		})
	default:
		slog.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("exiting", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

// runCareer races the stable until the race count is reached or ctx ends.
func runCareer(ctx context.Context, logger *slog.Logger, races int, opts game.Options) error {
	g, err := game.NewGameWithOptions(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Unload(); err != nil {
			logger.Error("failed to close output", "error", err)
		}
	}()

	logger.Info("starting career",
		"seed", opts.Seed,
		"races", races,
		"course", opts.Course,
		"resume", opts.Resume,
	)

	for races == 0 || g.Races() < races {
		if ctx.Err() != nil {
			logger.Info("interrupted", "races", g.Races())
			return nil
		}
		if _, err := g.Update(); err != nil {
			return err
		}
	}
	logger.Info("career finished",
		"races", g.Races(),
		"money", g.Money(),
		"retired", len(g.Retired()),
		"hall_of_fame", g.HallOfFame().Size(),
	)
	return nil
}

type serveOptions struct {
	addr       string
	seed       int64
	course     string
	hallOfFame string
	outputDir  string
}

// serve runs the live race loop, the spectator hub and the HTTP API until
// ctx ends, then shuts the server down gracefully.
func serve(ctx context.Context, logger *slog.Logger, opts serveOptions) error {
	cfg := config.Cfg()
	engine, err := genetics.NewEngine(genetics.DefaultSchema(), cfg.Genetics.MutationRate)
	if err != nil {
		return err
	}

	hof := telemetry.NewHallOfFame(cfg.Telemetry.HallOfFameSize, cfg.Telemetry.HallOfFame)
	if opts.hallOfFame != "" {
		if hof, err = telemetry.LoadHallOfFameFromFile(opts.hallOfFame, cfg.Telemetry.HallOfFameSize, cfg.Telemetry.HallOfFame); err != nil {
			return err
		}
	}
	output, err := telemetry.NewOutputManager(opts.outputDir)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := server.NewMetrics(reg)
	metrics.SetHallOfFameSize(hof.Size())

	hub := server.NewHub(logger, metrics)
	orch, err := server.NewOrchestrator(server.OrchestratorOptions{
		Config:     cfg,
		Engine:     engine,
		HallOfFame: hof,
		Publisher:  hub,
		Metrics:    metrics,
		Logger:     logger,
		Seed:       opts.seed,
		Course:     opts.course,
	})
	if err != nil {
		return err
	}
	handler, err := server.NewHandler(server.HandlerOptions{
		Config:       cfg,
		Engine:       engine,
		Orchestrator: orch,
		Hub:          hub,
		Metrics:      metrics,
		Gatherer:     reg,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	addr := opts.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error {
		logger.Info("listening", "addr", addr, "course", opts.course, "seed", opts.seed)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if werr := output.WriteHallOfFame(hof); werr != nil {
		logger.Error("failed to write hall of fame", "error", werr)
	}
	logger.Info("server stopped", "races", orch.Races())
	return err
}
