// Command vocalaid is the main entry point for the Vocalaid intent
// classification server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vocalaid/vocalaid/internal/classify"
	"github.com/vocalaid/vocalaid/internal/config"
	"github.com/vocalaid/vocalaid/internal/feedback"
	"github.com/vocalaid/vocalaid/internal/health"
	"github.com/vocalaid/vocalaid/internal/notify"
	"github.com/vocalaid/vocalaid/internal/observe"
	"github.com/vocalaid/vocalaid/internal/server"
	"github.com/vocalaid/vocalaid/pkg/refstore"
	"github.com/vocalaid/vocalaid/pkg/refstore/postgres"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocalaid: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocalaid: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust verbosity
	// without rebuilding the handler.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("vocalaid starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vocalaid",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Reference store ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	store, err := reg.CreateStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open reference store", "backend", cfg.Store.Backend, "err", err)
		return 1
	}
	if closer, ok := store.(interface{ Close() }); ok {
		defer closer.Close()
	}
	slog.Info("reference store ready", "backend", cfg.Store.Backend, "dimensions", store.Dimensions())

	if cfg.Store.BootstrapPath != "" {
		n, err := refstore.LoadFile(ctx, store, cfg.Store.BootstrapPath, true)
		if err != nil {
			slog.Error("bootstrap snapshot load failed", "path", cfg.Store.BootstrapPath, "err", err)
			return 1
		}
		slog.Info("bootstrap snapshot loaded", "path", cfg.Store.BootstrapPath, "records", n)
	}

	counts, err := store.CountByIntent(ctx)
	if err != nil {
		slog.Error("reference store probe failed", "err", err)
		return 1
	}
	var total int
	for _, n := range counts {
		total += n
	}
	metrics.ReferenceRecords.Add(ctx, int64(total))

	// ── Engine, feedback loop, server ─────────────────────────────────────────
	engine := classify.NewEngine(store, metrics, tunablesFrom(cfg))

	recOpts := []feedback.Option{
		feedback.WithPendingTTL(time.Duration(cfg.Feedback.PendingTTL)),
		feedback.WithPendingCap(cfg.Feedback.PendingCap),
	}
	if cfg.Feedback.AuditPath != "" {
		recOpts = append(recOpts, feedback.WithAuditLog(cfg.Feedback.AuditPath))
	}
	recorder := feedback.NewRecorder(store, metrics, recOpts...)

	checker := health.New(health.Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := store.CountByIntent(ctx)
			return err
		},
	})

	srv := server.New(engine, recorder, store,
		server.WithMetrics(metrics),
		server.WithHealth(checker),
		server.WithNotifier(notify.NewLogNotifier(logger)),
		server.WithRateLimit(cfg.Server.RateLimitPerMin),
	)

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.Empty() {
			return
		}
		slog.Info("configuration changed", "diff", d.String())
		if d.ClassifyChanged || d.PhoneticChanged {
			engine.Apply(tunablesFrom(new))
			slog.Info("classification tunables applied")
		}
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		for _, field := range d.Ignored {
			slog.Warn("config change requires restart, ignored", "field", field)
		}
	})
	if err != nil {
		slog.Warn("config hot reload unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg, total)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	exitCode := 0
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
		exitCode = 1
	}
	if err := shutdownOtel(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return exitCode
}

// registerBuiltinBackends wires the store implementations that ship with
// Vocalaid into reg.
func registerBuiltinBackends(reg *config.Registry) {
	reg.RegisterStore(config.BackendMemory, func(_ context.Context, cfg config.StoreConfig) (refstore.Store, error) {
		return refstore.NewMemStore(cfg.Dimensions)
	})
	reg.RegisterStore(config.BackendPostgres, func(ctx context.Context, cfg config.StoreConfig) (refstore.Store, error) {
		return postgres.Connect(ctx, cfg.PostgresDSN, cfg.Dimensions)
	})
}

// tunablesFrom converts the validated config into the engine's parameter set.
func tunablesFrom(cfg *config.Config) classify.Tunables {
	return classify.Tunables{
		K:                  cfg.Classify.K,
		Alpha:              cfg.Classify.Alpha,
		EmbeddingWeight:    cfg.Classify.EmbeddingWeight,
		PhoneticWeight:     cfg.Classify.PhoneticWeight,
		MarginScale:        cfg.Classify.MarginScale,
		MinSupport:         cfg.Classify.MinSupport,
		ConfirmThreshold:   cfg.Classify.ConfirmThreshold,
		UncertainThreshold: cfg.Classify.UncertainThreshold,
		EmergencyThreshold: cfg.Classify.EmergencyThreshold,
		MaxCodeDistance:    cfg.Phonetic.MaxCodeDistance,
		ExtraVariants:      cfg.ExtraVariants(),
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, records int) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Vocalaid — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Store", string(cfg.Store.Backend))
	printRow("Dimensions", fmt.Sprintf("%d", cfg.Store.Dimensions))
	printRow("Reference set", fmt.Sprintf("%d records", records))
	printRow("KNN k / alpha", fmt.Sprintf("%d / %.2f", cfg.Classify.K, cfg.Classify.Alpha))
	printRow("Fusion e/p", fmt.Sprintf("%.2f / %.2f", cfg.Classify.EmbeddingWeight, cfg.Classify.PhoneticWeight))
	if cfg.Server.RateLimitPerMin > 0 {
		printRow("Rate limit", fmt.Sprintf("%d req/min", cfg.Server.RateLimitPerMin))
	} else {
		printRow("Rate limit", "(disabled)")
	}
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
