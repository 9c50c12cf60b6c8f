// Package main is the command line entry point for the attendance engine.
//
// The CLI drives the engine directly: `sync` runs one fetch against the ERP,
// `status` renders the cached snapshot, `serve` exposes the REST API for host
// applications. Only the credential strategy works from the CLI; the cookie
// and script strategies need an embedded browser, which only a host
// application can supply.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unitrack-hub/attendance-engine/config"
	"github.com/unitrack-hub/attendance-engine/internal/application/command"
	"github.com/unitrack-hub/attendance-engine/internal/application/query"
	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/external/erp"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/messaging"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/persistence/postgres"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/persistence/redis"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/scheduler"
	"github.com/unitrack-hub/attendance-engine/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/unitrack-hub/attendance-engine/internal/interface/http"
	"github.com/unitrack-hub/attendance-engine/pkg/logger"
	"github.com/unitrack-hub/attendance-engine/pkg/timeutil"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND TREE
// ══════════════════════════════════════════════════════════════════════════════

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "unitrack",
		Short:         "ERP attendance synchronization engine",
		Long:          "Fetches attendance from a university ERP, classifies every subject\nagainst configurable thresholds and serves the result from a local cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSyncCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newClearCmd())

	return root
}

func newSyncCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch attendance from the ERP and update the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				username = os.Getenv("ERP_USERNAME")
			}
			if password == "" {
				password = os.Getenv("ERP_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("credentials required: --username/--password flags or ERP_USERNAME/ERP_PASSWORD env")
			}

			eng, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			out, err := eng.syncHandler.Handle(cmd.Context(), command.SyncAttendanceCommand{
				Username: username,
				Password: password,
			})
			if err != nil {
				return fmt.Errorf("%s (%w)", shared.UserGuidance(err), err)
			}

			renderResult(cmd, out.Result)
			if out.StorageErr != nil {
				cmd.Printf("\nwarning: %s\n", shared.UserGuidance(out.StorageErr))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "ERP username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "ERP password")

	return cmd
}

func newStatusCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached attendance snapshot without touching the ERP",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			view, err := eng.statusHandler.Handle(cmd.Context(), query.GetStatusQuery{TopN: top})
			if err != nil {
				if errors.Is(err, shared.ErrNeverSynced) {
					return errors.New("no attendance data yet, run `unitrack sync` first")
				}
				return err
			}

			renderResult(cmd, view.Result)
			cmd.Printf("\nFetched %s", timeutil.FormatRelative(view.Result.FetchedAt))
			if view.Stale {
				cmd.Print(" (stale, consider syncing)")
			}
			cmd.Println()
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "t", 0, "limit output to the N subjects needing most attention")

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			return eng.serve(cmd.Context())
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop the cached snapshot and saved thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.clearHandler.Handle(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("cache cleared")
			return nil
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

// engine holds the wired application with its infrastructure handles.
type engine struct {
	cfg *config.Config
	log *logger.Logger

	cache  *redis.Cache
	dbConn *postgres.Connection
	bus    *messaging.InMemoryEventBus

	syncHandler          *command.SyncAttendanceHandler
	thresholdsHandler    *command.UpdateThresholdsHandler
	clearHandler         *command.ClearCacheHandler
	statusHandler        *query.GetStatusHandler
	getThresholdsHandler *query.GetThresholdsHandler
	trendHandler         *query.GetTrendHandler
}

// buildEngine loads configuration and wires the full stack. The Postgres
// archive is optional; everything else is required.
func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.Observability.LogLevel))

	// Redis snapshot cache.
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	store := redis.NewSnapshotCache(cache, cfg.Redis.Scope)

	// Postgres sync archive, only when configured.
	var dbConn *postgres.Connection
	var history attendance.SyncHistory
	if cfg.Database.Enabled() {
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			cache.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			cache.Close()
			dbConn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		history = postgres.NewHistoryRepository(dbConn)
	}

	// ERP client stack. The CLI has no embedded browser, so the browser
	// strategies degrade to an acquirer that fails on use. Cached reads
	// (status, trend) keep working either way.
	erpCfg := buildERPConfig(cfg)
	acquirer, err := erp.NewAcquirer(erpCfg, nil)
	if err != nil {
		log.Warn("ERP strategy unavailable from the CLI, sync disabled", logger.Err(err))
		acquirer = unavailableAcquirer{err: err}
	}
	fetcher := erp.NewFetcher(erpCfg)
	normalizer := erp.NewNormalizer(cfg.ERP.FieldOverrides)

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())

	eng := &engine{
		cfg:                  cfg,
		log:                  log,
		cache:                cache,
		dbConn:               dbConn,
		bus:                  bus,
		syncHandler:          command.NewSyncAttendanceHandler(acquirer, fetcher, normalizer, store, history, bus, log),
		thresholdsHandler:    command.NewUpdateThresholdsHandler(store, log),
		clearHandler:         command.NewClearCacheHandler(store, log),
		statusHandler:        query.NewGetStatusHandler(store, cfg.Sync.Staleness, log),
		getThresholdsHandler: query.NewGetThresholdsHandler(store),
		trendHandler:         query.NewGetTrendHandler(historyOrEmpty(history)),
	}

	if err := eng.seedThresholds(ctx, store); err != nil {
		log.Warn("failed to seed thresholds from profile", logger.Err(err))
	}

	return eng, nil
}

// buildERPConfig maps the loaded profile onto the ERP client config.
func buildERPConfig(cfg *config.Config) erp.Config {
	out := erp.DefaultConfig(cfg.ERP.BaseURL)

	switch cfg.ERP.Strategy {
	case "cookie":
		out.Strategy = erp.StrategyCookieHarvest
	case "script":
		out.Strategy = erp.StrategyScriptInject
	default:
		out.Strategy = erp.StrategyCredential
	}

	if cfg.ERP.LoginPath != "" {
		out.LoginPath = cfg.ERP.LoginPath
	}
	if cfg.ERP.ProbePath != "" {
		out.ProbePath = cfg.ERP.ProbePath
	}
	if cfg.ERP.AttendancePath != "" {
		out.AttendancePath = cfg.ERP.AttendancePath
	}
	if cfg.ERP.UsernameField != "" {
		out.UsernameField = cfg.ERP.UsernameField
	}
	if cfg.ERP.PasswordField != "" {
		out.PasswordField = cfg.ERP.PasswordField
	}
	if len(cfg.ERP.LoginMarkers) > 0 {
		out.LoginMarkers = cfg.ERP.LoginMarkers
	}
	if cfg.ERP.FieldOverrides != nil {
		out.FieldOverrides = cfg.ERP.FieldOverrides
	}
	if cfg.ERP.LoginWait > 0 {
		out.LoginWait = cfg.ERP.LoginWait
	}
	if cfg.ERP.Timeout > 0 {
		out.Timeout = cfg.ERP.Timeout
	}

	return out
}

// seedThresholds writes the profile's threshold configuration into the store
// when nothing has been saved yet. Updates made later through the API win
// over the profile.
func (e *engine) seedThresholds(ctx context.Context, store attendance.SnapshotStore) error {
	current, err := e.getThresholdsHandler.Handle(ctx)
	if err != nil {
		return err
	}
	if !configsEqual(current, attendance.DefaultThresholdConfig()) {
		return nil // something was saved already
	}

	fromProfile := attendance.ThresholdConfig{
		DefaultThreshold: e.cfg.Sync.DefaultThreshold,
		SafeBuffer:       e.cfg.Sync.SafeBuffer,
	}
	for _, r := range e.cfg.Sync.Rules {
		fromProfile = fromProfile.WithRule(r.Keyword, r.Percent)
	}
	if configsEqual(fromProfile, attendance.DefaultThresholdConfig()) {
		return nil // profile carries nothing beyond the stock defaults
	}

	return store.SaveThresholds(ctx, fromProfile)
}

func configsEqual(a, b attendance.ThresholdConfig) bool {
	if a.DefaultThreshold != b.DefaultThreshold || a.SafeBuffer != b.SafeBuffer {
		return false
	}
	if len(a.Rules) != len(b.Rules) {
		return false
	}
	for i := range a.Rules {
		if a.Rules[i] != b.Rules[i] {
			return false
		}
	}
	return true
}

// unavailableAcquirer stands in when the configured strategy cannot run in
// this process. Acquire reports why instead of failing at startup.
type unavailableAcquirer struct {
	err error
}

func (a unavailableAcquirer) Acquire(context.Context, erp.Credentials) (*erp.Session, error) {
	return nil, a.err
}

// emptyHistory satisfies the archive interface when no database is
// configured. Trend queries simply come back empty.
type emptyHistory struct{}

func (emptyHistory) Record(context.Context, attendance.SyncRecord) error { return nil }
func (emptyHistory) Recent(context.Context, int) ([]attendance.SyncRecord, error) {
	return nil, nil
}
func (emptyHistory) Trend(context.Context, time.Time) ([]attendance.SyncRecord, error) {
	return nil, nil
}

func historyOrEmpty(h attendance.SyncHistory) attendance.SyncHistory {
	if h == nil {
		return emptyHistory{}
	}
	return h
}

// Close releases infrastructure handles.
func (e *engine) Close() {
	if e.bus != nil {
		_ = e.bus.Close()
	}
	if e.dbConn != nil {
		e.dbConn.Close()
	}
	if e.cache != nil {
		e.cache.Close()
	}
}

// serve runs the HTTP API until a shutdown signal arrives.
func (e *engine) serve(ctx context.Context) error {
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = e.cfg.HTTP.Host
	httpCfg.Port = e.cfg.HTTP.Port
	httpCfg.ReadTimeout = e.cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = e.cfg.HTTP.WriteTimeout
	httpCfg.RateLimitPerMinute = e.cfg.HTTP.RateLimitPerMinute

	server := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		SyncHandler:          e.syncHandler,
		ThresholdsHandler:    e.thresholdsHandler,
		ClearCacheHandler:    e.clearHandler,
		StatusHandler:        e.statusHandler,
		GetThresholdsHandler: e.getThresholdsHandler,
		TrendHandler:         e.trendHandler,
		Logger:               e.log,
		HealthChecker:        e,
	})

	errCh := server.StartAsync()

	if sched := e.buildAutoSync(); sched != nil {
		if err := sched.Start(ctx); err != nil {
			e.log.Warn("failed to start auto sync", logger.Err(err))
		} else {
			defer func() { _ = sched.Stop() }()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		e.log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.App.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildAutoSync assembles the unattended re-sync scheduler when configured.
// It needs an interval, the credential strategy and credentials in the
// environment; anything less and serve mode stays interactive only.
func (e *engine) buildAutoSync() *scheduler.Scheduler {
	interval := e.cfg.Sync.AutoSyncInterval
	if interval <= 0 {
		return nil
	}
	if e.cfg.ERP.Strategy != "credential" {
		e.log.Warn("auto sync requires the credential strategy, skipping")
		return nil
	}
	if os.Getenv("ERP_USERNAME") == "" || os.Getenv("ERP_PASSWORD") == "" {
		e.log.Warn("auto sync configured but ERP_USERNAME/ERP_PASSWORD are not set, skipping")
		return nil
	}

	creds := func() (string, string, error) {
		return os.Getenv("ERP_USERNAME"), os.Getenv("ERP_PASSWORD"), nil
	}

	sched := scheduler.NewScheduler(nil)
	job := jobs.NewAutoSyncJob(e.syncHandler, creds, e.log)
	if err := sched.Register(job, scheduler.NewIntervalSchedule(interval)); err != nil {
		e.log.Warn("failed to register auto sync job", logger.Err(err))
		return nil
	}
	return sched
}

// Check implements httpserver.HealthChecker against the cache and archive.
func (e *engine) Check(ctx context.Context) httpserver.HealthStatus {
	if err := e.cache.Ping(ctx); err != nil {
		return httpserver.HealthStatus{Healthy: false, Message: "redis unreachable"}
	}
	if e.dbConn != nil {
		if err := e.dbConn.Ping(ctx); err != nil {
			return httpserver.HealthStatus{Healthy: false, Message: "database unreachable"}
		}
	}
	return httpserver.HealthStatus{Healthy: true}
}

// ══════════════════════════════════════════════════════════════════════════════
// RENDERING
// ══════════════════════════════════════════════════════════════════════════════

// renderResult prints a snapshot as a plain table. The engine reports; hosts
// with richer UIs render the same data their own way.
func renderResult(cmd *cobra.Command, result *attendance.SyncResult) {
	cmd.Printf("%s  (%s)\n", result.Profile.Name, result.Profile.Institution)
	cmd.Printf("Overall: %.1f%%  [%s]  %d/%d classes\n\n",
		result.Summary.OverallPercentage,
		result.Summary.OverallTier,
		result.Summary.OverallPresent,
		result.Summary.OverallTotal,
	)

	for _, s := range result.Subjects {
		marker := " "
		switch s.Tier {
		case attendance.TierLow:
			marker = "!"
		case attendance.TierCritical:
			marker = "~"
		}

		cmd.Printf("%s %-40s %6.1f%%  %3d/%-3d  %s\n",
			marker, truncate(s.Name, 40), s.Percentage, s.Present, s.Total, s.Message)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n-1])) + "…"
}
