package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sunnyio/attendanceManager/internal/attendance"
	"github.com/Sunnyio/attendanceManager/internal/config"
	"github.com/Sunnyio/attendanceManager/internal/database"
	"github.com/Sunnyio/attendanceManager/internal/insights"
	"github.com/Sunnyio/attendanceManager/internal/logging"
	"github.com/Sunnyio/attendanceManager/internal/maintenance"
	"github.com/Sunnyio/attendanceManager/internal/web"
	"github.com/Sunnyio/attendanceManager/internal/web/handlers"
)

var (
	version = "1.0.0"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	port        int
	bind        string
	databaseURL string
	envFile     string
	logFile     string
	verbosity   int
	vacuum      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "attendance",
		Short:         "Attendance - employee attendance tracking API",
		Long:          `Attendance records employee attendance entries and serves trend and insight queries over HTTP.`,
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.IntVarP(&port, "port", "p", 0, "HTTP server port (or set PORT env var)")
	flags.StringVarP(&bind, "bind", "b", "", "IP address to bind to (or set HOST env var)")
	flags.StringVarP(&databaseURL, "database-url", "d", "", "postgres:// URL or SQLite path (or set DATABASE_URL env var)")
	flags.StringVar(&envFile, "env-file", config.DefaultEnvFile, "Optional .env file, watched for changes while serving")
	flags.StringVar(&logFile, "log-file", "", "Rotating log file (or set LOG_FILE env var)")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init-db",
		Short: "Create the attendance schema and exit",
		RunE:  runInitDB,
	})

	maintainCmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run database maintenance once and exit",
		RunE:  runMaintain,
	}
	maintainCmd.Flags().BoolVar(&vacuum, "vacuum", false, "Also reclaim space with VACUUM")
	rootCmd.AddCommand(maintainCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("attendance %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration from the env file, the environment and
// finally any flags given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("bind") {
		cfg.Host = bind
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = databaseURL
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) io.Closer {
	opts := logging.DefaultOptions()
	opts.Level = logging.LevelFromVerbosity(verbosity, cfg.LogLevel)
	opts.FilePath = cfg.LogFile
	return logging.Apply(opts)
}

func openPool(cfg *config.Config) (*database.Pool, error) {
	return database.New(database.Options{
		DSN:   cfg.DatabaseURL,
		Retry: cfg.Retry,
	})
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer setupLogging(cfg).Close()

	pool, err := openPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info().Str("dialect", pool.Dialect().String()).Msg("Database initialized")
	return nil
}

func runMaintain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer setupLogging(cfg).Close()

	pool, err := openPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := maintenance.NewScheduler(pool, "").RunNow(ctx); err != nil {
		return err
	}
	if vacuum {
		start := time.Now()
		if err := pool.Vacuum(ctx); err != nil {
			return fmt.Errorf("failed to vacuum database: %w", err)
		}
		log.Info().Dur("duration", time.Since(start)).Msg("Database vacuum completed")
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer setupLogging(cfg).Close()

	if cfg.Host == "0.0.0.0" || cfg.Host == "::" {
		log.Debug().Msg("Server is accessible from all interfaces")
	}

	log.Info().
		Str("version", version).
		Str("addr", cfg.Addr()).
		Int("retry_attempts", cfg.Retry.Attempts).
		Dur("retry_window", cfg.RetryWindow()).
		Msg("Starting attendance API")

	pool, err := openPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := signalContext()
	defer cancel()

	log.Info().Str("dialect", pool.Dialect().String()).Msg("Initializing database")
	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := attendance.NewRepository(pool, cfg.Retry)
	insightsSvc := insights.NewService(repo, insights.Summarizer{})

	scheduler := maintenance.NewScheduler(pool, cfg.MaintenanceSchedule)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	if watcher := watchConfig(scheduler); watcher != nil {
		defer watcher.Stop()
	}

	server := web.NewServer(web.Options{
		Addr:              cfg.Addr(),
		CORSOrigins:       cfg.CORSOrigins,
		InsightsPerMinute: cfg.InsightsPerMinute,
		Timeouts:          cfg.Timeouts,
		Version:           handlers.VersionInfo{Version: version, Commit: commit, Date: date},
	}, repo, insightsSvc)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Attendance API stopped")
	return nil
}

// watchConfig re-applies the log level and maintenance schedule when the env
// file changes. It returns nil when there is no file to watch.
func watchConfig(scheduler *maintenance.Scheduler) *config.Watcher {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	watcher, err := config.NewWatcher(envFile, func(cfg *config.Config) {
		logging.SetLevel(logging.LevelFromVerbosity(verbosity, cfg.LogLevel))
		if err := scheduler.UpdateSchedule(cfg.MaintenanceSchedule); err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid maintenance schedule")
		}
	})
	if err != nil {
		log.Warn().Err(err).Str("path", envFile).Msg("Config file will not be watched")
		return nil
	}
	watcher.Start()
	return watcher
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
