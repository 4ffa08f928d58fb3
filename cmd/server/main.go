// Package main provides the entry point for the quill server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillhq/quill/cmd/server/config"
	"github.com/quillhq/quill/cmd/server/server"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Quill dataset query engine",
	Long: `An engine that answers questions about tabular datasets.

Quill keeps CSV and XLSX files from a remote folder cached in memory,
executes externally planned filter/group/aggregate queries against the
cached snapshots, and returns result tables with chart specifications.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quill server",
	Long: `Start the quill server with the specified configuration.

Example:
  quill serve --config ./config.yaml
  quill serve --address 0.0.0.0:8080 --source local --local-dir ./data`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "config file path")
	serveCmd.Flags().String("address", "0.0.0.0:8080", "server listen address")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().String("source", "local", "dataset source type (drive, local)")
	serveCmd.Flags().String("drive-folder", "", "Google Drive folder ID")
	serveCmd.Flags().String("drive-token", "", "Google Drive access token")
	serveCmd.Flags().String("local-dir", "./data", "local dataset directory")
	serveCmd.Flags().Duration("refresh-interval", time.Minute, "cache refresh cadence")
	serveCmd.Flags().Duration("fetch-timeout", 30*time.Second, "per-file fetch timeout")
	serveCmd.Flags().Int("max-file-rows", 500_000, "maximum rows loaded per file")
	serveCmd.Flags().Duration("query-timeout", 30*time.Second, "per-plan execution timeout")
	serveCmd.Flags().Int("max-input-rows", 1_000_000, "maximum input rows per plan")
	serveCmd.Flags().Int("max-output-rows", 10_000, "maximum output rows per plan")
	serveCmd.Flags().String("planner-endpoint", "", "external planner endpoint URL")
	serveCmd.Flags().String("planner-api-key", "", "external planner API key")
	serveCmd.Flags().Duration("planner-timeout", time.Minute, "planner request timeout")
	serveCmd.Flags().Bool("metrics", true, "enable Prometheus metrics")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")

	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("QUILL")
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quill dataset query engine\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("Starting quill server")

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info().Msg("Received shutdown signal")
	case err := <-serverErrCh:
		return err
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	logger.Info().Msg("Server shutdown complete")
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &config.Config{
		Address:         viper.GetString("address"),
		LogLevel:        viper.GetString("log-level"),
		ShutdownTimeout: viper.GetDuration("shutdown-timeout"),
		Source: config.SourceConfig{
			Type: viper.GetString("source"),
			Drive: config.DriveConfig{
				FolderID:    viper.GetString("drive-folder"),
				AccessToken: viper.GetString("drive-token"),
			},
			Local: config.LocalConfig{
				Dir: viper.GetString("local-dir"),
			},
		},
		Cache: config.CacheConfig{
			RefreshInterval: viper.GetDuration("refresh-interval"),
			FetchTimeout:    viper.GetDuration("fetch-timeout"),
			MaxFileRows:     viper.GetInt("max-file-rows"),
		},
		Query: config.QueryConfig{
			Timeout:       viper.GetDuration("query-timeout"),
			MaxInputRows:  viper.GetInt("max-input-rows"),
			MaxOutputRows: viper.GetInt("max-output-rows"),
		},
		Planner: config.PlannerConfig{
			Endpoint: viper.GetString("planner-endpoint"),
			APIKey:   viper.GetString("planner-api-key"),
			Timeout:  viper.GetDuration("planner-timeout"),
		},
		Metrics: config.MetricsConfig{
			Enabled: viper.GetBool("metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "quill")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
