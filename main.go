package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"heureka-stats/config"
	"heureka-stats/locale"
	"heureka-stats/scraper/heureka"
	"heureka-stats/services"
	"heureka-stats/storage"
	"heureka-stats/utils"
)

const (
	exitUserError     = 1
	exitInternalError = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		if code == exitUserError {
			fmt.Fprintln(os.Stderr, "error:", err)
		} else {
			fmt.Fprintln(os.Stderr, "internal error:", err)
		}
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heureka-stats",
		Short: "Download daily shop statistics from the Heureka merchant administration",
		Long: `heureka-stats logs in to the Heureka merchant administration with a
headless browser and downloads one row of shop statistics per day.

Examples:
  # Last week, Czech site, CSV output
  heureka-stats --country cz --eshop 12345 --from "7 days ago" --to yesterday

  # Use a component configuration file
  heureka-stats --config data/config.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	cmd.Flags().StringP("config", "c", "", "Component configuration file (JSON or YAML)")
	cmd.Flags().String("from", "", "First day, YYYY-MM-DD or relative (e.g. \"7 days ago\")")
	cmd.Flags().String("to", "", "Last day, YYYY-MM-DD or relative (e.g. yesterday)")
	cmd.Flags().String("country", "", "Site to use: "+fmt.Sprint(locale.Codes()))
	cmd.Flags().String("eshop", "", "Shop id")
	cmd.Flags().StringP("output", "o", "", "Output driver: csv, postgres or sqlite")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Bool("headless", true, "Run the browser without a window")

	return cmd
}

func runRootCmd(cmd *cobra.Command, _ []string) error {
	runID := uuid.NewString()

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := utils.NewLogger(utils.LoggerOptions{Level: cfg.LogLevel, File: cfg.LogFile}).
		With("run_id", runID)

	window, err := services.ParseWindow(cfg.DateFrom, cfg.DateTo, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	loc, err := locale.Lookup(cfg.Country)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := utils.NewMetrics()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, metrics, logger)
		defer srv.Close()
	}

	logger.Info("=== Heureka statistics starting ===")
	logger.Info("Config: country %s | shop %s | %s .. %s | output %s | user %s",
		cfg.Country, cfg.EshopID, cfg.DateFrom, cfg.DateTo, cfg.OutputDriver, cfg.Credentials())

	client := heureka.NewHTTPClient(time.Duration(cfg.HTTPTimeoutSec) * time.Second)
	baseDelay := time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond

	login := heureka.NewBrowserLogin(loc, cfg.Credentials(), client, heureka.LoginOptions{
		ChromeBin:    cfg.ChromeBin,
		Headless:     cfg.Headless,
		MaxAttempts:  cfg.LoginAttempts,
		BaseDelay:    baseDelay,
		StepTimeout:  time.Duration(cfg.StepTimeoutSec) * time.Second,
		ArtifactsDir: cfg.ArtifactsDir,
		RunID:        runID,
	}, logger, metrics)

	fetcher := heureka.NewFetcher(client, loc, cfg.EshopID, login, heureka.FetcherOptions{
		MaxAttempts: cfg.FetchAttempts,
		BaseDelay:   baseDelay,
	}, logger, metrics)

	writer, err := newWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runner := services.NewRunner(login, fetcher, writer, utils.NewThrottle(cfg.RateLimitMs), logger, metrics)
	report, err := runner.Run(ctx, services.RunOptions{
		RunID:   runID,
		Country: cfg.Country,
		EshopID: cfg.EshopID,
		Window:  window,
	})
	if report != nil && report.Dates > 0 {
		services.PrintSummary(os.Stdout, report)
	}
	return err
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"from":         &cfg.DateFrom,
		"to":           &cfg.DateTo,
		"country":      &cfg.Country,
		"eshop":        &cfg.EshopID,
		"output":       &cfg.OutputDriver,
		"metrics-addr": &cfg.MetricsAddr,
	} {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}
}

func newWriter(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.RecordWriter, error) {
	switch cfg.OutputDriver {
	case config.DriverPostgres:
		return storage.NewPostgresWriter(ctx, cfg.DSN(), cfg.Table(), cfg.IncrementalLoad, logger)
	case config.DriverSQLite:
		return storage.NewSQLiteWriter(ctx, cfg.SQLitePath, cfg.Table(), cfg.IncrementalLoad)
	default:
		return storage.NewCSVWriter(cfg.OutputDir, cfg.Table(), cfg.IncrementalLoad)
	}
}

func serveMetrics(addr string, metrics *utils.Metrics, logger *utils.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("[metrics] server stopped: %v", err)
		}
	}()
	logger.Info("[metrics] serving on %s/metrics", addr)
	return srv
}

// exitCode separates problems the user can fix from internal failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, locale.ErrUnsupportedLocale),
		errors.Is(err, heureka.ErrLoginExhausted),
		errors.Is(err, services.ErrWindowOutOfRange):
		return exitUserError
	default:
		return exitInternalError
	}
}
