package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hospital/dashboard/internal/config"
	"github.com/hospital/dashboard/internal/domain/dashboard"
	"github.com/hospital/dashboard/internal/domain/facts"
	"github.com/hospital/dashboard/internal/domain/series"
	"github.com/hospital/dashboard/internal/platform/db"
	"github.com/hospital/dashboard/internal/platform/middleware"
	"github.com/hospital/dashboard/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard-server",
		Short: "Hospital dashboard aggregation API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(mastersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func queryCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:       "query <outpatient|inpatient|billing>",
		Short:     "Print a dashboard series as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(facts.Outpatient), string(facts.Inpatient), string(facts.Billing)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := facts.ParseKind(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, svc *dashboard.Service) error {
				return runQuery(ctx, svc, kind, opts, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&opts.Start, "start", "", "First date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.End, "end", "", "Last date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.Aggregation, "aggregation", "daily", "daily or monthly")
	cmd.Flags().StringVar(&opts.Code, "code", "", "Department, ward or billing code")
	cmd.Flags().BoolVar(&opts.Compare, "compare", false, "Include the prior-year series")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func mastersCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "masters <departments|wards|billing>",
		Short:     "Print active master records as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"departments", "wards", "billing"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *dashboard.Service) error {
				return runMasters(ctx, svc, args[0], cmd.OutOrStdout())
			})
		},
	}
}

// -- CLI --

type queryOptions struct {
	Start       string
	End         string
	Aggregation string
	Code        string
	Compare     bool
}

func (o queryOptions) toQuery(kind facts.Kind) (dashboard.Query, error) {
	r, err := series.ParseDateRange(o.Start, o.End)
	if err != nil {
		return dashboard.Query{}, err
	}
	mode, err := series.ParseMode(o.Aggregation)
	if err != nil {
		return dashboard.Query{}, err
	}
	q := dashboard.Query{Range: r, Mode: mode}
	if code := strings.TrimSpace(o.Code); code != "" {
		c := facts.Code(code)
		if kind.IntCodes() {
			if _, ok := c.Int(); !ok {
				return dashboard.Query{}, fmt.Errorf("code %q must be an integer for %s", code, kind)
			}
		}
		q.Code = &c
	}
	return q, nil
}

func runQuery(ctx context.Context, svc *dashboard.Service, kind facts.Kind, opts queryOptions, w io.Writer) error {
	q, err := opts.toQuery(kind)
	if err != nil {
		return err
	}

	var out interface{}
	switch kind {
	case facts.Outpatient:
		out, err = svc.OutpatientOverlay(ctx, q, opts.Compare)
	case facts.Inpatient:
		out, err = svc.InpatientOverlay(ctx, q, opts.Compare)
	case facts.Billing:
		out, err = svc.BillingOverlay(ctx, q, opts.Compare)
	default:
		return fmt.Errorf("unknown dataset kind %q", kind)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, out)
}

func runMasters(ctx context.Context, svc *dashboard.Service, which string, w io.Writer) error {
	var (
		records []facts.MasterRecord
		err     error
	)
	switch which {
	case "departments":
		records, err = svc.Departments(ctx)
	case "wards":
		records, err = svc.Wards(ctx)
	case "billing":
		records, err = svc.BillingCategories(ctx)
	default:
		return fmt.Errorf("unknown master table %q, want departments, wards or billing", which)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, records)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withService loads config, opens the stores and runs fn against a facade.
func withService(ctx context.Context, fn func(context.Context, *dashboard.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	return fn(ctx, newService(st, logger, nil))
}

// -- Wiring --

type stores struct {
	facts    facts.FactStore
	masters  facts.MasterStore
	database db.Database
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.DBDriver {
	case db.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &stores{
			facts:    facts.NewFactRepoPG(pool),
			masters:  facts.NewMasterRepoPG(pool),
			database: db.NewPGDatabase(pool),
			close:    pool.Close,
		}, nil
	case db.DriverMySQL, db.DriverSQLite:
		conn, err := db.OpenSQL(ctx, cfg.DBDriver, cfg.DatabaseURL, int(cfg.DBMaxConns), int(cfg.DBMinConns))
		if err != nil {
			return nil, err
		}
		return &stores{
			facts:    facts.NewFactRepoSQL(conn),
			masters:  facts.NewMasterRepoSQL(conn),
			database: db.NewSQLDatabase(cfg.DBDriver, conn),
			close:    func() { conn.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// newService wires the builder and facade. A nil metrics skips recording.
func newService(st *stores, logger zerolog.Logger, metrics *telemetry.Metrics) *dashboard.Service {
	builder := series.NewBuilder(st.facts, st.masters, logger.With().Str("component", "series").Logger())
	if metrics != nil {
		builder.SetRecorder(metrics)
	}
	return dashboard.NewService(builder, st.masters)
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// newServer builds the echo instance with middleware and routes.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *dashboard.Service, database db.Database, metrics *telemetry.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if metrics != nil {
		e.Use(metrics.Middleware())
	}
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(database))
	if metrics != nil {
		metrics.WatchDatabase(database)
		e.GET("/metrics", metrics.Handler())
	}

	// API
	api := e.Group("/api/v1/dashboard",
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
			IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
		}),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)
	dashboard.NewHandler(svc).RegisterRoutes(api)

	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logger
	logger := newLogger(cfg, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect to database")
	}
	defer st.close()
	logger.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.New(telemetry.Config{RuntimeMetrics: true})
	}
	e := newServer(cfg, logger, newService(st, logger, metrics), st.database, metrics)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
