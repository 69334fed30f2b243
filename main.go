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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gem/pkg/auth"
	"github.com/ekaya-inc/ekaya-gem/pkg/biochem"
	"github.com/ekaya-inc/ekaya-gem/pkg/compat"
	"github.com/ekaya-inc/ekaya-gem/pkg/config"
	"github.com/ekaya-inc/ekaya-gem/pkg/handlers"
	"github.com/ekaya-inc/ekaya-gem/pkg/logging"
	"github.com/ekaya-inc/ekaya-gem/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-gem/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-gem/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-gem/pkg/metrics"
	"github.com/ekaya-inc/ekaya-gem/pkg/middleware"
	"github.com/ekaya-inc/ekaya-gem/pkg/reconstruction"
	"github.com/ekaya-inc/ekaya-gem/pkg/services"
	"github.com/ekaya-inc/ekaya-gem/pkg/session"
	"github.com/ekaya-inc/ekaya-gem/pkg/solver"
	"github.com/ekaya-inc/ekaya-gem/pkg/template"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "ekaya-gem",
		Short:         "Genome-scale metabolic model building, gapfilling and FBA over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(setupServeCommand(), setupVersionCommand())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setupServeCommand() *cobra.Command {
	var configPath, transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio or streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, Version)
			if err != nil {
				return err
			}
			if transport != "" {
				if transport != config.TransportStdio && transport != config.TransportHTTP {
					return fmt.Errorf("unsupported transport %q: expected stdio or http", transport)
				}
				cfg.Transport = transport
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML config file (default config.yaml when present)")
	cmd.Flags().StringVar(&transport, "transport", "", "Override the configured transport: stdio or http")

	return cmd
}

func setupVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ekaya-gem", Version)
		},
	}
}

// app holds the wired process components shared by both transports.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   session.Store
	metrics *metrics.Metrics
	audit   *mcp.AuditLogger
	mcp     *mcp.Server
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := wire(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return err
	}

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("transport", cfg.Transport),
		zap.String("reconstruction_engine", cfg.Reconstruction.Engine),
		zap.String("default_template", cfg.Gapfill.DefaultTemplate),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification))

	if cfg.Transport == config.TransportHTTP {
		return a.serveHTTP(ctx)
	}

	// stdout carries the protocol; the logger writes to stderr.
	logger.Info("Serving MCP over stdio")
	if err := a.mcp.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func wire(cfg *config.Config, logger *zap.Logger) (*app, error) {
	registry, err := template.NewRegistry(cfg.Gapfill.TemplateDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	db, err := biochem.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load biochemistry database: %w", err)
	}

	store := session.NewStore()
	m := metrics.New()
	m.TrackStore(store)

	engine := solver.NewSimplexEngine(cfg.Solver.Tolerance, logger)
	converter := compat.NewMediaConverter()
	converter.UnboundedThreshold = cfg.Media.UnboundedThreshold
	converter.DefaultUptake = cfg.Media.DefaultUptake
	converter.CompartmentIndex = cfg.Media.CompartmentIndex

	searcher := services.NewCandidateSearcher(engine, converter, cfg.Solver.Tolerance, logger)
	integrator := services.NewIntegrator(converter, logger)
	corrector := services.NewEnergyCorrector(engine, converter, searcher, integrator,
		cfg.Gapfill.ATPMultiplier, cfg.Gapfill.ATPMinFraction, logger)

	mediaService := services.NewMediaService(store, logger)
	n, err := mediaService.LoadPredefined()
	if err != nil {
		return nil, err
	}
	logger.Info("Predefined media loaded", zap.Int("count", n))

	var builder reconstruction.Engine
	switch cfg.Reconstruction.Engine {
	case config.EngineRemote:
		builder = reconstruction.NewRemoteEngine(reconstruction.RemoteConfig{
			BaseURL:    cfg.Reconstruction.RemoteURL,
			Timeout:    cfg.Reconstruction.Timeout,
			MaxRetries: cfg.Reconstruction.MaxRetries,
		}, nil, m, logger)
		logger.Info("Using remote reconstruction engine",
			zap.String("url", logging.SanitizeURL(cfg.Reconstruction.RemoteURL)))
	default:
		builder = reconstruction.NewTemplateEngine(registry, cfg.Media.CompartmentIndex, logger)
	}

	gapfillService := services.NewGapfillService(services.GapfillDeps{
		Store:      store,
		Templates:  registry,
		Engine:     engine,
		Converter:  converter,
		Corrector:  corrector,
		Searcher:   searcher,
		Integrator: integrator,
		Metrics:    m,
		Config: services.GapfillConfig{
			DefaultTarget:   cfg.Gapfill.DefaultTargetGrowth,
			DefaultTemplate: cfg.Gapfill.DefaultTemplate,
			FluxTolerance:   cfg.Solver.Tolerance,
		},
		Logger: logger,
	})

	audit := mcp.NewAuditLogger(m, logger)
	mcpServer := mcp.NewServer("ekaya-gem", cfg.Version, logger, audit.Hooks())
	tools.RegisterAll(mcpServer.MCP(), tools.Deps{
		Version: cfg.Version,
		Models:  services.NewModelService(store, builder, cfg.Gapfill.DefaultTemplate, logger),
		Media:   mediaService,
		Gapfill: gapfillService,
		FBA:     services.NewFBAService(store, engine, converter, db, cfg.Solver.FluxThreshold, m, logger),
		Lookup:  services.NewLookupService(db, registry, logger),
		Logger:  logger,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: m,
		audit:   audit,
		mcp:     mcpServer,
	}, nil
}

func (a *app) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, a.store, a.logger).RegisterRoutes(mux)
	handlers.NewWellKnownHandler(a.cfg, a.logger).RegisterRoutes(mux)

	var authMiddleware *mcpauth.Middleware
	if a.cfg.Auth.EnableVerification {
		jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
			JWKSEndpoints: a.cfg.Auth.JWKSEndpoints,
			Audience:      a.cfg.Auth.Audience,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize JWKS client: %w", err)
		}
		defer jwksClient.Close()
		authMiddleware = mcpauth.NewMiddleware(auth.NewAuthService(jwksClient, a.logger), a.audit, a.logger)
	}
	handlers.NewMCPHandler(a.mcp, a.logger).RegisterRoutes(mux, authMiddleware)

	if a.cfg.Metrics.Enabled {
		mux.Handle("GET "+a.cfg.Metrics.Path, a.metrics.Handler())
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           middleware.RequestLogger(a.logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		tls := a.cfg.TLSCertPath != "" && a.cfg.TLSKeyPath != ""
		a.logger.Info("Starting HTTP server",
			zap.String("addr", srv.Addr),
			zap.String("base_url", a.cfg.BaseURL),
			zap.Bool("tls", tls))
		if tls {
			errCh <- srv.ListenAndServeTLS(a.cfg.TLSCertPath, a.cfg.TLSKeyPath)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down HTTP server")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
