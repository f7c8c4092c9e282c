package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lmis/lmis/internal/config"
	"github.com/lmis/lmis/internal/domain/fhirgw"
	"github.com/lmis/lmis/internal/domain/reference"
	"github.com/lmis/lmis/internal/domain/requisition"
	"github.com/lmis/lmis/internal/domain/stock"
	"github.com/lmis/lmis/internal/platform/auth"
	"github.com/lmis/lmis/internal/platform/middleware"
	"github.com/lmis/lmis/internal/platform/seed"
	"github.com/lmis/lmis/internal/platform/webhook"
	"github.com/lmis/lmis/internal/store"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mock-server",
		Short: "OpenLMIS & OpenSRP FHIR Gateway Mock Server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var host, port, dataDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(host, port, dataDir)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "host to bind to (overrides HOST)")
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides PORT)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory of fixture overrides (overrides DATA_DIR)")
	return cmd
}

func runServer(host, port, dataDir string) error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if host != "" {
		cfg.Host = host
	}
	if port != "" {
		cfg.Port = port
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	// Seed data
	fixtures, err := seed.Load(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load seed data")
	}

	st := store.New()
	requisitions := requisition.NewEngine()
	ledger := stock.NewLedger()
	if err := fixtures.Apply(st, requisitions, ledger); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply seed data")
	}
	logger.Info().
		Int("users", len(fixtures.Users)).
		Int("requisitions", len(fixtures.Requisitions)).
		Int("stockCards", len(fixtures.StockCards)).
		Msg("seed data loaded")

	tokens := auth.NewService(fixtures.Users, []byte(cfg.TokenSecret), cfg.TokenTTL())
	events := webhook.NewRecorder()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(auth.Middleware(tokens))

	// API groups
	api := e.Group("/api")
	fhirGroup := e.Group("/fhir")
	root := e.Group("")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	fhirGroup.Use(middleware.RateLimit(rateLimitCfg))

	// Domain routes
	auth.NewHandler(tokens).RegisterRoutes(api)
	requisition.NewHandler(requisitions, events).RegisterRoutes(api)
	stock.NewHandler(ledger, events).RegisterRoutes(api)
	reference.NewHandler(st).RegisterRoutes(api)
	fhirgw.NewHandler(st, events).RegisterRoutes(fhirGroup)
	webhook.NewHandler(events).RegisterRoutes(root, api)

	// Service directory
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":    "OpenLMIS & OpenSRP Mock Server",
			"version": version,
			"services": map[string]any{
				"openlmis": map[string]any{
					"description": "OpenLMIS 2 Backend Mock",
					"endpoints": map[string]string{
						"auth":         "/api/oauth/token",
						"users":        "/api/users",
						"requisitions": "/api/requisitions",
						"stockCards":   "/api/stockCards",
						"facilities":   "/api/facilities",
						"programs":     "/api/programs",
						"orderables":   "/api/orderables",
					},
				},
				"opensrp_fhir": map[string]any{
					"description": "OpenSRP 2 FHIR Gateway Mock",
					"fhirVersion": "4.0.1",
					"endpoints": map[string]string{
						"metadata":         "/fhir/metadata",
						"patient":          "/fhir/Patient",
						"location":         "/fhir/Location",
						"organization":     "/fhir/Organization",
						"practitioner":     "/fhir/Practitioner",
						"practitionerRole": "/fhir/PractitionerRole",
					},
				},
				"webhooks": map[string]any{
					"description": "Webhook receivers and event feed",
					"endpoints": map[string]string{
						"events":   "/api/events",
						"openlmis": "/webhooks/openlmis",
						"opensrp":  "/webhooks/opensrp",
					},
				},
			},
			"defaultCredentials": map[string]string{
				"username": "administrator",
				"password": "password",
			},
		})
	})

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": version,
		})
	})

	// Graceful shutdown
	go func() {
		addr := cfg.Addr()
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
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
