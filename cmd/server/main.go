package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/goldpack/exchange-core/internal/auth"
	"github.com/goldpack/exchange-core/internal/config"
	"github.com/goldpack/exchange-core/internal/database"
	"github.com/goldpack/exchange-core/internal/engine"
	"github.com/goldpack/exchange-core/internal/intake"
	"github.com/goldpack/exchange-core/internal/joining"
	"github.com/goldpack/exchange-core/internal/ledger"
	"github.com/goldpack/exchange-core/internal/matching"
	"github.com/goldpack/exchange-core/internal/pricing"
	"github.com/goldpack/exchange-core/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures logging based on environment settings. In development
// mode, pretty printing with timestamps; debug level via DEBUG.
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main wires the exchange core behind its HTTP facade with graceful
// shutdown support.
func main() {
	cfg := config.Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			zlog.Fatal().Err(err).Msg("Failed to load configuration")
		}
		cfg = loaded
	}

	db, err := database.NewDatabase(cfg.Server.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	router := gin.Default()

	// Price band: externally fed reference price, refreshed on a fixed
	// interval.
	priceSource := pricing.NewBoundRateSource(cfg.Exchange.PriceBoundRate)
	priceBand := pricing.NewProvider(priceSource, cfg.Server.PriceRefreshInterval.Std())
	pricingHandlers := pricing.NewGinHandlers(priceBand, priceSource)

	refresherCtx, refresherCancel := context.WithCancel(context.Background())
	defer refresherCancel()
	go priceBand.Start(refresherCtx)

	authService := auth.NewService(cfg.Server.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAPICredentials(
		os.Getenv("API_KEY"),
		os.Getenv("API_SECRET"),
	)

	ledgerService := ledger.NewService(db, cfg.Exchange)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	joinService := joining.NewService(db, ledgerService, cfg.Exchange)
	intakeService := intake.NewService(db, ledgerService, joinService, priceBand, cfg.Exchange)
	matchService := matching.NewService(db)

	engineService := engine.NewService(intakeService, matchService)
	engineHandlers := engine.NewGinHandlers(engineService)

	router.Use(middleware.RateLimit())
	setupRoutes(router, cfg, authHandlers, engineHandlers, ledgerHandlers, pricingHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints:
// - Auth routes: public token issuance
// - Message route: the transport layer relays user messages here, JWT-gated
// - Internal routes: operator provisioning and the market-data feed
func setupRoutes(
	router *gin.Engine,
	cfg config.Config,
	authHandlers *auth.GinHandlers,
	engineHandlers *engine.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	pricingHandlers *pricing.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		messages := v1.Group("/messages")
		messages.Use(middleware.JWTAuth(cfg.Server.JWTSecret))
		{
			messages.POST("", engineHandlers.HandleMessageHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.Server.JWTSecret))
		{
			internal.POST("/traders", ledgerHandlers.CreateTraderHandler())
			internal.GET("/traders/:trader_id", ledgerHandlers.GetTraderHandler())
			internal.POST("/price", pricingHandlers.SetPriceHandler())
			internal.GET("/price", pricingHandlers.GetBandHandler())
		}
	}
}
