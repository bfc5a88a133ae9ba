package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/tripcheckout/internal/bootstrap"
	"github.com/cassiomorais/tripcheckout/internal/controller"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "trips-api", "trips")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Checkout ---
	gw, sandbox := app.Gateway()
	checkoutSvc := app.CheckoutService(gw)

	// --- Build router ---
	deps := controller.RouterDeps{
		Checkout:        checkoutSvc,
		Trips:           postgres.NewTripRepository(app.Pool),
		IdempotencyRepo: postgres.NewIdempotencyRepository(app.Pool),
		IdempotencyTTL:  app.Config.Worker.IdempotencyTTL,
		HealthChecks:    app.HealthChecks(),
		Metrics:         app.Metrics,
		Gatherer:        app.Registry,
		CORSConfig:      app.Config.Server.CORS,
		JWTSecret:       app.Config.Auth.JWTSecret,
		RateLimit:       app.Config.Server.RateLimit,
		Logger:          app.Logger,
	}
	if app.Config.Gateway.Sandbox {
		deps.Sandbox = sandbox
		app.Logger.Warn().Msg("Sandbox checkout page enabled")
	}
	router := controller.NewRouter(deps)

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
