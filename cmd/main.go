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

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"tg-bridge/api"
	"tg-bridge/auth"
	"tg-bridge/infrastructure/telegram"
	"tg-bridge/repositories"
	"tg-bridge/runtime"
	"tg-bridge/runtime/workers"
	"tg-bridge/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close, session
// teardown) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	// Fall back to a local .env when the Telegram credentials are not in
	// the environment yet.
	if os.Getenv("TG_API_ID") == "" {
		_ = godotenv.Load()
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core wiring: stores, supervisor, registry, coordinator
	credentialRepository := repositories.NewCredentialRepository(db)
	triggerRepository := repositories.NewTriggerRepository(db, log)

	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	clientFactory := telegram.NewFactory(config.TelegramAPIID, config.TelegramAPIHash)

	triggerService := services.NewTriggerService(log, triggerRepository)
	registry := runtime.NewRegistry(log, credentialRepository, clientFactory, supervisor, triggerService)
	triggerService.BindRegistry(registry)
	coordinator := runtime.NewCoordinator(log, credentialRepository, clientFactory)

	messageService := services.NewMessageService(registry)
	registrationService := services.NewRegistrationService(coordinator)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	registry.Start(ctx)
	coordinator.Start(ctx)

	// 5. Hydrate the trigger mirror and reattach listeners for every
	// account that had rules before the restart.
	if err := triggerService.Hydrate(ctx); err != nil {
		return fmt.Errorf("trigger hydration failed: %w", err)
	}

	// 6. HTTP Server Setup
	health, err := api.NewHealthReporter()
	if err != nil {
		log.Warn("Process stats unavailable for /health", "error", err)
	}
	server := api.NewServer(log, messageService, triggerService, registrationService,
		health, authentication(config))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Router()}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	registry.Stop(shutdownCtx)
	supervisor.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// authentication returns nil when no admin password hash is configured; the
// API then runs without bearer-token protection.
func authentication(config Config) *api.Authentication {
	if config.AdminPasswordHash == "" || config.AuthSecret == "" {
		return nil
	}
	return &api.Authentication{
		Tokens:       auth.NewAuthenticator(config.AuthSecret, config.AuthTokenDuration),
		PasswordHash: config.AdminPasswordHash,
	}
}
