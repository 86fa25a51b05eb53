package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"care-chat/api"
	"care-chat/auth"
	"care-chat/internal"
	"care-chat/observability"
	"care-chat/realtime"
	"care-chat/repositories"
	"care-chat/search"
	"care-chat/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and websocket sessions.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Full-text index (Bluge)
	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing message index...")
		_ = indexWriter.Close()
	}()

	// 4. Repositories & Services
	userRepository := repositories.NewUserRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log)
	messageIndex := search.NewMessageIndex(indexWriter, log)

	tokens := auth.NewTokenManager(config.JWTSecret, config.TokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	permissionService := services.NewPermissionService(userRepository)
	chatService := services.NewChatService(messageRepository, userRepository, messageIndex, log)

	// 5. Realtime plumbing
	stats := observability.NewStats(log)
	registry := realtime.NewRegistry()
	hub := realtime.NewHub(log, registry, chatService, stats, config.SinkTimeout)
	wsHandler := realtime.NewHandler(
		log, tokens, userRepository, registry, hub,
		chatService, permissionService, stats,
		config.HandshakeTimeout, config.ConnectionBufferSize, config.SinkTimeout,
	)

	// 6. HTTP Server Setup
	handlers := api.NewHandlers(log, authService, chatService, permissionService, userRepository, registry, stats)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api.RegisterRoutes(app, handlers, wsHandler, tokens)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)

	// Use an error channel to capture Listen() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 9. Final Cleanup
	if err := app.Shutdown(); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
