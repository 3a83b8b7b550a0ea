package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chat-core/broker"
	"chat-core/repositories"
	"chat-core/runtime"
	"chat-core/runtime/workers"
	"chat-core/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the process lifecycle.
// This pattern is preferred over calling os.Exit or panic directly
// because it ensures all 'defer' statements (like database cleanup)
// are executed before the program exits, and it decouples the
// initialization logic from the main entry point.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Broker connection, explicitly owned by this process
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	bus := broker.NewRedisBroker(client, log)
	defer func() {
		log.Info("Closing broker connection...")
		_ = bus.Close()
	}()

	// 4. Setup Supervision & Orchestration
	sup := workers.NewSupervisor(log, config.RestartInterval)
	registry := runtime.NewRegistry()
	rooms := repositories.NewRoomRepository(db)
	participants := repositories.NewParticipantRepository(db, log)
	messages := repositories.NewMessageRepository(db, log)
	presence := runtime.NewPresenceTracker(rooms, participants, log)

	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, rooms, presence, messages, bus,
		config.ConnectionBufferSize, config.SinkTimeout,
		config.MaxContentLength, charReplacement,
	)
	chatService := services.NewChatService(orchestrator)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the Engine
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}
	log.Info("Chat core running", "redis", config.RedisAddr)

	// 7. Local console client. Each process running this binary against
	// the same Redis is a full member of the room: events published by
	// one show up live in the others.
	go runConsole(ctx, log, chatService)

	// 8. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 9. Final Cleanup
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
