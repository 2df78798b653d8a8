package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"arcade/bot"
	"arcade/config"
	"arcade/database"
	"arcade/events"
	"arcade/observability"
	"arcade/random"
	"arcade/service"
	"arcade/store"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, staying on info", cfg.LogLevel)
	}

	log.Println("Starting arcade bot...")

	// Initialize metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Open the persistent store
	var st store.Store
	if cfg.UsePostgres() {
		log.Println("Connecting to database...")
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		db, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		st = store.NewPostgres(db)
		log.Println("Database connection established successfully")
	} else {
		log.Printf("Opening sqlite store at %s...", cfg.SQLitePath)
		sqlite, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		st = sqlite
	}

	// Load the item catalog
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Printf("Catalog loaded with %d items", len(catalog.Items))

	// Initialize event bus
	eventBus := events.NewBus()
	var forwarder *events.Forwarder
	if cfg.NATSURL != "" {
		log.Printf("Connecting to NATS at %s...", cfg.NATSURL)
		forwarder, err = events.NewForwarder(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		forwarder.Attach(eventBus)
		log.Println("Event forwarder attached successfully")
	}

	// Initialize the engine
	engine := service.NewEngine(st, eventBus, catalog, service.SystemClock{}, random.New(), cfg.SweepInterval(), metrics)
	if err := engine.Rehydrate(ctx); err != nil {
		return fmt.Errorf("failed to rehydrate scheduled work: %w", err)
	}
	engine.Start(ctx)

	// Initialize Discord bot
	log.Println("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:   cfg.DiscordToken,
		GuildID: cfg.DiscordGuildID,
	}, engine)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Println("Discord bot initialized successfully")

	// Wait for context cancellation
	log.Printf("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down bot...")

	// Close Discord bot connection
	if err := discordBot.Close(); err != nil {
		log.Printf("Error closing Discord bot: %v", err)
	}

	// Stop the scheduler and close the store
	if err := engine.Close(); err != nil {
		log.Printf("Error closing engine: %v", err)
	}

	if forwarder != nil {
		forwarder.Close()
	}

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics: %v", err)
	}

	log.Println("Shutdown completed")
	return nil
}
