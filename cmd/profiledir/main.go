package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"profiledir/internal/bot"
	"profiledir/internal/config"
	"profiledir/internal/directory"
	"profiledir/internal/remote"
	"profiledir/internal/scraper"
	"profiledir/internal/storage"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(cfg.Level())

	log.WithFields(logrus.Fields{
		"badgerdb_path": cfg.BadgerDBPath,
		"directory_url": cfg.DirectoryURL,
		"link_previews": cfg.LinkPreviews,
	}).Info("Configuration loaded successfully")

	// --- Initialize Components ---

	// Database
	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()

	// Directory client, also the OTP verifier
	client := remote.NewClient(cfg.DirectoryURL, &http.Client{}, log)

	profiles, err := directory.NewService(repo, client, cfg.ProfileCacheSize, log)
	if err != nil {
		log.Fatalf("Failed to initialize directory: %v", err)
	}

	if _, err := profiles.Warm(context.Background()); err != nil {
		log.WithError(err).Warn("Failed to warm profile cache")
	}

	// Link previews
	var previewer scraper.Previewer = scraper.Noop{}
	if cfg.LinkPreviews {
		previewer = scraper.NewRodScraper(15*time.Second, log)
	}

	// Bot Handler
	botHandler, err := bot.NewHandler(cfg, profiles, client, previewer, log)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot handler: %v", err)
	}

	// --- Application Startup ---

	// Create context that listens for interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go repo.RunGC(ctx, 5*time.Minute)
	// Start the bot polling in a separate goroutine
	go botHandler.Start(ctx)

	log.Info("profiledir is running. Press Ctrl+C to exit.")
	// --- Wait for Shutdown Signal ---
	<-ctx.Done()

	// --- Graceful Shutdown ---
	log.Info("Shutting down profiledir...")
	stop()
	// The deferred repo.Close() runs now; open edit sessions are dropped by Start.
}
