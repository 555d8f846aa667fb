package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/crossbowhq/crossbow/internal/adapter/driven/github"
	sqliteadapter "github.com/crossbowhq/crossbow/internal/adapter/driven/sqlite"
	httphandler "github.com/crossbowhq/crossbow/internal/adapter/driving/http"
	"github.com/crossbowhq/crossbow/internal/application"
	"github.com/crossbowhq/crossbow/internal/config"
	"github.com/crossbowhq/crossbow/internal/domain/port/driven"
)

// syncCommitLimit caps how many commits one sync run backfills.
const syncCommitLimit = 50

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"max_page_size", cfg.MaxPageSize,
		"sync_enabled", cfg.HasGitHubToken(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	repoStore := sqliteadapter.NewRepoRepo(db)
	eventStore := sqliteadapter.NewEventRepo(db)
	commitStore := sqliteadapter.NewCommitRepo(db)
	prStore := sqliteadapter.NewPRRepo(db)
	issueStore := sqliteadapter.NewIssueRepo(db)

	// 6. Create GitHub client (nil when no token configured; the sync
	// endpoint then answers 503).
	var ghClient driven.GitHubClient
	if cfg.HasGitHubToken() {
		ghClient = githubadapter.NewClient(cfg.GitHubToken)
		slog.Info("github client created")
	} else {
		slog.Info("no github token configured, sync endpoint disabled")
	}

	// 7. Create application services.
	extractor := application.NewExtractor(commitStore, prStore, issueStore)
	ingestSvc := application.NewIngestService(repoStore, eventStore, extractor)
	syncSvc := application.NewSyncService(ghClient, repoStore, eventStore, commitStore, syncCommitLimit)

	// 8. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(
		repoStore, eventStore, commitStore, prStore, issueStore,
		ingestSvc, syncSvc, cfg.WebhookSecret, cfg.MaxPageSize, slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("crossbow started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout so in-flight deliveries finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
