package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/snipforge/snipforge/internal/api"
	"github.com/snipforge/snipforge/internal/auth"
	"github.com/snipforge/snipforge/internal/config"
	"github.com/snipforge/snipforge/internal/database"
	"github.com/snipforge/snipforge/internal/service"
	"github.com/snipforge/snipforge/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: snipforge <command>\n\nCommands:\n  serve    Start the server\n  migrate  Run database migrations\n")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "migrate":
		cmdMigrate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func cmdServe(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServe(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	traceShutdown, err := initTracing(context.Background())
	if err != nil {
		slog.Error("init tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := traceShutdown(ctx); err != nil {
			slog.Error("shutdown tracing", "error", err)
		}
	}()

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Auto-migrate on startup
	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}

	store, err := openStorage(cfg)
	if err != nil {
		slog.Error("open storage", "error", err)
		os.Exit(1)
	}

	dur, err := time.ParseDuration(cfg.Auth.TokenDuration)
	if err != nil {
		dur = 24 * time.Hour
	}
	authSvc := auth.NewService(cfg.Auth.JWTSecret, dur)

	pasteSvc, err := service.NewPasteService(db, store, cfg.Paste)
	if err != nil {
		slog.Error("init paste service", "error", err)
		os.Exit(1)
	}
	projectSvc := service.NewProjectService(db, cfg.Project.DefaultBranch)
	branchSvc := service.NewBranchService(db, projectSvc)
	server := api.NewServerWithOptions(db, authSvc, api.Services{
		Pastes:        pasteSvc,
		Projects:      projectSvc,
		Branches:      branchSvc,
		Files:         service.NewFileService(db, branchSvc),
		Issues:        service.NewIssueService(db, projectSvc),
		Milestones:    service.NewMilestoneService(db, projectSvc),
		Comments:      service.NewCommentService(db, projectSvc),
		Notifications: service.NewNotificationService(db, slog.Default()),
	}, api.ServerOptions{
		EnableMetrics: true,
		EnableTracing: true,
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)

	go func() {
		slog.Info("snipforge listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}

func cmdMigrate(args []string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := openDB(cfg)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations complete")
}

func openDB(cfg *config.Config) (database.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return database.OpenSQLite(cfg.Database.DSN)
	case "postgres":
		return database.OpenPostgres(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func openStorage(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "local":
		return storage.NewLocalBackend(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Backend(storage.S3Config{
			Endpoint:  cfg.Storage.S3.Endpoint,
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			AccessKey: cfg.Storage.S3.AccessKey,
			SecretKey: cfg.Storage.S3.SecretKey,
			UseSSL:    cfg.Storage.S3.UseSSL,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}
