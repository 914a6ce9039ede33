package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"

	"arbor/internal/config"
	treeRepo "arbor/internal/domain/repositories/tree"
	"arbor/internal/handler"
	"arbor/internal/handler/sse"
	"arbor/internal/middleware"
	"arbor/internal/palette"
	"arbor/internal/repository/postgres"
	"arbor/internal/seed"
	"arbor/internal/service/responder"
	treeSvc "arbor/internal/service/tree"
)

const version = "0.1.0"

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "arbor",
		Usage:   "Branching conversation tree server",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			seedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Action: func(c *cli.Context) error {
			return runServer()
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create demo conversations with branches",
		Action: func(c *cli.Context) error {
			return runSeed()
		},
	}
}

// setup wires configuration, logging, the optional archive, and the
// conversation registry. The returned cleanup must run on shutdown.
func setup(ctx context.Context) (*config.Config, *slog.Logger, *treeSvc.ConversationRegistry, func(), error) {
	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	var logWriter io.Writer = os.Stdout
	var logFile *os.File
	if cfg.LogDir != "" {
		f, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
		} else {
			logFile = f
			logWriter = io.MultiWriter(os.Stdout, f)
		}
	}

	logger := slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	pal, err := palette.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load branch palette: %w", err)
	}

	// Archive is optional: without DATABASE_URL the server runs memory-only
	// and conversations vanish on restart.
	var archive treeRepo.Archive
	cleanup := func() {
		if logFile != nil {
			logFile.Close()
		}
	}
	if cfg.DatabaseURL != "" {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, fmt.Errorf("create connection pool: %w", err)
		}
		tables := postgres.NewTableNames(cfg.TablePrefix)
		turnArchive := postgres.NewTurnArchive(pool, tables, logger)
		if err := turnArchive.EnsureSchema(ctx); err != nil {
			pool.Close()
			cleanup()
			return nil, nil, nil, nil, err
		}
		archive = turnArchive
		prev := cleanup
		cleanup = func() {
			pool.Close()
			prev()
		}
		logger.Info("database connected", "table_prefix", cfg.TablePrefix)
	} else {
		logger.Warn("DATABASE_URL not set, running memory-only")
	}

	registry := treeSvc.NewConversationRegistry(
		archive,
		pal,
		responder.NewLoremResponder(),
		cfg.StreamTick,
		logger,
	)

	return cfg, logger, registry, cleanup, nil
}

func runServer() error {
	ctx := context.Background()

	cfg, logger, registry, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer registry.Close()

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"stream_tick", cfg.StreamTick.String(),
	)

	conversationHandler := handler.NewConversationHandler(registry, logger)
	turnHandler := handler.NewTurnHandler(registry, logger)
	streamHandler := handler.NewStreamHandler(registry, sse.DefaultConfig(), logger)

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", conversationHandler.HealthCheck)

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations", conversationHandler.ListConversations)
	mux.HandleFunc("GET /api/conversations/{id}/path", conversationHandler.GetPath)
	mux.HandleFunc("POST /api/conversations/{id}/turns", conversationHandler.CreateTurn)
	mux.HandleFunc("POST /api/conversations/{id}/switch", conversationHandler.SwitchBranch)

	// Turn routes
	mux.HandleFunc("GET /api/turns/{id}", turnHandler.GetTurn)
	mux.HandleFunc("POST /api/turns/{id}/edit", turnHandler.EditTurn)
	mux.HandleFunc("GET /api/turns/{id}/siblings", turnHandler.GetSiblings)
	mux.HandleFunc("POST /api/turns/{id}/interrupt", turnHandler.InterruptTurn)

	// Streaming routes
	mux.HandleFunc("GET /api/turns/{id}/stream", streamHandler.StreamTurn)

	// Debug routes: the full-tree dump exposes every abandoned branch in one
	// response, so it stays behind the debug flag.
	if cfg.Debug {
		mux.HandleFunc("GET /api/conversations/{id}/turns", conversationHandler.GetTree)
		logger.Warn("Debug route registered: GET /api/conversations/{id}/turns (full conversation tree)")
	}

	// Middleware chain: CORS -> Recovery -> Routes
	var h http.Handler = mux
	h = middleware.Recovery(logger)(h)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	logger.Info("server stopped")
	return nil
}

func runSeed() error {
	ctx := context.Background()

	cfg, logger, registry, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	defer registry.Close()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("seeding requires DATABASE_URL; memory-only data would be lost on exit")
	}

	seeder := seed.NewTreeSeeder(registry, logger)
	if err := seeder.SeedAll(ctx); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	logger.Info("seeding complete", "table_prefix", cfg.TablePrefix)
	return nil
}
