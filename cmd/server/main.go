package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"loom/internal/config"
	"loom/internal/handler"
	"loom/internal/middleware"
	"loom/internal/service/graph"
	"loom/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	var logOut io.Writer = os.Stdout
	logFile, err := config.SetupLogFile(filepath.Join(cfg.DataDir, "logs"), 10)
	if err != nil {
		log.Printf("warning: file logging disabled: %v", err)
	} else {
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"db_path", cfg.DBPath,
	)

	// Open the storage backend
	backend, err := storage.NewSQLiteBackend(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open storage backend: %v", err)
	}
	defer backend.Close()

	// Create the graph store and restore persisted state. A nil rng means
	// non-deterministic card placement, which is what the app wants.
	store := graph.NewStore(backend, nil, logger)
	info := store.Load()
	if info.CorruptionError != nil {
		logger.Warn("persisted state was corrupt, starting from defaults",
			"error", info.CorruptionError,
		)
	}

	// Create handlers
	graphHandler := handler.NewGraphHandler(store, logger)
	workspaceHandler := handler.NewWorkspaceHandler(store, logger)
	previewHandler := handler.NewPreviewHandler(logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", graphHandler.HealthCheck)

	// Graph projection
	mux.HandleFunc("GET /api/graph", graphHandler.GetGraph)

	// Card routes
	mux.HandleFunc("POST /api/cards", graphHandler.CreateCard)
	mux.HandleFunc("GET /api/cards/{id}", graphHandler.GetCard)
	mux.HandleFunc("PATCH /api/cards/{id}", graphHandler.UpdateCard)
	mux.HandleFunc("DELETE /api/cards/{id}", graphHandler.DeleteCard)
	mux.HandleFunc("POST /api/cards/{id}/branch", graphHandler.Branch)
	mux.HandleFunc("POST /api/cards/{id}/messages", graphHandler.AppendMessage)
	mux.HandleFunc("POST /api/cards/{id}/move", graphHandler.MoveCard)
	mux.HandleFunc("PATCH /api/cards/{id}/context/{parentId}", graphHandler.UpdateInheritedSummary)

	// Merge and edge routes
	mux.HandleFunc("POST /api/merges", graphHandler.CreateMerge)
	mux.HandleFunc("POST /api/edges", graphHandler.CreateEdge)

	// Selection and history
	mux.HandleFunc("PUT /api/selection", graphHandler.SetSelection)
	mux.HandleFunc("POST /api/history/undo", graphHandler.Undo)
	mux.HandleFunc("POST /api/history/redo", graphHandler.Redo)

	// Workspace routes
	mux.HandleFunc("GET /api/workspaces", workspaceHandler.ListWorkspaces)
	mux.HandleFunc("POST /api/workspaces", workspaceHandler.CreateWorkspace)
	mux.HandleFunc("PATCH /api/workspaces/{id}", workspaceHandler.UpdateWorkspace)
	mux.HandleFunc("POST /api/workspaces/{id}/navigate", workspaceHandler.Navigate)

	// Preview routes (pure, no stored state)
	mux.HandleFunc("POST /api/preview/truncate", previewHandler.Truncate)
	mux.HandleFunc("POST /api/preview/branch-validation", previewHandler.ValidateBranch)

	// Build middleware chain
	var httpHandler http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS -> Recovery -> Logging -> Routes
	httpHandler = middleware.RequestLogging(logger)(httpHandler)
	httpHandler = middleware.Recovery(logger)(httpHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Shut down cleanly on SIGINT/SIGTERM so the debounced save flushes.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	store.Flush()
	logger.Info("state flushed, goodbye")
}
