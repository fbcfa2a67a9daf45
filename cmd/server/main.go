package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"cipher-relay/internal/config"
	"cipher-relay/internal/handlers"
	"cipher-relay/internal/registry"
	"cipher-relay/internal/services"
	"cipher-relay/internal/websocket"
	"cipher-relay/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	// Initialize room registry
	reg := registry.New(cfg.Room.TTL, cfg.Room.SweepInterval)

	// Initialize services
	roomService := services.NewRoomService(reg)

	// Initialize WebSocket hub manager
	hubManager := websocket.NewManager(reg)

	// Initialize handlers
	roomHandlers := handlers.NewRoomHandlers(roomService)
	wsHandlers := handlers.NewWebSocketHandlers(roomService, hubManager, cfg.Relay.MaxFrameBytes)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, roomHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Eviction sweeper and hub reaper run for the process lifetime.
	g.Go(func() error {
		reg.Run(ctx)
		return nil
	})
	g.Go(func() error {
		hubManager.Run(ctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("🚀 Relay started on http://localhost%s", cfg.Server.Port)
		logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}

func setupRoutes(mux *http.ServeMux, roomHandlers *handlers.RoomHandlers, wsHandlers *handlers.WebSocketHandlers) {
	mux.HandleFunc("/api/room/create", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		roomHandlers.CreateRoom(w, r)
	})

	mux.HandleFunc("/healthz", roomHandlers.Health)

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
