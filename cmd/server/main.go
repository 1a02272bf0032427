package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"room-coordinator/internal/auth"
	"room-coordinator/internal/broadcast"
	"room-coordinator/internal/config"
	"room-coordinator/internal/database"
	"room-coordinator/internal/gateway"
	"room-coordinator/internal/handlers"
	"room-coordinator/internal/identity"
	"room-coordinator/internal/lifecycle"
	"room-coordinator/internal/moderation"
	"room-coordinator/internal/ratelimit"
	"room-coordinator/internal/room"
	"room-coordinator/internal/services"
	"room-coordinator/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	store, err := database.NewPostgresStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer store.Close()

	// Core coordinator components
	registry := room.NewRegistry(identity.NewAllocator(), cfg.Rooms.Capacity)
	limiter := ratelimit.New(cfg.SlowMode.Cooldown)
	scheduler := lifecycle.NewScheduler()
	defer scheduler.Shutdown()

	var checker moderation.Checker = moderation.AllowAll{}
	if cfg.Moderation.URL != "" {
		checker = moderation.NewHTTPChecker(cfg.Moderation.URL, cfg.Moderation.Timeout)
	}

	authService := auth.NewService(store, cfg)
	gw := gateway.New(cfg, authService, registry, limiter, scheduler, checker, store)
	broadcaster := broadcast.New(registry, store, gw)
	gw.SetBroadcaster(broadcaster)

	roomService := services.NewRoomService(store, registry, broadcaster, cfg)

	// Expired-room sweep
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go roomService.StartCleanupLoop(cleanupCtx, gw, 5*time.Minute)

	// Initialize handlers
	roomHandlers := handlers.NewRoomHandlers(roomService, gw)
	healthHandlers := handlers.NewHealthHandlers(gw.ConnectionCount)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, roomHandlers, healthHandlers, gw)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Coordinator started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}

func setupRoutes(mux *http.ServeMux, roomHandlers *handlers.RoomHandlers,
	healthHandlers *handlers.HealthHandlers, gw *gateway.Gateway) {
	mux.HandleFunc("/health", healthHandlers.Health)

	mux.HandleFunc("/rooms/discover", roomHandlers.DiscoverRooms)
	mux.HandleFunc("/rooms/nearby", roomHandlers.NearbyRooms)
	mux.HandleFunc("/rooms/nearby/count", roomHandlers.NearbyCount)
	mux.HandleFunc("/rooms/cleanup", roomHandlers.CleanupRooms)

	mux.HandleFunc("/rooms/user", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			roomHandlers.CreateUserRoom(w, r)
		case http.MethodGet:
			roomHandlers.UserRooms(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/rooms/user/slots", roomHandlers.UserRoomSlots)

	// /rooms/{id} and /rooms/{id}/messages
	mux.HandleFunc("/rooms/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/messages") {
			roomHandlers.RoomMessages(w, r)
			return
		}
		roomHandlers.GetRoom(w, r)
	})

	// WebSocket route
	mux.HandleFunc("/ws", gw.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   GET  /health")
	logger.Info("   GET  /rooms/discover")
	logger.Info("   GET  /rooms/nearby")
	logger.Info("   GET  /rooms/nearby/count")
	logger.Info("   GET  /rooms/{id}")
	logger.Info("   GET  /rooms/{id}/messages")
	logger.Info("   POST /rooms/user")
	logger.Info("   GET  /rooms/user/slots")
	logger.Info("   GET  /rooms/cleanup")
}
