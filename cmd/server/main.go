package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/roomstage/studio/internal/aiclient"
	"github.com/roomstage/studio/internal/asset"
	"github.com/roomstage/studio/internal/auth"
	"github.com/roomstage/studio/internal/config"
	mw "github.com/roomstage/studio/internal/middleware"
	"github.com/roomstage/studio/internal/session"
	"github.com/roomstage/studio/internal/studio"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ai, err := aiclient.New(aiclient.Config{
		Host:    cfg.AIBaseURL,
		Timeout: cfg.AITimeout,
	})
	if err != nil {
		slog.Error("create ai client", "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(cfg.JWTSecret)
	if !authService.Enabled() {
		slog.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	assetHandler := asset.NewHandler(cfg.AssetDir)
	// Image refs in request bodies are untrusted. Remote fetches are off
	// unless enabled, and then restricted to public addresses.
	var resolver *asset.Resolver
	if cfg.AllowRemote {
		resolver = asset.NewResolver(assetHandler, asset.PublicClient(30*time.Second))
	} else {
		resolver = asset.NewResolver(assetHandler, nil, asset.WithoutRemote())
	}

	studioHandler := studio.NewHandler(studio.Config{
		Source:          resolver,
		AI:              ai,
		CanvasWidth:     cfg.CanvasWidth,
		CanvasHeight:    cfg.CanvasHeight,
		DefaultPrompt:   cfg.DefaultPrompt,
		MaskFeather:     cfg.MaskFeather,
		MaxCanvasPixels: cfg.MaxCanvasPixels,
	})
	sessionHandler := session.NewHandler(cfg.Origins())

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Room photos and furniture images
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/composite", studioHandler.Composite).Methods("POST", "OPTIONS")
	api.HandleFunc("/render", studioHandler.Render).Methods("POST", "OPTIONS")
	api.HandleFunc("/furniture/remove-bg", studioHandler.RemoveBackground).Methods("POST", "OPTIONS")
	api.HandleFunc("/erase", studioHandler.Erase).Methods("POST", "OPTIONS")
	api.HandleFunc("/mask", studioHandler.Mask).Methods("POST", "OPTIONS")
	api.HandleFunc("/layout/auto", studioHandler.AutoPlace).Methods("POST", "OPTIONS")
	api.HandleFunc("/items", studioHandler.NewItems).Methods("POST", "OPTIONS")
	api.HandleFunc("/assets/{id}", assetHandler.HandleDelete).Methods("DELETE", "OPTIONS")

	// Erase-region picker
	r.Handle("/ws/selection", sessionHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AITimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "ai", cfg.AIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
