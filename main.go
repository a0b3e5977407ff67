package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"

	"epgbridge/api"
	"epgbridge/config"
	"epgbridge/handlers"
	"epgbridge/services/dragdrop"
	"epgbridge/services/mapping"
	"epgbridge/services/store"
	"epgbridge/services/suggest"
	"epgbridge/services/upstream"
	"epgbridge/utils/pin"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	upstreamOverride := flag.String("upstream", "", "override EPG backend base URL from config")
	flag.Parse()

	fmt.Println("🚀 EPG Bridge Starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("EPGBRIDGE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			// Redirect standard log to both console and file
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}
	if *upstreamOverride != "" {
		settings.Upstream.BaseURL = *upstreamOverride
	}

	// Generate an admin PIN on first run. Only the bcrypt hash is persisted,
	// so the cleartext PIN is shown exactly once.
	if settings.Server.PINHash == "" {
		newPIN, err := pin.Generate()
		if err != nil {
			log.Fatalf("failed to generate PIN: %v", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash PIN: %v", err)
		}
		settings.Server.PINHash = string(hash)
		if err := cfgManager.Save(settings); err != nil {
			log.Fatalf("failed to persist generated PIN: %v", err)
		}
		fmt.Printf("🔑 Admin PIN: %s\n", newPIN)
		fmt.Println("📱 This PIN is shown once. Delete pinHash from the config to regenerate.")
	}

	// Wire services
	st := store.New()
	client := upstream.NewClient(settings.Upstream.BaseURL, time.Duration(settings.Upstream.TimeoutSec)*time.Second)
	dragController := dragdrop.NewController()
	suggestEngine := suggest.NewEngine(st, suggest.Options{
		Floor:     settings.Matching.SuggestionFloor,
		Confident: settings.Matching.ConfidentThreshold,
		MinGram:   settings.Matching.MinGram,
		MaxGram:   settings.Matching.MaxGram,
		TopK:      settings.Matching.TopK,
	})
	mappingService := mapping.NewService(st, client, dragController, suggestEngine, settings.Matching.FallbackWorkers)

	// Construct router and register routes
	r := mux.NewRouter()
	mappingHandler := handlers.NewMappingHandler(mappingService, st, dragController, suggestEngine)
	adminUIHandler := handlers.NewAdminUIHandler(mappingService, st, dragController, suggestEngine, settings.Server.PINHash)
	api.Register(r, mappingHandler, adminUIHandler)
	api.RegisterAdminUI(r, adminUIHandler)

	fmt.Println("📊 Mapping dashboard available at /admin")

	// Initial data load in the background; the dashboard's refresh button
	// covers the case where the backend was not up yet.
	go func() {
		ctx, cancel := mapping.NewLoadContext()
		defer cancel()
		if err := mappingService.LoadAll(ctx); err != nil {
			log.Printf("initial data load failed: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
