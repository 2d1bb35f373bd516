package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"reizoko/internal/auth"
	"reizoko/internal/calendar"
	"reizoko/internal/config"
	"reizoko/internal/handlers"
	"reizoko/internal/presence"
	"reizoko/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Config file path (YAML)")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	dataDir := flag.String("data", "", "Data directory (overrides config)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "reizoko.db")
	db, err := store.NewSQLite(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("JWT_SECRET")
	}
	if jwtSecret == "" {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			log.Fatalf("Failed to generate JWT secret: %v", err)
		}
		jwtSecret = hex.EncodeToString(secretBytes)
		log.Printf("Generated JWT secret (set jwt_secret or JWT_SECRET to persist sessions across restarts)")
	}

	a := auth.New(jwtSecret)
	tracker := presence.New(time.Duration(cfg.PresenceTTLSeconds) * time.Second)
	defer tracker.Shutdown()
	h := handlers.New(db, calendar.NewCache(), a, tracker)

	if cfg.RoomIdleDays > 0 {
		scheduler := cron.New()
		idleFor := time.Duration(cfg.RoomIdleDays) * 24 * time.Hour
		_, err := scheduler.AddFunc(cfg.CleanupCron, func() {
			pruned, err := db.PruneIdleRooms(idleFor)
			if err != nil {
				log.Printf("Room cleanup failed: %v", err)
				return
			}
			if pruned > 0 {
				log.Printf("Pruned %d idle rooms", pruned)
			}
		})
		if err != nil {
			log.Fatalf("Invalid cleanup_cron %q: %v", cfg.CleanupCron, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	mux := http.NewServeMux()

	// Static files
	staticDir := "./static"
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	// API routes
	mux.HandleFunc("/api/session", a.Middleware(h.Session))
	mux.HandleFunc("/api/rooms", a.Middleware(h.CreateRoom))
	mux.HandleFunc("/api/rooms/", a.Middleware(h.Rooms))

	// Serve index.html for all other routes (SPA)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./templates/index.html")
	})

	log.Printf("Starting Reizoko server on %s", cfg.Listen)

	if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
