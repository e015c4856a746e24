package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError("writeJSON", err)
	}
}

func handleCreateRoom(registry *RoomRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		engine, err := registry.CreateRoom()
		if err != nil {
			logError("handleCreateRoom", err)
			http.Error(w, "Something went wrong", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"room": engine.RoomID()})
	}
}

func handleRoomState(registry *RoomRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		engine := registry.Get(code)
		if engine == nil {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, engine.PublicState())
	}
}

func handleRoles(catalog *RoleCatalog) http.HandlerFunc {
	type roleView struct {
		ID          RoleID `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Team        Team   `json:"team"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var roles []roleView
		for _, info := range catalog.AllImplementedRoles() {
			roles = append(roles, roleView{
				ID:          info.ID,
				Name:        info.Name,
				Description: info.Description,
				Team:        info.Team,
			})
		}
		writeJSON(w, http.StatusOK, roles)
	}
}

func main() {
	fv := registerFlags()
	flag.Parse()

	cfg := loadConfig(*fv.configPath)
	fv.applyTo(&cfg)
	devMode = cfg.Dev
	if devMode {
		cfg.LogDebug = true
	}

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolfrooms.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	if err := InitAppLogger(cfg.toLogConfig()); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer CloseAppLogger()
	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	db, err := sqlx.Connect("sqlite3", cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := initDB(db); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	catalog, err := LoadRoleCatalog(db)
	if err != nil {
		log.Fatal("Failed to load role catalog:", err)
	}

	narrator := newStoryteller(cfg)

	hub := newHub()
	go hub.run()
	defer hub.stop()

	registry := NewRoomRegistry(catalog, cfg.toEngineConfig(), realClock{}, hub, hub, narrator)
	hub.rooms = registry
	defer registry.StopAll()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rooms", handleCreateRoom(registry))
	mux.HandleFunc("GET /rooms/{code}", handleRoomState(registry))
	mux.HandleFunc("GET /roles", handleRoles(catalog))
	mux.HandleFunc("/ws", hub.handleWebSocket)

	log.Printf("Server starting on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, mux))
}
