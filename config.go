package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"time"
)

// AppConfig holds all server configuration.
// Priority (lowest → highest): defaults < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Server
	DB   string `json:"db"`   // role catalog database connection string
	Dev  bool   `json:"dev"`  // dev mode: verbose logging
	Addr string `json:"addr"` // HTTP listen address

	// Phase timing (seconds)
	IntroSeconds       int `json:"intro_seconds"`
	DaySeconds         int `json:"day_seconds"`
	VotingSeconds      int `json:"voting_seconds"`
	NightTurnSeconds   int `json:"night_turn_seconds"`
	NightSettleSeconds int `json:"night_settle_seconds"`
	SurvivorRounds     int `json:"survivor_rounds"`

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir"`
	LogWS        bool   `json:"log_ws"`
	LogEvents    bool   `json:"log_events"`
	LogDebug     bool   `json:"log_debug"`

	// AI Storyteller
	StorytellerProvider    string `json:"storyteller_provider"`    // ollama | openai | claude | gemini | groq | openai-compatible
	StorytellerModel       string `json:"storyteller_model"`       // model name
	StorytellerOllamaURL   string `json:"storyteller_ollama_url"`  // Ollama server URL
	StorytellerURL         string `json:"storyteller_url"`         // base URL for openai-compatible
	StorytellerAPIKey      string `json:"storyteller_api_key"`     // API key for openai-compatible
	StorytellerTemperature string `json:"storyteller_temperature"` // float 0-1 as string
	GroqAPIKey             string `json:"groq_api_key"`            // API key for groq provider
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir: cfg.LogOutputDir,
		LogWS:     cfg.LogWS,
		LogEvents: cfg.LogEvents,
		Debug:     cfg.LogDebug,
	}
}

func (cfg AppConfig) toEngineConfig() EngineConfig {
	return EngineConfig{
		IntroductionDuration: time.Duration(cfg.IntroSeconds) * time.Second,
		DayDuration:          time.Duration(cfg.DaySeconds) * time.Second,
		VotingDuration:       time.Duration(cfg.VotingSeconds) * time.Second,
		NightTurnBudget:      time.Duration(cfg.NightTurnSeconds) * time.Second,
		NightSettleDelay:     time.Duration(cfg.NightSettleSeconds) * time.Second,
		SurvivorRoundTarget:  cfg.SurvivorRounds,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		DB:                   "file::memory:?cache=shared",
		Addr:                 ":8080",
		IntroSeconds:         180,
		DaySeconds:           300,
		VotingSeconds:        120,
		NightTurnSeconds:     30,
		NightSettleSeconds:   2,
		SurvivorRounds:       3,
		StorytellerOllamaURL: "http://localhost:11434",
	}
}

// loadConfig builds a config by layering: defaults → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath string) AppConfig {
	cfg := defaultConfig()

	// Layer 1: env vars
	envStr := os.Getenv
	envBool := func(key string) (val bool, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return false, false
		}
		return v == "1" || v == "true" || v == "yes", true
	}
	envInt := func(key string) (val int, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("Config: invalid %s=%q, ignoring", key, v)
			return 0, false
		}
		return n, true
	}

	if v := envStr("DB"); v != "" {
		cfg.DB = v
	}
	if v, ok := envBool("DEV"); ok {
		cfg.Dev = v
	}
	if v := envStr("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v, ok := envInt("INTRO_SECONDS"); ok {
		cfg.IntroSeconds = v
	}
	if v, ok := envInt("DAY_SECONDS"); ok {
		cfg.DaySeconds = v
	}
	if v, ok := envInt("VOTING_SECONDS"); ok {
		cfg.VotingSeconds = v
	}
	if v, ok := envInt("NIGHT_TURN_SECONDS"); ok {
		cfg.NightTurnSeconds = v
	}
	if v, ok := envInt("NIGHT_SETTLE_SECONDS"); ok {
		cfg.NightSettleSeconds = v
	}
	if v, ok := envInt("SURVIVOR_ROUNDS"); ok {
		cfg.SurvivorRounds = v
	}
	if v := envStr("LOG_OUTPUT_DIR"); v != "" {
		cfg.LogOutputDir = v
	}
	if v, ok := envBool("LOG_WS"); ok {
		cfg.LogWS = v
	}
	if v, ok := envBool("LOG_EVENTS"); ok {
		cfg.LogEvents = v
	}
	if v, ok := envBool("LOG_DEBUG"); ok {
		cfg.LogDebug = v
	}
	if v := envStr("STORYTELLER_PROVIDER"); v != "" {
		cfg.StorytellerProvider = v
	}
	if v := envStr("STORYTELLER_MODEL"); v != "" {
		cfg.StorytellerModel = v
	}
	if v := envStr("STORYTELLER_OLLAMA_URL"); v != "" {
		cfg.StorytellerOllamaURL = v
	}
	if v := envStr("STORYTELLER_URL"); v != "" {
		cfg.StorytellerURL = v
	}
	if v := envStr("STORYTELLER_API_KEY"); v != "" {
		cfg.StorytellerAPIKey = v
	}
	if v := envStr("STORYTELLER_TEMPERATURE"); v != "" {
		cfg.StorytellerTemperature = v
	}
	if v := envStr("GROQ_API_KEY"); v != "" {
		cfg.GroqAPIKey = v
	}

	// Layer 2: JSON config file — only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			applyJSONOverlay(&cfg, overlay)
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) {
	str := func(key string, dst *string) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	str("db", &cfg.DB)
	boolean("dev", &cfg.Dev)
	str("addr", &cfg.Addr)
	integer("intro_seconds", &cfg.IntroSeconds)
	integer("day_seconds", &cfg.DaySeconds)
	integer("voting_seconds", &cfg.VotingSeconds)
	integer("night_turn_seconds", &cfg.NightTurnSeconds)
	integer("night_settle_seconds", &cfg.NightSettleSeconds)
	integer("survivor_rounds", &cfg.SurvivorRounds)
	str("log_output_dir", &cfg.LogOutputDir)
	boolean("log_ws", &cfg.LogWS)
	boolean("log_events", &cfg.LogEvents)
	boolean("log_debug", &cfg.LogDebug)
	str("storyteller_provider", &cfg.StorytellerProvider)
	str("storyteller_model", &cfg.StorytellerModel)
	str("storyteller_ollama_url", &cfg.StorytellerOllamaURL)
	str("storyteller_url", &cfg.StorytellerURL)
	str("storyteller_api_key", &cfg.StorytellerAPIKey)
	str("storyteller_temperature", &cfg.StorytellerTemperature)
	str("groq_api_key", &cfg.GroqAPIKey)
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	configPath             *string
	db                     *string
	dev                    *bool
	addr                   *string
	introSeconds           *int
	daySeconds             *int
	votingSeconds          *int
	nightTurnSeconds       *int
	nightSettleSeconds     *int
	survivorRounds         *int
	logOutputDir           *string
	logWS                  *bool
	logEvents              *bool
	logDebug               *bool
	storytellerProvider    *string
	storytellerModel       *string
	storytellerOllamaURL   *string
	storytellerURL         *string
	storytellerAPIKey      *string
	storytellerTemperature *string
	groqAPIKey             *string
}

// registerFlags registers all CLI flags and returns pointers to their values.
// Call flag.Parse() after this, then applyTo to layer them over the loaded config.
func registerFlags() flagValues {
	return flagValues{
		configPath:             flag.String("config", "config.json", "path to JSON config file"),
		db:                     flag.String("db", "", "role catalog database connection string"),
		dev:                    flag.Bool("dev", false, "enable development mode (verbose logging)"),
		addr:                   flag.String("addr", "", "HTTP listen address (e.g. :8080)"),
		introSeconds:           flag.Int("intro-seconds", 0, "introduction phase duration in seconds"),
		daySeconds:             flag.Int("day-seconds", 0, "day phase duration in seconds"),
		votingSeconds:          flag.Int("voting-seconds", 0, "voting phase duration in seconds"),
		nightTurnSeconds:       flag.Int("night-turn-seconds", 0, "per night turn budget in seconds"),
		nightSettleSeconds:     flag.Int("night-settle-seconds", 0, "dawn settle delay in seconds"),
		survivorRounds:         flag.Int("survivor-rounds", 0, "voting rounds a survivor must outlast"),
		logOutputDir:           flag.String("log-output-dir", "", "directory for extended log files"),
		logWS:                  flag.Bool("log-ws", false, "log WebSocket messages"),
		logEvents:              flag.Bool("log-events", false, "log room event broadcasts"),
		logDebug:               flag.Bool("log-debug", false, "enable debug logging"),
		storytellerProvider:    flag.String("storyteller-provider", "", "AI storyteller provider (ollama|openai|claude|gemini|groq|openai-compatible)"),
		storytellerModel:       flag.String("storyteller-model", "", "AI storyteller model name"),
		storytellerOllamaURL:   flag.String("storyteller-ollama-url", "", "Ollama server URL"),
		storytellerURL:         flag.String("storyteller-url", "", "base URL for openai-compatible provider"),
		storytellerAPIKey:      flag.String("storyteller-api-key", "", "API key for storyteller provider"),
		storytellerTemperature: flag.String("storyteller-temperature", "", "sampling temperature 0-1"),
		groqAPIKey:             flag.String("groq-api-key", "", "Groq API key"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(cfg *AppConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.DB = *fv.db
		case "dev":
			cfg.Dev = *fv.dev
		case "addr":
			cfg.Addr = *fv.addr
		case "intro-seconds":
			cfg.IntroSeconds = *fv.introSeconds
		case "day-seconds":
			cfg.DaySeconds = *fv.daySeconds
		case "voting-seconds":
			cfg.VotingSeconds = *fv.votingSeconds
		case "night-turn-seconds":
			cfg.NightTurnSeconds = *fv.nightTurnSeconds
		case "night-settle-seconds":
			cfg.NightSettleSeconds = *fv.nightSettleSeconds
		case "survivor-rounds":
			cfg.SurvivorRounds = *fv.survivorRounds
		case "log-output-dir":
			cfg.LogOutputDir = *fv.logOutputDir
		case "log-ws":
			cfg.LogWS = *fv.logWS
		case "log-events":
			cfg.LogEvents = *fv.logEvents
		case "log-debug":
			cfg.LogDebug = *fv.logDebug
		case "storyteller-provider":
			cfg.StorytellerProvider = *fv.storytellerProvider
		case "storyteller-model":
			cfg.StorytellerModel = *fv.storytellerModel
		case "storyteller-ollama-url":
			cfg.StorytellerOllamaURL = *fv.storytellerOllamaURL
		case "storyteller-url":
			cfg.StorytellerURL = *fv.storytellerURL
		case "storyteller-api-key":
			cfg.StorytellerAPIKey = *fv.storytellerAPIKey
		case "storyteller-temperature":
			cfg.StorytellerTemperature = *fv.storytellerTemperature
		case "groq-api-key":
			cfg.GroqAPIKey = *fv.groqAPIKey
		}
	})
}
