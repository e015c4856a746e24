package main

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// AppLogger provides optional file logging for WebSocket traffic and room
// events, plus a debug toggle. Used by both the server and tests.
type AppLogger struct {
	outputDir string
	logWS     bool
	logEvents bool
	debug     bool
	wsLog     *os.File
	eventLog  *os.File

	mu             sync.Mutex
	wsMessageCount int
	eventCount     int
}

// Global application logger (used by server)
var appLogger *AppLogger

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir string
	LogWS     bool
	LogEvents bool
	Debug     bool
}

// NewAppLogger creates a new application logger
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{
		outputDir: config.OutputDir,
		logWS:     config.LogWS,
		logEvents: config.LogEvents,
		debug:     config.Debug,
	}

	if al.outputDir == "" {
		return al, nil // No file logging, just the debug toggle
	}

	var err error
	if al.logWS {
		path := fmt.Sprintf("%s/websocket.log", al.outputDir)
		al.wsLog, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open WebSocket log: %w", err)
		}
	}
	if al.logEvents {
		path := fmt.Sprintf("%s/room_events.log", al.outputDir)
		al.eventLog, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open room event log: %w", err)
		}
	}

	return al, nil
}

// NewAppLoggerFromEnv creates a logger from environment variables.
// Checks both LOG_* (server) and TEST_LOG_* (test) variants.
func NewAppLoggerFromEnv() (*AppLogger, error) {
	envBool := func(serverVar, testVar string) bool {
		return os.Getenv(serverVar) == "1" || os.Getenv(testVar) == "1"
	}
	envStr := func(serverVar, testVar string) string {
		if v := os.Getenv(serverVar); v != "" {
			return v
		}
		return os.Getenv(testVar)
	}

	config := LogConfig{
		OutputDir: envStr("LOG_OUTPUT_DIR", "TEST_OUTPUT_DIR"),
		LogWS:     envBool("LOG_WS", "TEST_LOG_WS"),
		LogEvents: envBool("LOG_EVENTS", "TEST_LOG_EVENTS"),
		Debug:     envBool("LOG_DEBUG", "TEST_DEBUG"),
	}
	return NewAppLogger(config)
}

// InitAppLogger initializes the global application logger
func InitAppLogger(config LogConfig) error {
	var err error
	appLogger, err = NewAppLogger(config)
	return err
}

// Close closes all open log files
func (al *AppLogger) Close() {
	if al.wsLog != nil {
		al.wsLog.Close()
	}
	if al.eventLog != nil {
		al.eventLog.Close()
	}
}

// LogWebSocket logs a WebSocket message
func (al *AppLogger) LogWebSocket(direction, who, message string) {
	if !al.logWS || al.wsLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.wsMessageCount++
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Fprintf(al.wsLog, "[%s] #%d %s [%s]: %s\n",
		timestamp, al.wsMessageCount, direction, who, message)
}

// LogEvent logs one room event broadcast
func (al *AppLogger) LogEvent(roomID, event, detail string) {
	if !al.logEvents || al.eventLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.eventCount++
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Fprintf(al.eventLog, "[%s] #%d room=%s event=%s %s\n",
		timestamp, al.eventCount, roomID, event, detail)
}

// Debug logs a debug message if debug mode is enabled
func (al *AppLogger) Debug(context, format string, args ...any) {
	if !al.debug {
		return
	}
	log.Printf("[DEBUG] "+context+": "+format, args...)
}

// IsEnabled returns true if any logging is enabled
func (al *AppLogger) IsEnabled() bool {
	return al.logWS || al.logEvents || al.debug
}

// ============================================================================
// Global helper functions
// ============================================================================

// LogWSMessage logs a WebSocket message using the global logger
func LogWSMessage(direction, who, message string) {
	if appLogger != nil {
		appLogger.LogWebSocket(direction, who, message)
	}
}

// LogRoomEvent logs a room event using the global logger
func LogRoomEvent(roomID, event, detail string) {
	if appLogger != nil {
		appLogger.LogEvent(roomID, event, detail)
	}
}

// DebugLog logs a debug message using the global logger
func DebugLog(context, format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug(context, format, args...)
	}
}

// CloseAppLogger closes the global application logger
func CloseAppLogger() {
	if appLogger != nil {
		appLogger.Close()
	}
}

var devMode bool

// logError logs an error with context
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
}
