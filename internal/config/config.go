package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Room     RoomConfig
	Relay    RelayConfig
	LogLevel string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type RoomConfig struct {
	// TTL is the inactivity window after which a room is evicted.
	TTL           time.Duration
	SweepInterval time.Duration
}

type RelayConfig struct {
	// MaxFrameBytes caps a single websocket frame. Ciphertext is opaque to
	// the server, so this is the only limit applied to relayed payloads.
	MaxFrameBytes int64
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("READ_TIMEOUT", "15s"),
			WriteTimeout:    getDurationOrDefault("WRITE_TIMEOUT", "15s"),
			ShutdownTimeout: getDurationOrDefault("SHUTDOWN_TIMEOUT", "10s"),
		},
		Room: RoomConfig{
			TTL:           getDurationOrDefault("ROOM_TTL", "1h"),
			SweepInterval: getDurationOrDefault("SWEEP_INTERVAL", "60s"),
		},
		Relay: RelayConfig{
			MaxFrameBytes: getInt64OrDefault("MAX_FRAME_BYTES", 20<<20),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key, defaultValue string) time.Duration {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("Invalid duration for %s: %v", key, err)
	}
	return duration
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %v", key, err)
	}
	return intValue
}
