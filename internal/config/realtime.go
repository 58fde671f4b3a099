package config

import (
	"os"
	"strconv"
	"time"
)

// RealtimeConfig tunes the event channel on both ends.
type RealtimeConfig struct {
	PingInterval       time.Duration
	ReconnectMin       time.Duration
	ReconnectMax       time.Duration
	WriteTimeout       time.Duration
	SendBuffer         int
	ReserveRateLimit   int
	ReserveRateWindow  time.Duration
	EventChannelPrefix string
}

func LoadRealtimeConfig() *RealtimeConfig {
	return &RealtimeConfig{
		PingInterval:       getEnvAsDuration("WS_PING_INTERVAL", 25*time.Second),
		ReconnectMin:       getEnvAsDuration("WS_RECONNECT_MIN", 1*time.Second),
		ReconnectMax:       getEnvAsDuration("WS_RECONNECT_MAX", 30*time.Second),
		WriteTimeout:       getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		SendBuffer:         getEnvAsInt("WS_SEND_BUFFER", 64),
		ReserveRateLimit:   getEnvAsInt("RESERVE_RATE_LIMIT", 20),
		ReserveRateWindow:  getEnvAsDuration("RESERVE_RATE_WINDOW", 10*time.Minute),
		EventChannelPrefix: getEnv("EVENT_CHANNEL_PREFIX", "wishlist"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
