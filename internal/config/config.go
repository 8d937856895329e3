// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/insiderdesk/signal-engine/internal/conviction"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port        string
	DatabaseURL string // Postgres; empty → SQLitePath or memory
	SQLitePath  string // local single-user mode
	RedisURL    string // optional read-through cache
	CacheTTL    time.Duration

	// Calibration carries the scoring constants. Tunable via
	// SCORE_ROLE_MULT / SCORE_CLUSTER_BONUS / SCORE_DECAY_FLOOR so the
	// weighting can be re-calibrated without a rebuild.
	Calibration conviction.Calibration
}

// Load reads .env (if present) and the environment.
func Load() Config {
	godotenv.Load(".env")

	cal := conviction.DefaultCalibration()
	cal.OfficerMultiplier = getFloat("SCORE_ROLE_MULT", cal.OfficerMultiplier)
	cal.ClusterBonus = getFloat("SCORE_CLUSTER_BONUS", cal.ClusterBonus)
	cal.DecayFloor = getFloat("SCORE_DECAY_FLOOR", cal.DecayFloor)

	return Config{
		Port:        get("PORT", "8080"),
		DatabaseURL: get("DATABASE_URL", ""),
		SQLitePath:  get("SQLITE_PATH", ""),
		RedisURL:    get("REDIS_URL", ""),
		CacheTTL:    getDuration("CACHE_TTL", 30*time.Second),
		Calibration: cal,
	}
}

func get(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float in env, using default", "key", key, "value", v)
		return def
	}
	return f
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in env, using default", "key", key, "value", v)
		return def
	}
	return d
}
