package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spiritrealm/earn-engine/internal/models"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string

	StartingBalance int64

	SpinCooldown time.Duration
	MineCooldown time.Duration
	MineDailyCap int64

	// Optional JSON file overriding the built-in reward table.
	RewardTablePath string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:       getEnv("REDIS_PASSWORD", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		StartingBalance: getEnvInt64("STARTING_BALANCE", 1000),
		MineDailyCap:    getEnvInt64("MINE_DAILY_CAP", 300),
		RewardTablePath: getEnv("REWARD_TABLE_PATH", ""),
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		v, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %v", err)
		}
		cfg.RedisDB = v
	}

	if cfg.JWTSecret == "" && cfg.Env == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	cfg.SpinCooldown = getEnvDuration("SPIN_COOLDOWN", 10*time.Second)
	cfg.MineCooldown = getEnvDuration("MINE_COOLDOWN", 5*time.Second)

	return cfg, nil
}

// LoadRewardTable returns the built-in table, or the JSON override when
// REWARD_TABLE_PATH is set. Called once per process; the table is immutable
// afterwards.
func (c *Config) LoadRewardTable() (*models.RewardTable, error) {
	table := models.DefaultRewardTable()
	if c.RewardTablePath != "" {
		data, err := os.ReadFile(c.RewardTablePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read reward table: %v", err)
		}
		table = &models.RewardTable{}
		if err := json.Unmarshal(data, table); err != nil {
			return nil, fmt.Errorf("failed to parse reward table: %v", err)
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
