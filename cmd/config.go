package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"lostfound/pkg/backend"
)

// loadConfig reads envFile when it exists; variables already set in the
// environment win over the file.
func loadConfig(envFile string) (backend.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return backend.Config{}, fmt.Errorf("config: failed reading %s: %w", envFile, err)
		}
	}

	cfg := backend.Config{
		ListenAddr:  env("LISTEN_ADDR", ":8080"),
		PublicURL:   env("PUBLIC_URL", "http://localhost:8080"),
		PostgresDSN: env("POSTGRES_DSN", "postgresql://localhost/lostfound?sslmode=disable"),
		RedisAddr:   env("REDIS_ADDR", "redis://localhost:6379"),
		MongoURI:    env("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:     env("MONGODB_DB", "lostfound"),
		SecretKey:   os.Getenv("SECRET_KEY"),
		LogLevel:    env("LOG_LEVEL", "info"),
	}
	if cfg.SecretKey == "" {
		return backend.Config{}, errors.New("config: SECRET_KEY is not set")
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
