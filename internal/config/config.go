// Package config loads process configuration from the environment. An
// optional .env file next to the working directory is honored.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Load reads a .env file if one is present. Missing files are fine; the
// environment always wins.
func Load() {
	_ = godotenv.Load()
}

// GrassEnv returns the environment settings applied to every spawned
// GRASS module.
func GrassEnv() []string {
	env := []string{
		"GRASS_COMPRESS_NULLS=1",
		"GRASS_MESSAGE_FORMAT=plain",
	}
	compressor := os.Getenv("GRASS_COMPRESSOR")
	if compressor == "" {
		compressor = "ZSTD"
	}
	env = append(env, "GRASS_COMPRESSOR="+compressor)
	return env
}

// CacheDir is where scan results are cached between runs.
func CacheDir() string {
	if dir := os.Getenv("S2TOOLS_CACHE_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "s2tools")
}

// DiscordErrorWebhook is the webhook for failure notifications. Empty
// disables notifications.
func DiscordErrorWebhook() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

// DiscordSuccessWebhook is the webhook for success notifications.
func DiscordSuccessWebhook() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
