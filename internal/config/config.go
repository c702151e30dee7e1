package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/shearlock.db"

	// SettingsPath is where runtime settings (timeout, channels,
	// error action) are persisted between restarts.
	SettingsPath string

	// Hardware backend: "sim" runs in-process stand-ins, "none" skips
	// device loops entirely (API-only operation).
	Hardware string // "sim" | "none"

	ReaderPollInterval time.Duration
	InputPollInterval  time.Duration
	ReconnectInterval  time.Duration
}

func FromEnv() Config {
	addr := getenvDefault("SHEARLOCK_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("SHEARLOCK_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("SHEARLOCK_DB_PATH", "./data/shearlock.db")
	settingsPath := getenvDefault("SHEARLOCK_SETTINGS_PATH", "./data/settings.toml")

	hardware := strings.ToLower(getenvDefault("SHEARLOCK_HARDWARE", "sim"))
	if hardware != "sim" && hardware != "none" {
		hardware = "sim"
	}

	readerPoll := getenvMillis("SHEARLOCK_READER_POLL_MS", 20)
	inputPoll := getenvMillis("SHEARLOCK_INPUT_POLL_MS", 100)
	reconnect := getenvMillis("SHEARLOCK_RECONNECT_MS", 5000)

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		SettingsPath: settingsPath,
		Hardware:     hardware,

		ReaderPollInterval: readerPoll,
		InputPollInterval:  inputPoll,
		ReconnectInterval:  reconnect,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvMillis(key string, defMillis int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(defMillis) * time.Millisecond
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(defMillis) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}
