package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopfloor/shearlock/internal/config"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

func TestLoadSettings_MissingFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	s, err := config.LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s != config.DefaultSettings() {
		t.Errorf("expected defaults, got %+v", s)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	want := types.Settings{
		TimeoutSeconds: 120,
		OutputChannel:  "FIO7",
		MotionChannel:  "FIO4",
		ErrorAction:    types.ErrorActionLock,
	}

	if err := config.SaveSettings(path, want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := config.LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got != want {
		t.Errorf("round trip: got %+v, want %+v", got, want)
	}
}

func TestSaveSettings_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	bad := config.DefaultSettings()
	bad.TimeoutSeconds = 1

	if err := config.SaveSettings(path, bad); !errors.Is(err, types.ErrTimeoutOutOfRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid settings must not reach disk")
	}
}

func TestLoadSettings_InvalidFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	content := "timeout_seconds = 2\noutput_channel = \"FIO6\"\nmotion_channel = \"FIO5\"\nerror_action = \"unlock\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := config.LoadSettings(path); !errors.Is(err, types.ErrTimeoutOutOfRange) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadSettings_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("timeout_seconds = 45\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := config.LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.TimeoutSeconds != 45 {
		t.Errorf("expected explicit timeout, got %d", s.TimeoutSeconds)
	}
	def := config.DefaultSettings()
	if s.OutputChannel != def.OutputChannel || s.ErrorAction != def.ErrorAction {
		t.Errorf("unspecified fields must keep their defaults: %+v", s)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"SHEARLOCK_HTTP_ADDR", "SHEARLOCK_ENV", "SHEARLOCK_DB_PATH",
		"SHEARLOCK_SETTINGS_PATH", "SHEARLOCK_HARDWARE",
		"SHEARLOCK_READER_POLL_MS", "SHEARLOCK_INPUT_POLL_MS", "SHEARLOCK_RECONNECT_MS",
	} {
		t.Setenv(k, "")
	}

	cfg := config.FromEnv()
	if cfg.HTTPAddr != ":8080" || cfg.Env != "dev" || cfg.Hardware != "sim" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.InputPollInterval.Milliseconds() != 100 {
		t.Errorf("expected 100ms input poll, got %s", cfg.InputPollInterval)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SHEARLOCK_ENV", "PROD")
	t.Setenv("SHEARLOCK_HARDWARE", "none")
	t.Setenv("SHEARLOCK_INPUT_POLL_MS", "250")

	cfg := config.FromEnv()
	if cfg.Env != "prod" {
		t.Errorf("env = %q", cfg.Env)
	}
	if cfg.Hardware != "none" {
		t.Errorf("hardware = %q", cfg.Hardware)
	}
	if cfg.InputPollInterval.Milliseconds() != 250 {
		t.Errorf("input poll = %s", cfg.InputPollInterval)
	}
}

func TestFromEnv_BadValuesFailSoft(t *testing.T) {
	t.Setenv("SHEARLOCK_ENV", "staging")
	t.Setenv("SHEARLOCK_HARDWARE", "labjack")
	t.Setenv("SHEARLOCK_READER_POLL_MS", "-5")

	cfg := config.FromEnv()
	if cfg.Env != "dev" || cfg.Hardware != "sim" {
		t.Errorf("unknown values must fall back: %+v", cfg)
	}
	if cfg.ReaderPollInterval.Milliseconds() != 20 {
		t.Errorf("reader poll = %s", cfg.ReaderPollInterval)
	}
}
