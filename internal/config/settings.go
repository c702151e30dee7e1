package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/shopfloor/shearlock/internal/shear/types"
)

// DefaultSettings is the factory configuration applied when no settings
// file exists yet.
func DefaultSettings() types.Settings {
	return types.Settings{
		TimeoutSeconds: 300,
		OutputChannel:  "FIO6",
		MotionChannel:  "FIO5",
		ErrorAction:    types.ErrorActionUnlock,
	}
}

// LoadSettings reads persisted runtime settings from path.  A missing
// file yields the defaults; a present but invalid file is an error so a
// corrupted config never silently reverts the shear's timeout.
func LoadSettings(path string) (types.Settings, error) {
	s := DefaultSettings()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return types.Settings{}, fmt.Errorf("load settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return types.Settings{}, fmt.Errorf("load settings %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes settings to path atomically (temp file + rename)
// so a crash mid-write cannot leave a truncated config behind.
func SaveSettings(path string, s types.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save settings %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("save settings %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("save settings %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save settings %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save settings %s: %w", path, err)
	}
	return nil
}
