package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const appDir = "fueltracker"

// FileConfig TOML конфиг CLI
type FileConfig struct {
	Store StoreConfig `toml:"store"`
	Owner OwnerConfig `toml:"owner"`
	Goals GoalsConfig `toml:"goals"`
	Audit AuditConfig `toml:"audit"`
}

// StoreConfig путь к файлу SQLite
type StoreConfig struct {
	Path string `toml:"path"`
}

// OwnerConfig от чьего имени пишутся записи
type OwnerConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// GoalsConfig цели для insights
type GoalsConfig struct {
	Efficiency    *float64 `toml:"efficiency"`
	MonthlyBudget *float64 `toml:"monthly-budget"`
}

// AuditConfig журнал изменений в файл
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoadConfig читает TOML. Отсутствующий файл не ошибка.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, errors.New("config path is empty")
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// withDefaults подставляет пути XDG и владельца по умолчанию
func (c FileConfig) withDefaults() FileConfig {
	if c.Store.Path == "" {
		c.Store.Path = DefaultDBPath()
	}
	if c.Owner.ID == "" {
		c.Owner.ID = "local"
	}
	if c.Audit.Enabled && c.Audit.Path == "" {
		c.Audit.Path = filepath.Join(XDGDataHome(), appDir, "audit.log")
	}
	return c
}

// XDGConfigHome $XDG_CONFIG_HOME или ~/.config
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome $XDG_DATA_HOME или ~/.local/share
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath путь к config.toml
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appDir, "config.toml")
}

// DefaultDBPath путь к базе по умолчанию
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appDir, "fueltracker.db")
}

const configTemplate = `# fuelctl configuration

[store]
# path = "~/.local/share/fueltracker/fueltracker.db"

[owner]
id = "local"
name = ""

[goals]
# efficiency = 15.0       # km/L
# monthly-budget = 10000  # yen

[audit]
enabled = false
# path = "~/.local/share/fueltracker/audit.log"
`
