package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the conventional config file location, used when the
// LEANROOM_CONFIG environment variable is not set.
const DefaultPath = "leanroom.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the leanroom backend.
type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Engine    Engine    `yaml:"engine"`
	Backtests Backtests `yaml:"backtests"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Storage selects and configures the candle store backend.
type Storage struct {
	Backend    string `yaml:"backend"` // "parquet" or "sqlite"
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Engine holds the LEAN process invocation settings.
type Engine struct {
	Command      string `yaml:"command"`
	LauncherPath string `yaml:"launcher_path"`
	DataDir      string `yaml:"data_dir"`
	AlgorithmDir string `yaml:"algorithm_dir"`
}

// Backtests controls per-job workspaces.
type Backtests struct {
	WorkDir string `yaml:"work_dir"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
// Only the exporter needs these.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration. Load starts from this and
// layers the file and environment on top, so a missing section keeps
// working values.
func Default() *Config {
	return &Config{
		Server: Server{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Storage: Storage{
			Backend:    "parquet",
			DataDir:    "data",
			SQLitePath: "data/leanroom.db",
		},
		Engine: Engine{
			Command:      "dotnet",
			LauncherPath: "lean/QuantConnect.Lean.Launcher.dll",
			DataDir:      "lean/Data",
			AlgorithmDir: "algorithms",
		},
		Backtests: Backtests{
			WorkDir: "backtests",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path, then
// environment variable overrides. An empty path falls back to DefaultPath
// when that file exists and to pure defaults otherwise; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LEANROOM_WORK_DIR"); v != "" {
		cfg.Backtests.WorkDir = v
	}
	if v := os.Getenv("LEAN_LAUNCHER"); v != "" {
		cfg.Engine.LauncherPath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// The SDK's canonical APCA_* names win over the plain ones.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// Validate rejects configurations the process cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	switch c.Storage.Backend {
	case "parquet", "sqlite":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "parquet" && c.Storage.DataDir == "" {
		return fmt.Errorf("config: storage data_dir is required for the parquet backend")
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLitePath == "" {
		return fmt.Errorf("config: storage sqlite_path is required for the sqlite backend")
	}
	if c.Engine.Command == "" {
		return fmt.Errorf("config: engine command is required")
	}
	if c.Engine.LauncherPath == "" {
		return fmt.Errorf("config: engine launcher_path is required")
	}
	if c.Backtests.WorkDir == "" {
		return fmt.Errorf("config: backtests work_dir is required")
	}
	return nil
}
