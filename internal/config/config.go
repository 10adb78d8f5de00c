package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`

	// CORSOrigins are the browser origins allowed to call the server.
	CORSOrigins []string `yaml:"cors_origins"`
}

type APIConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

type DraftsConfig struct {
	// Mode is "memory" or "redis".
	Mode      string   `yaml:"mode"`
	RedisAddr string   `yaml:"redis_addr"`
	KeyPrefix string   `yaml:"key_prefix"`
	TTL       Duration `yaml:"ttl"`
}

// ConsoleConfig configures cmd/console.
type ConsoleConfig struct {
	Env     string       `yaml:"env"`
	Version string       `yaml:"version"`
	HTTP    HTTPConfig   `yaml:"http"`
	API     APIConfig    `yaml:"api"`
	Drafts  DraftsConfig `yaml:"drafts"`
}

type DBConfig struct {
	// DSN selects the driver: postgres:// and postgresql:// URLs (or key=value
	// strings with host=) use Postgres, anything else is a SQLite path.
	DSN string `yaml:"dsn"`
}

type StorageConfig struct {
	// Mode is "local", "gcs" or "gcs_emulator".
	Mode         string `yaml:"mode"`
	LocalDir     string `yaml:"local_dir"`
	Bucket       string `yaml:"bucket"`
	EmulatorHost string `yaml:"emulator_host"`
}

type TrainerConfig struct {
	Concurrency     int     `yaml:"concurrency"`
	TestFraction    float64 `yaml:"test_fraction"`
	MinTargetValues int     `yaml:"min_target_values"`
}

// TrainAPIConfig configures cmd/trainapi.
type TrainAPIConfig struct {
	Env      string        `yaml:"env"`
	Version  string        `yaml:"version"`
	HTTP     HTTPConfig    `yaml:"http"`
	BasePath string        `yaml:"base_path"`
	DB       DBConfig      `yaml:"db"`
	Storage  StorageConfig `yaml:"storage"`
	Trainer  TrainerConfig `yaml:"trainer"`
}
