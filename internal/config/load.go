package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/mlcompare/internal/platform/envutil"
)

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("duration must be a string like \"5s\" or an integer number of seconds: %q", s)
	}
	return time.Duration(n) * time.Second, nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	dd, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Duration = dd
	return nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = u
	}
	dd, err := parseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func defaultHTTP(addr string) HTTPConfig {
	return HTTPConfig{
		Addr:              addr,
		ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
		IdleTimeout:       Duration{Duration: 2 * time.Minute},
		ShutdownTimeout:   Duration{Duration: 15 * time.Second},
		MaxRequestBytes:   32 << 20,
		CORSOrigins: []string{
			"http://localhost:4200",
			"http://127.0.0.1:4200",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
	}
}

func defaultConsole() *ConsoleConfig {
	return &ConsoleConfig{
		Env:  "development",
		HTTP: defaultHTTP(":4200"),
		API: APIConfig{
			BaseURL: "http://localhost:8000/api",
		},
		Drafts: DraftsConfig{
			Mode:      "memory",
			KeyPrefix: "mlcompare:form:",
			TTL:       Duration{Duration: 24 * time.Hour},
		},
	}
}

func defaultTrainAPI() *TrainAPIConfig {
	return &TrainAPIConfig{
		Env:      "development",
		HTTP:     defaultHTTP(":8000"),
		BasePath: "/api",
		DB:       DBConfig{DSN: "mlcompare.db"},
		Storage:  StorageConfig{Mode: "local", LocalDir: "data/datasets"},
		Trainer: TrainerConfig{
			Concurrency:     4,
			TestFraction:    0.2,
			MinTargetValues: 50,
		},
	}
}

// readFile loads the YAML file named by MLCOMPARE_CONFIG_PATH, or
// ./config/<name>.yaml when present, over the defaults in out.
func readFile(name string, out any) error {
	cfgPath := strings.TrimSpace(os.Getenv("MLCOMPARE_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", name+".yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath == "" {
		return nil
	}
	b, err := os.ReadFile(cfgPath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse %s: %w", cfgPath, err)
	}
	return nil
}

func applyHTTPEnv(h *HTTPConfig) {
	h.Addr = envutil.String("MLCOMPARE_HTTP_ADDR", h.Addr)
	h.CORSOrigins = envutil.List("MLCOMPARE_CORS_ORIGINS", h.CORSOrigins)
	h.ShutdownTimeout.Duration = envutil.Duration("MLCOMPARE_SHUTDOWN_TIMEOUT", h.ShutdownTimeout.Duration)
}

func normalizeHTTP(h *HTTPConfig, defAddr string) {
	if strings.TrimSpace(h.Addr) == "" {
		h.Addr = defAddr
	}
	if h.MaxRequestBytes <= 0 {
		h.MaxRequestBytes = 32 << 20
	}
	if h.ReadHeaderTimeout.Duration <= 0 {
		h.ReadHeaderTimeout.Duration = 5 * time.Second
	}
	if h.ShutdownTimeout.Duration <= 0 {
		h.ShutdownTimeout.Duration = 15 * time.Second
	}
}

func LoadConsole() (*ConsoleConfig, error) {
	cfg := defaultConsole()
	if err := readFile("console", cfg); err != nil {
		return nil, err
	}

	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.Version = envutil.String("MLCOMPARE_VERSION", cfg.Version)
	applyHTTPEnv(&cfg.HTTP)
	cfg.API.BaseURL = envutil.String("MLCOMPARE_API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Timeout.Duration = envutil.Duration("MLCOMPARE_API_TIMEOUT", cfg.API.Timeout.Duration)
	cfg.Drafts.Mode = envutil.String("MLCOMPARE_DRAFTS_MODE", cfg.Drafts.Mode)
	cfg.Drafts.RedisAddr = envutil.String("REDIS_ADDR", cfg.Drafts.RedisAddr)
	cfg.Drafts.TTL.Duration = envutil.Duration("MLCOMPARE_DRAFTS_TTL", cfg.Drafts.TTL.Duration)

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	normalizeHTTP(&cfg.HTTP, ":4200")

	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.BaseURL == "" {
		return nil, errors.New("api.base_url is required")
	}
	if u, err := url.Parse(cfg.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api.base_url %q; expected absolute URL like http://localhost:8000/api", cfg.API.BaseURL)
	}
	// zero means calls are bounded only by the request context
	if cfg.API.Timeout.Duration < 0 {
		cfg.API.Timeout.Duration = 0
	}

	cfg.Drafts.Mode = strings.ToLower(strings.TrimSpace(cfg.Drafts.Mode))
	switch cfg.Drafts.Mode {
	case "":
		cfg.Drafts.Mode = "memory"
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Drafts.RedisAddr) == "" {
			return nil, errors.New("drafts.mode=redis requires REDIS_ADDR or drafts.redis_addr")
		}
	default:
		return nil, fmt.Errorf("invalid drafts.mode=%q", cfg.Drafts.Mode)
	}
	if cfg.Drafts.TTL.Duration <= 0 {
		cfg.Drafts.TTL.Duration = 24 * time.Hour
	}
	return cfg, nil
}

func LoadTrainAPI() (*TrainAPIConfig, error) {
	cfg := defaultTrainAPI()
	if err := readFile("trainapi", cfg); err != nil {
		return nil, err
	}

	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.Version = envutil.String("MLCOMPARE_VERSION", cfg.Version)
	applyHTTPEnv(&cfg.HTTP)
	cfg.BasePath = envutil.String("MLCOMPARE_BASE_PATH", cfg.BasePath)
	cfg.DB.DSN = envutil.String("MLCOMPARE_DB_DSN", cfg.DB.DSN)
	cfg.Storage.Mode = envutil.String("OBJECT_STORAGE_MODE", cfg.Storage.Mode)
	cfg.Storage.LocalDir = envutil.String("MLCOMPARE_STORAGE_DIR", cfg.Storage.LocalDir)
	cfg.Storage.Bucket = envutil.String("DATASET_GCS_BUCKET_NAME", cfg.Storage.Bucket)
	cfg.Storage.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Storage.EmulatorHost)
	cfg.Trainer.Concurrency = envutil.Int("MLCOMPARE_TRAIN_CONCURRENCY", cfg.Trainer.Concurrency)

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	normalizeHTTP(&cfg.HTTP, ":8000")

	cfg.BasePath = "/" + strings.Trim(strings.TrimSpace(cfg.BasePath), "/")
	if cfg.BasePath == "/" {
		cfg.BasePath = ""
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return nil, errors.New("db.dsn is required")
	}

	cfg.Storage.Mode = strings.ToLower(strings.TrimSpace(cfg.Storage.Mode))
	switch cfg.Storage.Mode {
	case "", "local":
		cfg.Storage.Mode = "local"
		if strings.TrimSpace(cfg.Storage.LocalDir) == "" {
			return nil, errors.New("storage.mode=local requires storage.local_dir")
		}
	case "gcs", "gcs_emulator":
		if strings.TrimSpace(cfg.Storage.Bucket) == "" {
			return nil, fmt.Errorf("storage.mode=%s requires DATASET_GCS_BUCKET_NAME or storage.bucket", cfg.Storage.Mode)
		}
	default:
		return nil, fmt.Errorf("invalid storage.mode=%q (allowed: local, gcs, gcs_emulator)", cfg.Storage.Mode)
	}

	if cfg.Trainer.Concurrency <= 0 {
		cfg.Trainer.Concurrency = 1
	}
	if cfg.Trainer.TestFraction <= 0 || cfg.Trainer.TestFraction >= 1 {
		return nil, fmt.Errorf("trainer.test_fraction must be in (0,1), got %v", cfg.Trainer.TestFraction)
	}
	if cfg.Trainer.MinTargetValues <= 0 {
		cfg.Trainer.MinTargetValues = 50
	}
	return cfg, nil
}
