// Package config loads the sotovision configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all tunables for the analytics core. The core treats it as
// read-only after Load.
type Config struct {
	Server struct {
		Addr      string `yaml:"addr" env:"SOTOVISION_ADDR"`
		StaticDir string `yaml:"static_dir" env:"SOTOVISION_STATIC_DIR"`
	} `yaml:"server"`

	Store struct {
		Path string `yaml:"path" env:"SOTOVISION_DB"`
	} `yaml:"store"`

	Auth struct {
		Secret      string        `yaml:"secret" env:"SOTOVISION_JWT_SECRET"`
		TokenExpiry time.Duration `yaml:"token_expiry" env:"SOTOVISION_TOKEN_EXPIRY"`
	} `yaml:"auth"`

	Detection struct {
		// GenericModel is the ONNX path of the COCO detector (person +
		// dining objects). Required for live capture, unused by tests.
		GenericModel string `yaml:"generic_model" env:"SOTOVISION_GENERIC_MODEL"`
		// StockModel is the optional specialized fried-food classifier.
		// When the file is missing the adapter substitutes the container
		// fallback detector.
		StockModel        string  `yaml:"stock_model" env:"SOTOVISION_STOCK_MODEL"`
		GenericConfidence float32 `yaml:"generic_confidence" env:"SOTOVISION_GENERIC_CONF"`
		StockConfidence   float32 `yaml:"stock_confidence" env:"SOTOVISION_STOCK_CONF"`
		// StockClasses maps class ids of the stock model to item names.
		StockClasses map[int]string `yaml:"stock_classes"`
	} `yaml:"detection"`

	Identity struct {
		// EncoderURL is the face embedding sidecar. Empty disables
		// identity matching.
		EncoderURL     string  `yaml:"encoder_url" env:"SOTOVISION_ENCODER_URL"`
		StaffDir       string  `yaml:"staff_dir" env:"SOTOVISION_STAFF_DIR"`
		StaffThreshold float32 `yaml:"staff_threshold" env:"SOTOVISION_STAFF_THRESHOLD"`
		MatchThreshold float32 `yaml:"match_threshold" env:"SOTOVISION_MATCH_THRESHOLD"`
	} `yaml:"identity"`

	Pipeline struct {
		TickPeriod     time.Duration `yaml:"tick_period" env:"SOTOVISION_TICK_PERIOD"`
		MinStock       int           `yaml:"min_stock" env:"SOTOVISION_MIN_STOCK"`
		QueueLimit     int           `yaml:"queue_limit" env:"SOTOVISION_QUEUE_LIMIT"`
		DirtyTicks     int           `yaml:"dirty_ticks" env:"SOTOVISION_DIRTY_TICKS"`
		OpenRetries    int           `yaml:"open_retries" env:"SOTOVISION_OPEN_RETRIES"`
		MaxTickErrors  int           `yaml:"max_tick_errors" env:"SOTOVISION_MAX_TICK_ERRORS"`
		SnapshotBuffer int           `yaml:"snapshot_buffer" env:"SOTOVISION_SNAPSHOT_BUFFER"`
	} `yaml:"pipeline"`
}

// Default returns the configuration used when no file is given. The values
// mirror the thresholds the detection models were tuned with.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Store.Path = "sotovision.db"
	cfg.Auth.TokenExpiry = 24 * time.Hour
	cfg.Detection.GenericConfidence = 0.35
	cfg.Detection.StockConfidence = 0.4
	cfg.Detection.StockClasses = map[int]string{
		0: "bakwan", 1: "tahu_goreng", 2: "tempe_goreng", 3: "pisang_goreng",
		4: "lumpia", 5: "risol", 6: "pastel", 7: "cireng", 8: "gehu",
		9: "combro", 10: "molen", 11: "tahu_isi", 12: "tempe_mendoan",
		13: "bakwan_sayur", 14: "perkedel",
	}
	cfg.Identity.StaffDir = "known_faces"
	cfg.Identity.StaffThreshold = 0.45
	cfg.Identity.MatchThreshold = 0.6
	cfg.Pipeline.TickPeriod = 5 * time.Second
	cfg.Pipeline.MinStock = 3
	cfg.Pipeline.QueueLimit = 4
	cfg.Pipeline.DirtyTicks = 3
	cfg.Pipeline.OpenRetries = 3
	cfg.Pipeline.MaxTickErrors = 10
	cfg.Pipeline.SnapshotBuffer = 5
	return cfg
}

// Load reads the YAML file at path (if non-empty), then applies environment
// overrides. Missing file with an empty path is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}
