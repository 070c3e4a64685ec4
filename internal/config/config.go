package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port                   string `json:"port" yaml:"port"`
		StaticDir              string `json:"static_dir" yaml:"static_dir"`
		Debug                  bool   `json:"debug" yaml:"debug"`
		ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	} `json:"server" yaml:"server"`

	Log struct {
		Mode string `json:"mode" yaml:"mode"` // "dev" or "prod"
	} `json:"log" yaml:"log"`

	Database struct {
		Path string `json:"path" yaml:"path"`
	} `json:"database" yaml:"database"`

	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Resolver ResolverConfig `json:"resolver" yaml:"resolver"`
	Sources  SourcesConfig  `json:"sources" yaml:"sources"`

	ML MLConfig `json:"ml" yaml:"ml"`
}

// MLConfig selects the image reader used by the scan message
type MLConfig struct {
	Type string `json:"type" yaml:"type"` // "local" or "google"

	Google struct {
		ProjectID       string `json:"project_id" yaml:"project_id"`
		Location        string `json:"location" yaml:"location"`
		CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
		Model           string `json:"model" yaml:"model"`
	} `json:"google" yaml:"google"`

	Local struct {
		ModelPath string `json:"model_path" yaml:"model_path"`
	} `json:"local" yaml:"local"`
}

// CacheConfig selects and sizes the resolver cache backend
type CacheConfig struct {
	Backend    string      `json:"backend" yaml:"backend"` // "memory", "sqlite" or "redis"
	TTLDays    int         `json:"ttl_days" yaml:"ttl_days"`
	MaxEntries int         `json:"max_entries" yaml:"max_entries"`
	Redis      RedisConfig `json:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// ResolverConfig tunes the fallback loop
type ResolverConfig struct {
	SourceTimeoutSeconds int                `json:"source_timeout_seconds" yaml:"source_timeout_seconds"`
	QualityThreshold     float64            `json:"quality_threshold" yaml:"quality_threshold"`
	DisableSingleFlight  bool               `json:"disable_single_flight" yaml:"disable_single_flight"`
	SourceWeights        map[string]float64 `json:"source_weights" yaml:"source_weights"`
}

// SourcesConfig holds endpoints and credentials for every nutrition provider
type SourcesConfig struct {
	UserAgent  string `json:"user_agent" yaml:"user_agent"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`

	OpenFoodFacts struct {
		BaseURL string `json:"base_url" yaml:"base_url"`
	} `json:"open_food_facts" yaml:"open_food_facts"`

	USDA          APIKeyConfig `json:"usda" yaml:"usda"`
	GoUPC         APIKeyConfig `json:"go_upc" yaml:"go_upc"`
	BarcodeLookup APIKeyConfig `json:"barcode_lookup" yaml:"barcode_lookup"`

	Edamam struct {
		BaseURL string `json:"base_url" yaml:"base_url"`
		AppID   string `json:"app_id" yaml:"app_id"`
		AppKey  string `json:"app_key" yaml:"app_key"`
	} `json:"edamam" yaml:"edamam"`

	FatSecret struct {
		BaseURL      string `json:"base_url" yaml:"base_url"`
		TokenURL     string `json:"token_url" yaml:"token_url"`
		ClientID     string `json:"client_id" yaml:"client_id"`
		ClientSecret string `json:"client_secret" yaml:"client_secret"`
	} `json:"fatsecret" yaml:"fatsecret"`

	Mock struct {
		Disabled bool `json:"disabled" yaml:"disabled"`
	} `json:"mock" yaml:"mock"`
}

type APIKeyConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

// LoadConfig loads configuration from a JSON or YAML file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Server.Port == "" {
		// Fail if port is not set
		return nil, fmt.Errorf("server port is not set in config file")
	}
	config.applyEnv()
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a configuration with every default applied and credentials
// taken from the environment. Used by tools that run without a config file.
func Default() *Config {
	var config Config
	config.applyEnv()
	config.applyDefaults()
	return &config
}

// applyEnv fills credentials that were left out of the file
func (c *Config) applyEnv() {
	setFromEnv(&c.Sources.USDA.APIKey, "USDA_API_KEY")
	setFromEnv(&c.Sources.Edamam.AppID, "EDAMAM_APP_ID")
	setFromEnv(&c.Sources.Edamam.AppKey, "EDAMAM_APP_KEY")
	setFromEnv(&c.Sources.FatSecret.ClientID, "FATSECRET_CLIENT_ID")
	setFromEnv(&c.Sources.FatSecret.ClientSecret, "FATSECRET_CLIENT_SECRET")
	setFromEnv(&c.Sources.GoUPC.APIKey, "GOUPC_API_KEY")
	setFromEnv(&c.Sources.BarcodeLookup.APIKey, "BARCODELOOKUP_API_KEY")
	setFromEnv(&c.Cache.Redis.Addr, "REDIS_ADDR")
	setFromEnv(&c.Cache.Redis.Password, "REDIS_PASSWORD")
}

func (c *Config) applyDefaults() {
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./static"
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "dev"
	}
	if c.Database.Path == "" {
		c.Database.Path = "sweetguard.db"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTLDays <= 0 {
		c.Cache.TTLDays = 30
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 10000
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "sweetguard:food:"
	}
	if c.Resolver.SourceTimeoutSeconds <= 0 {
		c.Resolver.SourceTimeoutSeconds = 5
	}
	if c.Resolver.QualityThreshold <= 0 {
		c.Resolver.QualityThreshold = 0.8
	}
	if c.Sources.UserAgent == "" {
		c.Sources.UserAgent = "SweetGuard/1.0 (food-data resolver)"
	}
	if c.Sources.MaxRetries < 0 {
		c.Sources.MaxRetries = 0
	}
	if c.ML.Type == "" {
		c.ML.Type = "local"
	}
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "sqlite":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache backend redis requires cache.redis.addr or REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}
	if c.Resolver.QualityThreshold > 1 {
		return fmt.Errorf("resolver quality_threshold must be within (0, 1], got %v", c.Resolver.QualityThreshold)
	}
	return nil
}

// CacheTTL returns the validity window of cached results
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}

// SourceTimeout returns the per-source request budget
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Resolver.SourceTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("SWEETGUARD_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}

func setFromEnv(dst *string, name string) {
	if *dst != "" {
		return
	}
	*dst = strings.TrimSpace(os.Getenv(name))
}
