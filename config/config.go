package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Supported database drivers
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server struct {
		Port         int      `yaml:"port" validate:"min=1,max=65535"`
		Mode         string   `yaml:"mode" validate:"oneof=debug release test"`
		AllowOrigins []string `yaml:"allowOrigins"`
	} `yaml:"server"`

	Log struct {
		Mode     string `yaml:"mode"`
		HashSalt string `yaml:"hashSalt"`
	} `yaml:"log"`

	Database struct {
		Driver string `yaml:"driver" validate:"oneof=mongo postgres memory"`
		URI    string `yaml:"uri" validate:"required_if=Driver mongo"`
		DSN    string `yaml:"dsn" validate:"required_if=Driver postgres"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"min=0"`
	} `yaml:"redis"`

	Scoring struct {
		StrongMatchThreshold float64 `yaml:"strongMatchThreshold" validate:"gt=0,lte=100"`
		MinAnswersForMatch   int     `yaml:"minAnswersForMatch" validate:"min=0"`
	} `yaml:"scoring"`

	RateLimit struct {
		MaxAnswers int           `yaml:"maxAnswers" validate:"min=0"`
		Window     time.Duration `yaml:"window"`
	} `yaml:"rateLimit"`

	// CatalogPath points at a YAML file of topics, candidates and opinions
	// loaded into an empty database at startup.
	CatalogPath string `yaml:"catalogPath"`

	LLM struct {
		Provider          string        `yaml:"provider" validate:"omitempty,oneof=anthropic gemini openai"`
		Model             string        `yaml:"model"`
		RetryWait         time.Duration `yaml:"retryWait"`
		RequestsPerMinute int           `yaml:"requestsPerMinute" validate:"min=0"`
		Anthropic         struct {
			ApiKey string `yaml:"apiKey"`
		} `yaml:"anthropic"`
		Gemini struct {
			ApiKey string `yaml:"apiKey"`
		} `yaml:"gemini"`
		Openai struct {
			ApiKey string `yaml:"apiKey"`
		} `yaml:"openai"`
	} `yaml:"llm"`
}

// LoadConfig reads the configuration file, fills in defaults, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"http://localhost:5173"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMongo
	}
	if c.Scoring.StrongMatchThreshold == 0 {
		c.Scoring.StrongMatchThreshold = 60.0
	}
	if c.Scoring.MinAnswersForMatch == 0 {
		c.Scoring.MinAnswersForMatch = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
	if c.LLM.RetryWait == 0 {
		c.LLM.RetryWait = 15 * time.Second
	}
}

// applyEnv lets deployments keep connection strings and API keys out of the
// config file.
func (c *Config) applyEnv(getenv func(string) string) {
	overrides := map[string]*string{
		"VOTEMATCH_DATABASE_URI":   &c.Database.URI,
		"VOTEMATCH_DATABASE_DSN":   &c.Database.DSN,
		"VOTEMATCH_REDIS_ADDR":     &c.Redis.Addr,
		"VOTEMATCH_REDIS_PASSWORD": &c.Redis.Password,
		"VOTEMATCH_ANTHROPIC_KEY":  &c.LLM.Anthropic.ApiKey,
		"VOTEMATCH_GEMINI_KEY":     &c.LLM.Gemini.ApiKey,
		"VOTEMATCH_OPENAI_KEY":     &c.LLM.Openai.ApiKey,
		"VOTEMATCH_LOG_HASH_SALT":  &c.Log.HashSalt,
	}
	for name, field := range overrides {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*field = v
		}
	}
}

// APIKey returns the key for the configured LLM provider
func (c *Config) APIKey() string {
	switch c.LLM.Provider {
	case "gemini":
		return c.LLM.Gemini.ApiKey
	case "openai":
		return c.LLM.Openai.ApiKey
	default:
		return c.LLM.Anthropic.ApiKey
	}
}
