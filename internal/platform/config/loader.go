package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"medid-server-go/internal/platform/errors"
)

// DefaultFile is read from the working directory when present.
const DefaultFile = ".config.yaml"

// Loader builds a Config from defaults, an optional YAML file and the
// environment, in that order.
type Loader struct {
	useDotEnv bool
	path      string
	lookup    func(string) (string, bool)
	v         *validator.Validate
}

// NewLoader creates a loader reading .env, .config.yaml and os environment.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      DefaultFile,
		lookup:    os.LookupEnv,
		v:         validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the YAML file location. An empty path skips the file.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv replaces the environment lookup (useful for tests).
func (l *Loader) WithEnv(env map[string]string) *Loader {
	l.lookup = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return l
}

// Load returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path := l.path
	if p, ok := l.lookup("CONFIG_FILE"); ok && p != "" {
		path = p
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(errors.KindConfig, "config.parse", "failed to parse "+path, err)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrap(errors.KindConfig, "config.read", "failed to read "+path, err)
		}
	}

	env := cfg.Environment
	if v, ok := l.lookup("ENVIRONMENT"); ok && v != "" {
		env = v
	}
	applyProfile(cfg, strings.ToLower(env))

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Debug {
		cfg.Log.Level = "DEBUG"
	}

	if err := l.validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProfile adjusts defaults for the named environment.
func applyProfile(cfg *Config, env string) {
	switch env {
	case "development":
		cfg.Environment = "development"
		cfg.Debug = true
		cfg.Log.Level = "DEBUG"
	case "test":
		cfg.Environment = "test"
		cfg.Debug = true
		cfg.Log.Level = "DEBUG"
		cfg.Image.MaxSize = 1024 * 1024
		cfg.Vision.Timeout = 5 * time.Second
		cfg.Timeouts.VisionAnalysis = 5 * time.Second
	default:
		cfg.Environment = "production"
	}
}

func (l *Loader) applyEnv(cfg *Config) error {
	var firstErr error
	str := func(key string, dst *string) {
		if v, ok := l.lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := l.lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrap(errors.KindConfig, "config.env", key+" must be an integer", err)
				}
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := l.lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrap(errors.KindConfig, "config.env", key+" must be a number", err)
				}
				return
			}
			*dst = f
		}
	}
	seconds := func(key string, dst *time.Duration) {
		n := 0
		integer(key, &n)
		if n > 0 {
			*dst = time.Duration(n) * time.Second
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := l.lookup(key); ok && v != "" {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}

	integer("MAX_IMAGE_SIZE", &cfg.Image.MaxSize)
	integer("MIN_IMAGE_SIZE", &cfg.Image.MinSize)
	str("VISION_PROVIDER", &cfg.Vision.Provider)
	str("BEDROCK_MODEL_ID", &cfg.Vision.ModelID)
	str("VISION_BASE_URL", &cfg.Vision.BaseURL)
	str("VISION_API_KEY", &cfg.Vision.APIKey)
	integer("MAX_TOKENS", &cfg.Vision.MaxTokens)
	seconds("VISION_TIMEOUT", &cfg.Vision.Timeout)
	float("HIGH_CONFIDENCE_THRESHOLD", &cfg.Confidence.High)
	float("LOW_CONFIDENCE_THRESHOLD", &cfg.Confidence.Low)
	seconds("DRUG_INFO_TIMEOUT", &cfg.DrugInfo.Timeout)
	str("DRUG_INFO_BASE_URL", &cfg.DrugInfo.BaseURL)
	str("DRUG_CACHE_DRIVER", &cfg.DrugInfo.Cache.Driver)
	str("REDIS_ADDR", &cfg.DrugInfo.Cache.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.DrugInfo.Cache.Redis.Password)
	str("LOG_LEVEL", &cfg.Log.Level)
	boolean("DEBUG_MODE", &cfg.Debug)
	str("AWS_REGION", &cfg.AWS.Region)
	str("AWS_ENDPOINT_URL", &cfg.AWS.Endpoint)
	str("S3_BUCKET_NAME", &cfg.Recovery.Bucket)
	str("RECOVERY_PLAN_KEY", &cfg.Recovery.Key)
	integer("SERVER_PORT", &cfg.Server.Port)
	str("AUTH_SECRET", &cfg.Server.Auth.Secret)
	boolean("AUTH_ENABLED", &cfg.Server.Auth.Enabled)
	str("STORAGE_DSN", &cfg.Storage.DSN)
	boolean("WEBSOCKET_ENABLED", &cfg.WebSocket.Enabled)

	if cfg.Vision.Timeout > 0 {
		cfg.Timeouts.VisionAnalysis = cfg.Vision.Timeout
	}
	cfg.Log.Level = strings.ToUpper(cfg.Log.Level)
	return firstErr
}

func (l *Loader) validate(cfg *Config) error {
	if err := l.v.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return errors.Wrap(errors.KindConfig, "config.validate",
				fmt.Sprintf("invalid %s (%s=%s)", fe.Namespace(), fe.Tag(), fe.Param()), err)
		}
		return errors.Wrap(errors.KindConfig, "config.validate", "invalid configuration", err)
	}
	if cfg.Confidence.Low > cfg.Confidence.High {
		return errors.New(errors.KindConfig, "config.validate", "low confidence threshold exceeds high threshold")
	}
	return nil
}

// MaxSizeMB renders the image ceiling for user-facing messages.
func (c ImageConfig) MaxSizeMB() int {
	return c.MaxSize / (1024 * 1024)
}
