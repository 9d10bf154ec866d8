package config

import (
	"time"
)

type Config struct {
	Environment   string              `yaml:"environment"`
	Debug         bool                `yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Web           WebConfig           `yaml:"web"`
	Image         ImageConfig         `yaml:"image"`
	Vision        VisionConfig        `yaml:"vision"`
	Confidence    ConfidenceConfig    `yaml:"confidence"`
	DrugInfo      DrugInfoConfig      `yaml:"drug_info"`
	Recovery      RecoveryConfig      `yaml:"recovery"`
	AWS           AWSConfig           `yaml:"aws"`
	Storage       StorageConfig       `yaml:"storage"`
	History       HistoryConfig       `yaml:"history"`
	Retry         RetryConfig         `yaml:"retry"`
	Timeouts      TimeoutConfig       `yaml:"timeouts"`
	Agent         AgentConfig         `yaml:"agent"`
	MCP           MCPConfig           `yaml:"mcp"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	IP   string     `yaml:"ip"`
	Port int        `yaml:"port" validate:"min=1,max=65535"`
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls bearer token checks on the /api routes.
type AuthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Secret  string        `yaml:"secret" validate:"required_if=Enabled true"`
	TTL     time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN WARNING ERROR debug info warn warning error"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool     `yaml:"enabled"`
	StaticDir string   `yaml:"static_dir"`
	Origins   []string `yaml:"origins"`
}

type ImageConfig struct {
	MaxSize          int      `yaml:"max_size" validate:"gtfield=MinSize"`
	MinSize          int      `yaml:"min_size" validate:"min=1"`
	SupportedFormats []string `yaml:"supported_formats" validate:"min=1,dive,oneof=jpeg jpg png webp gif bmp tiff"`
	MinDimension     int      `yaml:"min_dimension" validate:"min=1"`
	MaxAspectRatio   float64  `yaml:"max_aspect_ratio" validate:"gt=1"`
	Optimize         bool     `yaml:"optimize"`
}

// VisionConfig selects the vision provider. Provider is one of bedrock,
// openai, anthropic or ollama.
type VisionConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=bedrock openai anthropic ollama"`
	ModelID     string        `yaml:"model_id" validate:"required"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens" validate:"min=1"`
	Temperature float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	TopP        float64       `yaml:"top_p" validate:"gte=0,lte=1"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	Prompt      string        `yaml:"prompt"`
}

type ConfidenceConfig struct {
	High float64 `yaml:"high" validate:"gte=0,lte=1,gtfield=Low"`
	Low  float64 `yaml:"low" validate:"gte=0,lte=1"`
}

type DrugInfoConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Cache   CacheConfig   `yaml:"cache"`
}

// CacheConfig configures the drug label cache. Driver is memory, redis,
// sqlite or none.
type CacheConfig struct {
	Driver string        `yaml:"driver" validate:"oneof=memory redis sqlite none"`
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type RecoveryConfig struct {
	Bucket string `yaml:"bucket"`
	Key    string `yaml:"key"`
}

type AWSConfig struct {
	Region   string `yaml:"region" validate:"required"`
	Endpoint string `yaml:"endpoint"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite none"`
	DSN    string `yaml:"dsn"`
}

// HistoryConfig bounds how long analysis audit records are kept.
type HistoryConfig struct {
	Retention     time.Duration `yaml:"retention"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

type RetryConfig struct {
	Default RetryPolicy `yaml:"default"`
	Vision  RetryPolicy `yaml:"vision"`
	Drug    RetryPolicy `yaml:"drug"`
}

type RetryPolicy struct {
	MaxAttempts     int           `yaml:"max_attempts" validate:"min=1"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	ExponentialBase float64       `yaml:"exponential_base" validate:"gte=1"`
	Jitter          bool          `yaml:"jitter"`
}

type TimeoutConfig struct {
	ImageValidation    time.Duration `yaml:"image_validation"`
	ImagePreprocessing time.Duration `yaml:"image_preprocessing"`
	VisionAnalysis     time.Duration `yaml:"vision_analysis"`
	DrugInfoLookup     time.Duration `yaml:"drug_info_lookup"`
	ResponseSynthesis  time.Duration `yaml:"response_synthesis"`
}

// AgentConfig holds the defaults echoed in the agent response envelope.
type AgentConfig struct {
	ActionGroup string `yaml:"action_group"`
	APIPath     string `yaml:"api_path"`
	HTTPMethod  string `yaml:"http_method"`
}

type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WebSocketConfig controls the streaming analysis channel.
type WebSocketConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Path             string        `yaml:"path"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	MaxInFlight      int           `yaml:"max_in_flight" validate:"omitempty,min=1"`
}

type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled"`
}
