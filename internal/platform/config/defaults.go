package config

import "time"

const (
	DefaultModelID     = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultMaxSize     = 10 * 1024 * 1024
	DefaultFDABaseURL  = "https://api.fda.gov"
	DefaultRecoveryKey = "knee_arthroscopy_protocol.json"
)

// DefaultAnalysisPrompt is sent to the vision model when the request carries
// no prompt of its own.
const DefaultAnalysisPrompt = `Analyze this image of a medication and extract the following information:
1. Medication name (brand name if visible, generic name if available)
2. Dosage strength (e.g., 200mg, 500mg)
3. Confidence level in identification (high, medium, low)

If multiple medications are visible, focus on the most prominent one.
If the image is unclear or no medication is identifiable, indicate this clearly.

Return the information in a structured format with clear labels.`

// DefaultConfig returns the production profile.
func DefaultConfig() *Config {
	return &Config{
		Environment: "production",
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{TTL: 24 * time.Hour},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled: false,
			Origins: []string{"*"},
		},
		Image: ImageConfig{
			MaxSize:          DefaultMaxSize,
			MinSize:          100,
			SupportedFormats: []string{"jpeg", "jpg", "png", "webp"},
			MinDimension:     32,
			MaxAspectRatio:   10,
			Optimize:         true,
		},
		Vision: VisionConfig{
			Provider:    "bedrock",
			ModelID:     DefaultModelID,
			MaxTokens:   1000,
			Temperature: 0.1,
			TopP:        0.9,
			Timeout:     30 * time.Second,
			Prompt:      DefaultAnalysisPrompt,
		},
		Confidence: ConfidenceConfig{
			High: 0.8,
			Low:  0.3,
		},
		DrugInfo: DrugInfoConfig{
			BaseURL: DefaultFDABaseURL,
			Timeout: 10 * time.Second,
			Cache: CacheConfig{
				Driver: "memory",
				TTL:    6 * time.Hour,
				Redis:  RedisConfig{Prefix: "medid:druglabel:"},
			},
		},
		Recovery: RecoveryConfig{
			Key: DefaultRecoveryKey,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "data/medid.db",
		},
		History: HistoryConfig{
			Retention:     30 * 24 * time.Hour,
			PurgeInterval: time.Hour,
		},
		Retry: RetryConfig{
			Default: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second, ExponentialBase: 2, Jitter: true},
			Vision:  RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, ExponentialBase: 2, Jitter: true},
			Drug:    RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, ExponentialBase: 2, Jitter: true},
		},
		Timeouts: TimeoutConfig{
			ImageValidation:    5 * time.Second,
			ImagePreprocessing: 10 * time.Second,
			VisionAnalysis:     30 * time.Second,
			DrugInfoLookup:     15 * time.Second,
			ResponseSynthesis:  5 * time.Second,
		},
		Agent: AgentConfig{
			ActionGroup: "image_analysis_tool",
			APIPath:     "/analyze-medication",
			HTTPMethod:  "POST",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		WebSocket: WebSocketConfig{
			Enabled:          true,
			Path:             "/ws",
			HandshakeTimeout: 10 * time.Second,
			IdleTimeout:      2 * time.Minute,
			MaxInFlight:      2,
		},
	}
}
