package config

// ProviderType identifies an embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level semlink configuration, corresponding to
// .semlink.yml in the vault root.
type Config struct {
	VaultDir       string       `yaml:"vault_dir" koanf:"vault_dir"`
	Provider       ProviderType `yaml:"provider" koanf:"provider"`
	EmbeddingModel string       `yaml:"embedding_model" koanf:"embedding_model"`
	Include        []string     `yaml:"include" koanf:"include"`
	Exclude        []string     `yaml:"exclude" koanf:"exclude"`
	BatchSize      int          `yaml:"batch_size" koanf:"batch_size"`
	TopK           int          `yaml:"top_k" koanf:"top_k"`
	IndexFile      string       `yaml:"index_file" koanf:"index_file"`
	HistoryFile    string       `yaml:"history_file" koanf:"history_file"`
	RelatedHeading string       `yaml:"related_heading" koanf:"related_heading"`
	RateLimit      RateConfig   `yaml:"rate_limit" koanf:"rate_limit"`
	Retry          RetryConfig  `yaml:"retry" koanf:"retry"`
	Server         ServerConfig `yaml:"server" koanf:"server"`
}

// RateConfig bounds how many embedding requests may start per window.
type RateConfig struct {
	WindowRequests int `yaml:"window_requests" koanf:"window_requests"`
	WindowSeconds  int `yaml:"window_seconds" koanf:"window_seconds"`
}

// RetryConfig tunes the backoff applied to transient provider failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" koanf:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms" koanf:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms" koanf:"max_delay_ms"`
}

// ServerConfig holds settings for the local HTTP server.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}
