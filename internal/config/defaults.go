package config

// DefaultInclude matches the markdown notes a vault is made of.
var DefaultInclude = []string{"**/*.md"}

// DefaultExcludes are glob patterns excluded from indexing by default.
var DefaultExcludes = []string{
	".git/**",
	".obsidian/**",
	".trash/**",
	".semlink/**",
	"node_modules/**",
}

// embeddingModels maps each provider to its default embedding model.
var embeddingModels = map[ProviderType]string{
	ProviderOpenAI: "text-embedding-3-small",
	ProviderOllama: "nomic-embed-text",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		VaultDir:       ".",
		Provider:       ProviderOpenAI,
		EmbeddingModel: embeddingModels[ProviderOpenAI],
		Include:        DefaultInclude,
		Exclude:        DefaultExcludes,
		BatchSize:      10,
		TopK:           5,
		IndexFile:      ".semlink/index.json",
		HistoryFile:    ".semlink/history.db",
		RelatedHeading: "Related",
		RateLimit: RateConfig{
			WindowRequests: 20,
			WindowSeconds:  60,
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelayMs: 500,
			MaxDelayMs:  30000,
		},
		Server: ServerConfig{
			Port:     7331,
			AllowAll: false,
		},
	}
}

// DefaultModelFor returns the default embedding model for a provider.
// Unknown providers fall back to the OpenAI default.
func DefaultModelFor(provider ProviderType) string {
	if m, ok := embeddingModels[provider]; ok {
		return m
	}
	return embeddingModels[ProviderOpenAI]
}
