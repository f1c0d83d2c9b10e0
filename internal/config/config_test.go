package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("expected default embedding model, got %q", cfg.EmbeddingModel)
	}
	if cfg.TopK != 5 {
		t.Errorf("expected default top_k 5, got %d", cfg.TopK)
	}
	if cfg.RateLimit.WindowRequests != 20 || cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("unexpected default rate limit: %+v", cfg.RateLimit)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.semlink.yml")

	original := DefaultConfig()
	original.Provider = ProviderOllama
	original.EmbeddingModel = "nomic-embed-text"
	original.VaultDir = "/tmp/vault"
	original.Include = []string{"**/*.md", "**/*.txt"}
	original.TopK = 8
	original.RateLimit.WindowRequests = 3

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.EmbeddingModel != original.EmbeddingModel {
		t.Errorf("embedding_model: got %q, want %q", loaded.EmbeddingModel, original.EmbeddingModel)
	}
	if loaded.VaultDir != original.VaultDir {
		t.Errorf("vault_dir: got %q, want %q", loaded.VaultDir, original.VaultDir)
	}
	if loaded.TopK != original.TopK {
		t.Errorf("top_k: got %d, want %d", loaded.TopK, original.TopK)
	}
	if loaded.RateLimit.WindowRequests != 3 {
		t.Errorf("rate_limit.window_requests: got %d, want 3", loaded.RateLimit.WindowRequests)
	}
	if len(loaded.Include) != len(original.Include) {
		t.Errorf("include length: got %d, want %d", len(loaded.Include), len(original.Include))
	}
	for i, v := range loaded.Include {
		if v != original.Include[i] {
			t.Errorf("include[%d]: got %q, want %q", i, v, original.Include[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	os.Setenv("SEMLINK_PROVIDER", "ollama")
	defer os.Unsetenv("SEMLINK_PROVIDER")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOllama {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOllama)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalidProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "invalid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}
}

func TestValidateEmptyProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty provider")
	}
}

func TestValidateEmptyModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbeddingModel = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty embedding_model")
	}
}

func TestValidateEmptyVaultDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VaultDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty vault_dir")
	}
}

func TestValidateNegativeTopK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative top_k")
	}
}

func TestValidateBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 100000
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for out-of-range port")
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestDefaultModelFor(t *testing.T) {
	if got := DefaultModelFor(ProviderOllama); got != "nomic-embed-text" {
		t.Errorf("DefaultModelFor(ollama) = %q", got)
	}
	if got := DefaultModelFor("unknown"); got != "text-embedding-3-small" {
		t.Errorf("DefaultModelFor(unknown) = %q, want openai fallback", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"**/*.md", []string{"**/*.md"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
