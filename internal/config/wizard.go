package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// vaultMarkers are files whose presence suggests the current directory
// is a note vault of a known flavor.
var vaultMarkers = map[string]string{
	".obsidian": "Obsidian",
	".logseq":   "Logseq",
	".zk":       "zk",
}

// detectVaultFlavor checks the given directory for well-known vault markers.
func detectVaultFlavor(dir string) string {
	for marker, name := range vaultMarkers {
		if _, err := os.Stat(dir + "/" + marker); err == nil {
			return name
		}
	}
	return ""
}

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .semlink.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to semlink! Let's configure your vault.")
	fmt.Println()

	// 1. Vault directory.
	vaultPrompt := promptui.Prompt{
		Label:   "Vault directory",
		Default: ".",
	}
	vaultDir, err := vaultPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("vault dir: %w", err)
	}
	if flavor := detectVaultFlavor(vaultDir); flavor != "" {
		fmt.Printf("Detected %s vault.\n\n", flavor)
	}

	// 2. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 3. Embedding model.
	modelPrompt := promptui.Prompt{
		Label:   "Embedding model",
		Default: DefaultModelFor(provider),
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}

	// 4. Include patterns.
	includePrompt := promptui.Prompt{
		Label:   "Include patterns (comma-separated globs)",
		Default: strings.Join(DefaultInclude, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	include := splitAndTrim(includeStr)

	// 5. Extra exclude patterns.
	excludePrompt := promptui.Prompt{
		Label:   "Extra exclude patterns (comma-separated, leave blank for defaults)",
		Default: "",
	}
	excludeStr, err := excludePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	exclude := DefaultExcludes
	if excludeStr != "" {
		exclude = append(exclude, splitAndTrim(excludeStr)...)
	}

	// 6. Requests per minute.
	ratePrompt := promptui.Prompt{
		Label:   "Embedding requests per minute",
		Default: "20",
		Validate: func(s string) error {
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
				return fmt.Errorf("enter a positive number")
			}
			return nil
		},
	}
	rateStr, err := ratePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	var rate int
	fmt.Sscanf(rateStr, "%d", &rate)

	cfg := DefaultConfig()
	cfg.VaultDir = vaultDir
	cfg.Provider = provider
	cfg.EmbeddingModel = model
	cfg.Include = include
	cfg.Exclude = exclude
	cfg.RateLimit.WindowRequests = rate

	// Check for API key.
	if envVar := APIKeyEnvVar(provider); envVar != "" {
		if os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running semlink rebuild.\n", envVar)
		}
	}

	configPath := ".semlink.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
