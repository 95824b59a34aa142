package llm

import "fmt"

// ProviderConfig selects and configures a completion provider.
type ProviderConfig struct {
	Provider string // ollama, openai
	APIKey   string // for cloud providers
	Model    string
	BaseURL  string
}

// NewTextGenerator creates the appropriate TextGenerator for the provider.
func NewTextGenerator(cfg ProviderConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
