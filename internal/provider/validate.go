package provider

import (
	"fmt"
	"strings"
)

// Validate reports the first missing or invalid setting for the selected
// backend, naming the env var that supplies it.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: openai requires OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: openai requires OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: azure requires AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: ollama requires OLLAMA_MODEL")
		}
	case BackendBedrock:
		if c.Bedrock.ModelID == "" {
			return fmt.Errorf("provider: bedrock requires BEDROCK_MODEL_ID")
		}
		if c.Bedrock.AWSRegion == "" {
			return fmt.Errorf("provider: bedrock requires AWS_REGION")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: gemini requires GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: gemini requires GEMINI_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: openai, azure, ollama, bedrock, gemini)", c.Backend)
	}
	if t := c.Tuning.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE %.2f out of range [0, 2]", t)
	}
	return nil
}

// credentialEnv returns the env var holding the selected backend's API key
// when that key is empty, or "" when no credential is missing.
func (c *Config) credentialEnv() string {
	switch c.Backend {
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return "OPENAI_API_KEY"
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return "AZURE_OPENAI_API_KEY"
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return "GOOGLE_API_KEY"
		}
	}
	return ""
}

// isAzureReasoningModel reports whether an Azure deployment is an o-series
// or codex reasoning model. Those reject the temperature and max_tokens
// parameters.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, p := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, p) {
			return true
		}
	}
	return false
}
