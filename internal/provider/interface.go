// Package provider selects and constructs the chat model that answers
// knowledge-base questions. Supported backends: OpenAI, Azure OpenAI, Ollama,
// Bedrock (via the ark runtime) and Google Gemini.
package provider

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Config holds the chat model configuration for every backend. Only the
// section matching Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// OpenAI holds OpenAI settings.
	OpenAI ProviderOpenAI

	// AzureOpenAI holds Azure OpenAI settings.
	AzureOpenAI ProviderAzureOpenAI

	// Ollama holds Ollama settings.
	Ollama ProviderOllama

	// Bedrock holds Bedrock settings.
	Bedrock ProviderBedrock

	// Gemini holds Gemini settings.
	Gemini ProviderGemini

	// Tuning holds sampling parameters shared by all backends.
	Tuning SharedTuning
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is read from OPENAI_API_KEY.
	APIKey string
	// Model is the chat model name (default gpt-4o-mini).
	Model string
	// BaseURL optionally points at an OpenAI-compatible endpoint.
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is read from AZURE_OPENAI_API_KEY.
	APIKey string
	// Endpoint is the Azure resource endpoint.
	Endpoint string
	// Deployment is the chat deployment name.
	Deployment string
	// APIVersion is the Azure OpenAI REST API version.
	APIVersion string
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama API endpoint.
	Host string
	// Model is the local model name.
	Model string
}

// ProviderBedrock holds Bedrock settings.
type ProviderBedrock struct {
	// AWSRegion is the region hosting the model.
	AWSRegion string
	// ModelID is the Bedrock model identifier.
	ModelID string
	// APIKey is an optional runtime key for the ark-compatible endpoint.
	APIKey string
	// BaseURL is the runtime endpoint.
	BaseURL string
}

// ProviderGemini holds Gemini settings.
type ProviderGemini struct {
	// APIKey is read from GOOGLE_API_KEY.
	APIKey string
	// Model is the Gemini model name.
	Model string
}

// SharedTuning holds sampling parameters.
type SharedTuning struct {
	// MaxTokens caps the generated response length.
	MaxTokens int
	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32
}
