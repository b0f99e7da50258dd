// Package llmfactory provides configuration and factories for model providers (Google AI, OpenAI, Anthropic) and model selection by type or name.
package llmfactory
