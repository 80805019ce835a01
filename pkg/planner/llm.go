// Package planner turns a natural-language goal into a validated
// workflow definition using an LLM client.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// LLMClient is the interface for goal-to-workflow planning and for
// backing the generation step family.
type LLMClient interface {
	// Complete sends a system prompt and user prompt to the LLM and
	// returns the assistant's response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the deployment/model name for provenance
	// tracking.
	ModelName() string
}

// AzureOpenAIClient implements LLMClient using the Azure OpenAI REST API.
type AzureOpenAIClient struct {
	Endpoint   string // e.g. https://<resource>.openai.azure.com
	APIKey     string
	Deployment string // model deployment name
	APIVersion string // e.g. 2024-02-01
	HTTPClient *http.Client
}

// AzureOpenAIConfig holds configuration for creating an Azure OpenAI client.
type AzureOpenAIConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// NewAzureOpenAIClient creates a client from explicit config.
func NewAzureOpenAIClient(cfg AzureOpenAIConfig) (*AzureOpenAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_DEPLOYMENT is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-02-01"
	}
	return &AzureOpenAIClient{
		Endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		APIKey:     cfg.APIKey,
		Deployment: cfg.Deployment,
		APIVersion: cfg.APIVersion,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// NewAzureOpenAIClientFromEnv creates a client from environment variables:
//
//	AZURE_OPENAI_ENDPOINT   – required
//	AZURE_OPENAI_API_KEY    – required
//	AZURE_OPENAI_DEPLOYMENT – required
//	AZURE_OPENAI_API_VERSION – optional (default "2024-02-01")
func NewAzureOpenAIClientFromEnv() (*AzureOpenAIClient, error) {
	return NewAzureOpenAIClient(AzureOpenAIConfig{
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		APIVersion: envOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
	})
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// chatRequest is the Azure OpenAI chat completions request body.
type chatRequest struct {
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Azure OpenAI chat completions response body.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ModelName returns the deployment name for provenance tracking.
func (c *AzureOpenAIClient) ModelName() string {
	return c.Deployment
}

// Complete sends a chat completion request to Azure OpenAI.
func (c *AzureOpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.Endpoint, c.Deployment, c.APIVersion)

	reqBody := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxCompletionTokens: 16384,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Azure OpenAI returned %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error [%s]: %s", chatResp.Error.Code, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	if chatResp.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("LLM response was truncated (hit max_completion_tokens)")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// ClientGenerator adapts an LLMClient to the Generator collaborator the
// generation step family expects.
type ClientGenerator struct {
	Client LLMClient
	System string // optional system prompt; a sensible default applies
}

func (g *ClientGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	system := g.System
	if system == "" {
		system = "You are a careful software engineer. Follow the instructions exactly and put code in fenced code blocks."
	}
	return g.Client.Complete(ctx, system, prompt)
}
