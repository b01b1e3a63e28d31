package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"fame/internal/shared"
)

const (
	openAIAPIURL = "https://api.openai.com/v1/chat/completions"
	openAIModel  = "gpt-3.5-turbo"
	groqAPIURL   = "https://api.groq.com/openai/v1/chat/completions"
	groqModel    = "llama-3.3-70b-versatile"
)

// ChatCompletionsProvider is a client for OpenAI-compatible chat completion APIs.
type ChatCompletionsProvider struct {
	id          ProviderID
	url         string
	models      []string
	maxTokens   int
	temperature float64
	jsonMode    bool
	httpClient  *http.Client
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(httpClient *http.Client) *ChatCompletionsProvider {
	return &ChatCompletionsProvider{
		id:          ProviderOpenAI,
		url:         openAIAPIURL,
		models:      []string{openAIModel},
		maxTokens:   2000,
		temperature: 0.7,
		httpClient:  httpClient,
	}
}

// NewGroqProvider creates a Groq provider. Groq is asked for a JSON object.
func NewGroqProvider(httpClient *http.Client) *ChatCompletionsProvider {
	return &ChatCompletionsProvider{
		id:          ProviderGroq,
		url:         groqAPIURL,
		models:      []string{groqModel},
		temperature: 0.1,
		jsonMode:    true,
		httpClient:  httpClient,
	}
}

// WithURL points the provider at another endpoint.
func (c *ChatCompletionsProvider) WithURL(url string) *ChatCompletionsProvider {
	c.url = url
	return c
}

func (c *ChatCompletionsProvider) Name() ProviderID { return c.id }

func (c *ChatCompletionsProvider) Models() []string { return c.models }

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends a prompt to the chat completions endpoint and returns the generated text.
func (c *ChatCompletionsProvider) Generate(ctx context.Context, model, credential, prompt string) (ContentResponse, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if c.jsonMode {
		reqBody.ResponseFormat = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return ContentResponse{}, &StatusError{Provider: c.id, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return ContentResponse{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return ContentResponse{}, ErrEmptyResponse
	}

	usage := shared.TokenUsage{Model: model}
	if chatResp.Usage != nil {
		usage.PromptTokens = chatResp.Usage.PromptTokens
		usage.CompletionTokens = chatResp.Usage.CompletionTokens
		usage.TotalTokens = chatResp.Usage.TotalTokens
	}

	return ContentResponse{Content: chatResp.Choices[0].Message.Content, Usage: usage}, nil
}
