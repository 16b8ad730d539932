package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider implements Provider against a local Ollama server through
// langchaingo. Ollama has no schema support, so it runs in JSON mode and the
// schema shape is described in the prompt instead.
type OllamaProvider struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaProvider creates a provider for the Ollama server at cfg.ServerURL.
func NewOllamaProvider(cfg OllamaConfig, httpClient *http.Client) (*OllamaProvider, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("ollama server URL is required")
	}

	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.ServerURL),
		ollama.WithFormat("json"),
	}
	if httpClient != nil {
		opts = append(opts, ollama.WithHTTPClient(httpClient))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create Ollama client: %w", err)
	}

	return &OllamaProvider{llm: client, model: cfg.Model}, nil
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var history []llms.MessageContent
	if req.System != "" {
		history = append(history, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		msgType := llms.ChatMessageTypeHuman
		if m.Role == RoleAssistant {
			msgType = llms.ChatMessageTypeAI
		}
		history = append(history, llms.TextParts(msgType, m.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := p.llm.GenerateContent(ctx, history, callOpts...)
	if err != nil {
		return nil, mapOllamaError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no choices in Ollama response")}
	}

	choice := resp.Choices[0]
	content, err := extractJSONObject(choice.Content)
	if err != nil {
		return nil, err
	}

	usage := Usage{
		InputTokens:  intFromInfo(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: intFromInfo(choice.GenerationInfo, "CompletionTokens"),
	}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return &Response{
		Content:    content,
		Usage:      usage,
		Model:      p.model,
		StopReason: "end",
	}, nil
}

func (p *OllamaProvider) ModelID() string {
	return p.model
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func mapOllamaError(err error) error {
	if mapped := mapTransportError(err); mapped != nil {
		return mapped
	}
	if isTooManyRequests(err) {
		return &ErrRateLimit{Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}
