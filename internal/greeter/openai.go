package greeter

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/idcard-assistant/internal/api/openai"
	"github.com/tjfontaine/idcard-assistant/internal/config"
	"github.com/tjfontaine/idcard-assistant/internal/tokens"
	"github.com/tjfontaine/idcard-assistant/internal/wizard"
)

// OpenAIGenerator adapts an OpenAI-compatible chat completion client to Generator.
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIGenerator creates a Generator for model.
func NewOpenAIGenerator(client *openai.Client, model string, maxTokens int) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: g.maxTokens,
	}, nil)
	if err != nil {
		return "", err
	}
	if resp.Truncated() {
		return "", ErrTruncated
	}
	return resp.FirstContent(), nil
}

// New picks the strategy for cfg: Static when no API key is configured,
// otherwise an LLM backed by the OpenAI-compatible endpoint. httpClient may be
// nil, in which case an otelhttp-instrumented client is used.
func New(cfg config.LLMConfig, logger *slog.Logger, httpClient *http.Client) wizard.Personalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Configured() {
		logger.Info("text generation not configured, using fixed messages")
		return Static{}
	}

	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	client := openai.NewClient(cfg.APIKey,
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithHTTPClient(httpClient),
	)

	logger.Info("text generation configured",
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout),
	)

	return NewLLM(NewOpenAIGenerator(client, cfg.Model, cfg.MaxTokens),
		WithTimeout(cfg.Timeout),
		WithMaxTokens(cfg.MaxTokens),
		WithCounter(tokens.ForModel(cfg.Model)),
		WithLogger(logger),
	)
}
