package answer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/pkg/utils"
)

const systemPrompt = "You are an AI assistant that helps users by answering questions based on the provided context. " +
	"Use only the information from the context to answer questions. " +
	"If the context doesn't contain enough information to answer the question, say so clearly. " +
	"Be helpful, accurate, and concise in your responses."

const userPromptFormat = "Context:\n%s\n\nQuestion: %s\n\nPlease provide a helpful answer based on the context above."

// OpenAIConfig configures the chat completion generator.
type OpenAIConfig struct {
	APIKey           string
	BaseURL          string
	Model            string
	MaxTokens        int
	// Temperature 0 requests greedy sampling.
	Temperature      float32
	MaxContextTokens int
	Timeout          time.Duration
	// Counter bounds the context; nil uses EstimateCounter.
	Counter TokenCounter
	Logger  *zap.Logger
}

// OpenAIGenerator answers with an OpenAI-compatible chat completion endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIGenerator creates a chat generator. Model defaults to gpt-3.5-turbo, MaxTokens to 500.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai generator: API key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Counter == nil {
		cfg.Counter = EstimateCounter{}
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: utils.OrNop(cfg.Logger),
	}, nil
}

// Answer sends the evidence as context and returns the trimmed reply. Failures become an
// apology string.
func (g *OpenAIGenerator) Answer(ctx context.Context, query string, evidence []models.Evidence) string {
	if len(evidence) == 0 {
		return NoEvidenceMessage
	}
	texts := make([]string, len(evidence))
	for i, e := range evidence {
		texts[i] = e.Text
	}
	contextText := BuildContext(texts, g.cfg.MaxContextTokens, g.cfg.Counter)

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(userPromptFormat, contextText, query)},
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: requestTemperature(g.cfg.Temperature),
	})
	if err != nil {
		g.logger.Warn("chat completion failed", zap.String("model", g.cfg.Model), zap.Error(err))
		return errorMessage(err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("no choices returned")
		g.logger.Warn("chat completion failed", zap.String("model", g.cfg.Model), zap.Error(err))
		return errorMessage(err)
	}
	g.logger.Debug("chat completion",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// requestTemperature maps 0 to the smallest positive float32: the client omits a zero
// temperature from the request and the API would then use its own default.
func requestTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
