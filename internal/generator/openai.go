package generator

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/subreddit-bot/internal/classifier"
	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

const (
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	DefaultGroqModel = "llama3-8b-8192"
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAI generates replies through any OpenAI-compatible chat endpoint,
// Groq by default.
type OpenAI struct {
	client      classifier.ChatCompleter
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, models.Configurationf("openai-compatible generator needs an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAI(openai.NewClientWithConfig(clientCfg), cfg, logger), nil
}

func newOpenAI(client classifier.ChatCompleter, cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = DefaultGroqModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &OpenAI{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Client exposes the chat client so other components can share it.
func (g *OpenAI) Client() classifier.ChatCompleter { return g.client }

func (g *OpenAI) Model() string { return g.model }

func (g *OpenAI) Generate(ctx context.Context, prompt string, post models.CandidatePost) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(prompt)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(post)},
		},
		MaxTokens:   g.maxTokens,
		Temperature: float32(g.temperature),
	})
	if err != nil {
		return "", models.External("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	reply := CleanReply(resp.Choices[0].Message.Content)
	g.logger.Debug("Generated reply",
		zap.String("post_id", post.ID),
		zap.String("model", g.model),
		zap.String("reply", reply))
	return reply, nil
}

func (g *OpenAI) String() string { return "openai:" + g.model }
