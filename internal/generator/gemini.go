package generator

import (
	"context"

	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// contentGenerator is the method of *genai.Models the generator calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates replies with Google's Gemini API.
type Gemini struct {
	models      contentGenerator
	model       string
	maxTokens   int32
	temperature float32
	logger      *zap.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, models.Configurationf("gemini generator needs an API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, &models.ConfigurationError{Msg: "create gemini client", Err: err}
	}
	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(m contentGenerator, cfg GeminiConfig, logger *zap.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &Gemini{
		models:      m,
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
		logger:      logger,
	}
}

func (g *Gemini) Generate(ctx context.Context, prompt string, post models.CandidatePost) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(prompt), genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   g.maxTokens,
	}

	result, err := g.models.GenerateContent(ctx, g.model, genai.Text(userPrompt(post)), config)
	if err != nil {
		return "", models.External("gemini generate", err)
	}
	if result == nil {
		return "", nil
	}

	reply := CleanReply(result.Text())
	g.logger.Debug("Generated reply",
		zap.String("post_id", post.ID),
		zap.String("model", g.model),
		zap.String("reply", reply))
	return reply, nil
}

func (g *Gemini) String() string { return "gemini:" + g.model }
