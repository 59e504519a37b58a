package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatCompleter is the slice of *openai.Client the model check needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelCheck asks a chat model whether the reply fits the post. When the
// model cannot be reached, or answers something other than YES or NO, the
// Fallback check decides instead.
type ModelCheck struct {
	client   ChatCompleter
	model    string
	timeout  time.Duration
	Fallback Check
	logger   *zap.Logger
}

func NewModelCheck(client ChatCompleter, model string, fallback Check, logger *zap.Logger) *ModelCheck {
	return &ModelCheck{
		client:   client,
		model:    model,
		timeout:  15 * time.Second,
		Fallback: fallback,
		logger:   logger,
	}
}

func (m *ModelCheck) Name() string { return "model:" + m.Fallback.Name() }

func (m *ModelCheck) Check(text string, c Context) bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`You review replies written for Reddit posts.
Answer with exactly one word, YES or NO.
Answer YES only if the reply is friendly and clearly about this specific post.

Post:
%s

Reply:
%s`, c.PostText, text)

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   3,
		Temperature: 0,
	})
	if err != nil {
		m.logger.Warn("Model check failed, using lexical fallback", zap.String("check", m.Fallback.Name()), zap.Error(err))
		return m.Fallback.Check(text, c)
	}
	if len(resp.Choices) == 0 {
		return m.Fallback.Check(text, c)
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	switch {
	case strings.HasPrefix(answer, "YES"):
		return true
	case strings.HasPrefix(answer, "NO"):
		return false
	default:
		m.logger.Warn("Unexpected model check answer", zap.String("answer", answer))
		return m.Fallback.Check(text, c)
	}
}
