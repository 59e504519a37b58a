package notify

import (
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestFormatSummary(t *testing.T) {
	res := &models.RunResult{
		BotID:      "slime_bot",
		State:      models.StateDone,
		Replies:    2,
		Upvotes:    7,
		Subreddits: []string{"Slime", "crafts"},
		SkipReasons: []models.SkipReason{
			models.ReasonTopicalityReject, models.ReasonExternalError, models.ReasonTopicalityReject,
		},
	}

	out := FormatSummary(res)
	assert.Contains(t, out, "*slime\\_bot* DONE")
	assert.Contains(t, out, "Replies: 2\nUpvotes: 7\n")
	assert.Contains(t, out, "r/Slime, r/crafts")
	assert.Contains(t, out, "external\\_error: 1")
	assert.Contains(t, out, "topicality\\_reject: 2")
	assert.Less(t, strings.Index(out, "external"), strings.Index(out, "topicality"))
}

func TestFormatSummaryAborted(t *testing.T) {
	out := FormatSummary(&models.RunResult{
		BotID:       "b",
		State:       models.StateAborted,
		DryRun:      true,
		AbortReason: "configuration error: bot \"b\" is not active.",
	})
	assert.Contains(t, out, "⚠️")
	assert.Contains(t, out, "_dry run_")
	assert.Contains(t, out, "is not active\\.")
	assert.NotContains(t, out, "Replies")
}

func TestNotifyRun(t *testing.T) {
	sender := &fakeSender{}
	tg := NewTelegramWithSender(sender, 42, zap.NewNop())

	require.NoError(t, tg.NotifyRun(&models.RunResult{BotID: "b", State: models.StateDone}))
	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "MarkdownV2", msg.ParseMode)

	sender.err = errors.New("chat not found")
	assert.Error(t, tg.NotifyRun(&models.RunResult{BotID: "b", State: models.StateDone}))
}

