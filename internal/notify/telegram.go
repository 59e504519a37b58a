package notify

import (
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a run summary to one chat.
type Telegram struct {
	api    Sender
	chatID int64
	logger *zap.Logger
}

func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramWithSender(api, chatID, logger), nil
}

func NewTelegramWithSender(api Sender, chatID int64, logger *zap.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, logger: logger}
}

// NotifyRun sends the summary of res. Failures are returned so the caller
// can log them; they never change the run outcome.
func (t *Telegram) NotifyRun(res *models.RunResult) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(res))
	msg.ParseMode = "MarkdownV2"
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send run summary",
			zap.Error(err),
			zap.Int64("chat_id", t.chatID),
			zap.String("run_id", res.RunID))
		return err
	}
	return nil
}

// FormatSummary renders res as MarkdownV2.
func FormatSummary(res *models.RunResult) string {
	icon := "✅"
	switch {
	case res.State == models.StateAborted:
		icon = "⚠️"
	case res.Interrupted:
		icon = "⏸"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* %s", icon, escapeMarkdown(res.BotID), escapeMarkdown(string(res.State)))
	if res.DryRun {
		b.WriteString(" _dry run_")
	}
	b.WriteString("\n")

	if res.State == models.StateAborted {
		fmt.Fprintf(&b, "Reason: %s\n", escapeMarkdown(res.AbortReason))
		return b.String()
	}

	fmt.Fprintf(&b, "Replies: %d\nUpvotes: %d\n", res.Replies, res.Upvotes)
	if len(res.Subreddits) > 0 {
		subs := make([]string, len(res.Subreddits))
		for i, s := range res.Subreddits {
			subs[i] = escapeMarkdown("r/" + s)
		}
		fmt.Fprintf(&b, "Subreddits: %s\n", strings.Join(subs, ", "))
	}

	counts := res.SkipCounts()
	if len(counts) > 0 {
		reasons := make([]string, 0, len(counts))
		for r := range counts {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)

		b.WriteString("Skips:\n")
		for _, r := range reasons {
			fmt.Fprintf(&b, "  %s: %d\n", escapeMarkdown(r), counts[models.SkipReason(r)])
		}
	}
	if res.Interrupted {
		b.WriteString("_interrupted_\n")
	}
	return b.String()
}

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
