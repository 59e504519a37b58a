package generator

import (
	"fmt"
	"strings"

	"github.com/xaenox/subreddit-bot/internal/gate"
	"github.com/xaenox/subreddit-bot/internal/models"
)

const (
	DefaultSystemPrompt = "You are a friendly, supportive Reddit user who loves giving positive, practical advice. " +
		"Never be sarcastic or negative."

	noQuotes = "IMPORTANT: NEVER use quotation marks in your responses."

	maxCommentContext = 3
)

// systemPrompt appends the house rules to the bot's own prompt.
func systemPrompt(identityPrompt string) string {
	base := strings.TrimSpace(identityPrompt)
	if base == "" {
		base = DefaultSystemPrompt
	}
	return fmt.Sprintf("%s %s If you have nothing useful or specific to add, answer with exactly %s and nothing else.",
		base, noQuotes, gate.SkipToken)
}

func userPrompt(post models.CandidatePost) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subreddit: r/%s\n\n", post.Subreddit)
	fmt.Fprintf(&b, "Post Title: %s\n\n", post.Title)
	fmt.Fprintf(&b, "Post Content: %s\n", post.Body)

	if len(post.TopComments) > 0 {
		b.WriteString("\nTop comments:\n")
		for i, c := range post.TopComments {
			if i >= maxCommentContext {
				break
			}
			fmt.Fprintf(&b, "- %s\n", oneLine(c.Body))
		}
	}

	b.WriteString("\nPlease write a brief, friendly, and supportive reply to this Reddit post. ")
	b.WriteString("Mention something specific from the post. Keep it under 25 words. DO NOT use quotation marks in your response.")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var doubleQuotes = strings.NewReplacer(`"`, "", "“", "", "”", "")

// CleanReply trims the model output and removes quotation marks. Single
// quotes are only stripped around the whole reply so contractions survive.
func CleanReply(raw string) string {
	s := strings.TrimSpace(raw)
	s = doubleQuotes.Replace(s)
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "'‘’")
	return strings.TrimSpace(s)
}
