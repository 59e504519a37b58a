package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xaenox/subreddit-bot/internal/classifier"
	"github.com/xaenox/subreddit-bot/internal/models"
)

var slimePost = models.CandidatePost{
	ID:        "abc",
	Subreddit: "Slime",
	Title:     "My favourite slime recipes",
	Body:      "Clear glue, contact solution and a little baking soda.",
}

func TestEvaluate(t *testing.T) {
	assert := assert.New(t)
	g := New()

	fixtures := []struct {
		reply  string
		reason models.SkipReason
	}{
		{reply: "", reason: models.ReasonGenerationFailed},
		{reply: "   \n", reason: models.ReasonGenerationFailed},
		{reply: "SKIP", reason: models.ReasonExplicitSkip},
		{reply: "I have no idea what this is about", reason: models.ReasonSentimentReject},
		{reply: "Thanks for sharing your work!", reason: models.ReasonTopicalityReject},
		{reply: "Adding more baking soda makes it less sticky", reason: models.ReasonNone},
	}

	for _, fix := range fixtures {
		d := g.Evaluate(slimePost, fix.reply)
		if fix.reason == models.ReasonNone {
			assert.True(d.Accepted(), fix.reply)
			assert.Equal(fix.reply, d.Reply, "accepted reply is attached unchanged")
			continue
		}
		assert.Equal(models.VerdictSkip, d.Verdict, fix.reply)
		assert.Equal(fix.reason, d.Reason, fix.reply)
		assert.Empty(d.Reply)
	}
}

func TestTopicalityRejectScenario(t *testing.T) {
	post := models.CandidatePost{ID: "p", Title: "slime recipes"}
	d := New().Evaluate(post, "Thanks for sharing your work!")
	assert.Equal(t, models.VerdictSkip, d.Verdict)
	assert.Equal(t, models.ReasonTopicalityReject, d.Reason)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	g := New()
	replies := []string{
		"Adding more baking soda makes it less sticky",
		"Thanks for sharing your work!",
		"what?",
		"SKIP",
	}
	for _, r := range replies {
		first := g.Evaluate(slimePost, r)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, g.Evaluate(slimePost, r), r)
		}
	}
}

func TestSkipTokenNeverAccepted(t *testing.T) {
	g := New()
	for _, raw := range []string{"SKIP", "skip", " Skip. ", "\"SKIP\"", "[SKIP]", "**SKIP**", "SKIP!"} {
		assert.True(t, IsSkipToken(raw), raw)
		d := g.Evaluate(slimePost, raw)
		assert.False(t, d.Accepted(), raw)
		assert.Equal(t, models.ReasonExplicitSkip, d.Reason, raw)
	}
	assert.False(t, IsSkipToken("Skip the borax and use saline"))
}

func TestCustomChecks(t *testing.T) {
	calls := 0
	g := &Gate{
		Sentiment: classifier.CheckFunc{Label: "always", Fn: func(string, classifier.Context) bool {
			calls++
			return true
		}},
		Topicality: classifier.CheckFunc{Label: "never", Fn: func(string, classifier.Context) bool { return false }},
	}
	d := g.Evaluate(slimePost, "anything at all here")
	assert.Equal(t, models.ReasonTopicalityReject, d.Reason)
	assert.Equal(t, 1, calls)
}
