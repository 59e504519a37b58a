package gate

import (
	"strings"

	"github.com/xaenox/subreddit-bot/internal/classifier"
	"github.com/xaenox/subreddit-bot/internal/models"
)

// SkipToken is what the generator answers when it has nothing to add.
const SkipToken = "SKIP"

// Gate decides whether a generated reply may be posted. With the default
// lexical checks it is pure: no I/O, and the same input always gives the
// same decision.
type Gate struct {
	Sentiment  classifier.Check
	Topicality classifier.Check
}

func New() *Gate {
	return &Gate{
		Sentiment:  classifier.NewSentimentCheck(),
		Topicality: classifier.NewTopicalityCheck(),
	}
}

// Evaluate returns the decision for reply, the raw generator output for
// post. An empty reply means generation produced nothing.
func (g *Gate) Evaluate(post models.CandidatePost, reply string) models.ReplyDecision {
	if strings.TrimSpace(reply) == "" {
		return models.Skip(models.ReasonGenerationFailed)
	}
	if IsSkipToken(reply) {
		return models.Skip(models.ReasonExplicitSkip)
	}

	c := classifier.Context{PostText: post.Text()}
	if !g.Sentiment.Check(reply, c) {
		return models.Skip(models.ReasonSentimentReject)
	}
	if !g.Topicality.Check(reply, c) {
		return models.Skip(models.ReasonTopicalityReject)
	}
	return models.Accept(reply)
}

// IsSkipToken tolerates the decoration models like to add: whitespace,
// quotes, brackets, trailing punctuation and any case.
func IsSkipToken(raw string) bool {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, " \t\r\n\"'`*_[](){}<>.!")
	return strings.EqualFold(s, SkipToken)
}
