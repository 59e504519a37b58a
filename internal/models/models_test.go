package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubreddit(t *testing.T) {
	assert := assert.New(t)

	for _, in := range []string{"r/Slime", " slime ", "SLIME", "/r/slime", "R/Slime"} {
		assert.Equal("slime", NormalizeSubreddit(in), in)
	}
	assert.Equal("Slime", CleanSubreddit("/r/Slime"))
	assert.Equal("r", CleanSubreddit("r"))
	assert.Equal("", NormalizeSubreddit("   "))
}

func TestWithLimits(t *testing.T) {
	base := BotIdentity{ID: "b", Keywords: []string{"slime"}, MaxReplies: 3, MaxUpvotes: 10, MaxSubreddits: 2}

	out := base.WithLimits(Limits{MaxReplies: 1, MaxUpvotes: -5})
	assert.Equal(t, 1, out.MaxReplies)
	assert.Equal(t, 10, out.MaxUpvotes)
	assert.Equal(t, 2, out.MaxSubreddits)

	out.Keywords[0] = "glue"
	assert.Equal(t, "slime", base.Keywords[0], "copy must not alias the original")
}

func TestWithDefaults(t *testing.T) {
	out := BotIdentity{ID: "b"}.WithDefaults()
	assert.Equal(t, DefaultMaxReplies, out.MaxReplies)
	assert.Equal(t, DefaultMaxUpvotes, out.MaxUpvotes)
	assert.Equal(t, DefaultMaxSubreddits, out.MaxSubreddits)

	out = BotIdentity{ID: "b", MaxReplies: 2, MaxUpvotes: -1}.WithDefaults()
	assert.Equal(t, 2, out.MaxReplies)
	assert.Equal(t, DefaultMaxUpvotes, out.MaxUpvotes)
}

func TestCandidatePostValidate(t *testing.T) {
	var verr *ValidationError

	assert.ErrorAs(t, CandidatePost{Title: "x"}.Validate(), &verr)
	assert.Equal(t, "id", verr.Field)

	assert.ErrorAs(t, CandidatePost{ID: "a", Title: " ", Body: "\n"}.Validate(), &verr)
	assert.Equal(t, "text", verr.Field)

	p := CandidatePost{ID: "a", Title: "Too sticky", Body: "help"}
	assert.NoError(t, p.Validate())
	assert.Equal(t, "Too sticky\nhelp", p.Text())
}

func TestRunResultCounts(t *testing.T) {
	res := RunResult{
		Subreddits:  []string{"slime", "crafts"},
		SkipReasons: []SkipReason{ReasonSentimentReject, ReasonExplicitSkip, ReasonSentimentReject},
	}
	assert.Equal(t, 2, res.SubredditsUsed())
	assert.Equal(t, map[SkipReason]int{ReasonSentimentReject: 2, ReasonExplicitSkip: 1}, res.SkipCounts())
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")

	cfgErr := fmt.Errorf("wrapped: %w", &ConfigurationError{Msg: "bad", Err: cause})
	assert.True(t, IsConfigurationError(cfgErr))
	assert.ErrorIs(t, cfgErr, cause)
	assert.False(t, IsConfigurationError(cause))

	ext := External("search", cause)
	var target *ExternalServiceError
	assert.ErrorAs(t, ext, &target)
	assert.Equal(t, "search", target.Op)
	assert.ErrorIs(t, ext, cause)

	assert.True(t, Accept("hi").Accepted())
	assert.False(t, Skip(ReasonExplicitSkip).Accepted())
}
