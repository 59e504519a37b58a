package bot

import (
	"context"

	"github.com/xaenox/subreddit-bot/internal/models"
	"github.com/xaenox/subreddit-bot/internal/rotation"
)

// Discovery finds subreddits for a keyword.
type Discovery = rotation.Discovery

// PostSource lists recent posts of a subreddit, with their top comments.
type PostSource interface {
	FetchRecentPosts(ctx context.Context, subreddit string, limit int, sort string) ([]models.CandidatePost, error)
}

// Generator writes a reply for post. An empty reply means it had nothing;
// gate.SkipToken means it chose not to answer.
type Generator interface {
	Generate(ctx context.Context, prompt string, post models.CandidatePost) (string, error)
}

// ActionSink performs the visible actions of a bot account.
type ActionSink interface {
	Authenticate(ctx context.Context) error
	PostComment(ctx context.Context, post models.CandidatePost, text string) error
	// Upvote takes a fullname such as t3_abc or t1_xyz.
	Upvote(ctx context.Context, target string) error
}

// Recorder is the append-only interaction log.
type Recorder interface {
	Record(ctx context.Context, runID string, entry models.LogEntry) error
}
