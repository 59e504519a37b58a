package models

import (
	"strings"
	"time"
)

// BotIdentity is the per-bot configuration record. It is loaded once at
// run start and never mutated while the run is in progress.
type BotIdentity struct {
	ID               string   `json:"id" mapstructure:"id"`
	CredentialHandle string   `json:"credential_handle" mapstructure:"credential_handle"`
	Keywords         []string `json:"keywords" mapstructure:"keywords"`
	FixedSubs        []string `json:"fixed_subs" mapstructure:"fixed_subs"`
	Prompt           string   `json:"prompt" mapstructure:"prompt"`
	MaxReplies       int      `json:"max_replies" mapstructure:"max_replies"`
	MaxUpvotes       int      `json:"max_upvotes" mapstructure:"max_upvotes"`
	MaxSubreddits    int      `json:"max_subs" mapstructure:"max_subs"`
	Active           bool     `json:"active" mapstructure:"active"`
}

// Limits applied to identities that leave them unset.
const (
	DefaultMaxReplies    = 10
	DefaultMaxUpvotes    = 20
	DefaultMaxSubreddits = 3
)

// WithDefaults returns a copy with every zero or negative limit replaced by
// its default.
func (b BotIdentity) WithDefaults() BotIdentity {
	out := b.WithLimits(Limits{})
	if out.MaxReplies <= 0 {
		out.MaxReplies = DefaultMaxReplies
	}
	if out.MaxUpvotes <= 0 {
		out.MaxUpvotes = DefaultMaxUpvotes
	}
	if out.MaxSubreddits <= 0 {
		out.MaxSubreddits = DefaultMaxSubreddits
	}
	return out
}

// Limits carries per-run overrides for the numeric limits of a BotIdentity.
// Zero or negative values leave the identity's own limit in place.
type Limits struct {
	MaxReplies    int
	MaxUpvotes    int
	MaxSubreddits int
}

// WithLimits returns a copy of the identity with the overrides applied.
func (b BotIdentity) WithLimits(l Limits) BotIdentity {
	out := b
	out.Keywords = append([]string(nil), b.Keywords...)
	out.FixedSubs = append([]string(nil), b.FixedSubs...)
	if l.MaxReplies > 0 {
		out.MaxReplies = l.MaxReplies
	}
	if l.MaxUpvotes > 0 {
		out.MaxUpvotes = l.MaxUpvotes
	}
	if l.MaxSubreddits > 0 {
		out.MaxSubreddits = l.MaxSubreddits
	}
	return out
}

// ExclusionEntry is a subreddit no bot may ever act in.
type ExclusionEntry struct {
	Subreddit string    `json:"subreddit"`
	Reason    string    `json:"reason"`
	AddedAt   time.Time `json:"added_at"`
}

// HistoryEntry records the last time a bot commented in a subreddit.
type HistoryEntry struct {
	BotID           string    `json:"bot_id"`
	Subreddit       string    `json:"subreddit"`
	LastCommentedAt time.Time `json:"last_commented_at"`
}

// CleanSubreddit strips whitespace and any "r/" or "/r/" prefix, keeping
// the original case.
func CleanSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if len(name) > 2 && strings.EqualFold(name[:2], "r/") {
		name = name[2:]
	}
	return name
}

// NormalizeSubreddit folds a subreddit name to its comparison key.
// "r/Slime", " slime " and "SLIME" all map to "slime".
func NormalizeSubreddit(name string) string {
	return strings.ToLower(CleanSubreddit(name))
}
