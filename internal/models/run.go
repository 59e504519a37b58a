package models

import "time"

// RunState is the Run Coordinator's lifecycle state.
type RunState string

const (
	StateInit       RunState = "INIT"
	StateSelecting  RunState = "SELECTING"
	StateProcessing RunState = "PROCESSING"
	StateDone       RunState = "DONE"
	StateAborted    RunState = "ABORTED"
)

// RunResult is created empty at run start and finalized at DONE or ABORTED.
type RunResult struct {
	RunID       string       `json:"run_id"`
	BotID       string       `json:"bot_id"`
	State       RunState     `json:"state"`
	DryRun      bool         `json:"dry_run"`
	Replies     int          `json:"replies"`
	Upvotes     int          `json:"upvotes"`
	Subreddits  []string     `json:"subreddits"`
	SkipReasons []SkipReason `json:"skip_reasons"`
	Interrupted bool         `json:"interrupted,omitempty"`
	AbortReason string       `json:"abort_reason,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// SubredditsUsed is the number of subreddits the run entered.
func (r *RunResult) SubredditsUsed() int {
	return len(r.Subreddits)
}

// SkipCounts groups SkipReasons by reason.
func (r *RunResult) SkipCounts() map[SkipReason]int {
	out := make(map[SkipReason]int, len(r.SkipReasons))
	for _, reason := range r.SkipReasons {
		out[reason]++
	}
	return out
}

// LogAction is the kind of interaction log record.
type LogAction string

const (
	ActionReply   LogAction = "reply"
	ActionSkip    LogAction = "skip"
	ActionSummary LogAction = "summary"
)

// LogEntry is one append-only interaction log record: one per post
// decision plus one run summary.
type LogEntry struct {
	RunID     string     `json:"run_id"`
	BotID     string     `json:"bot_id"`
	Subreddit string     `json:"subreddit,omitempty"`
	PostID    string     `json:"post_id,omitempty"`
	Action    LogAction  `json:"action"`
	Verdict   Verdict    `json:"verdict,omitempty"`
	Reason    SkipReason `json:"reason,omitempty"`
	Reply     string     `json:"reply,omitempty"`
	ReplyHash string     `json:"reply_hash,omitempty"`
	Upvotes   int        `json:"upvotes,omitempty"`
	DryRun    bool       `json:"dry_run"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
