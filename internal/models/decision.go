package models

// Verdict is the Reply Gate's answer for one post.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictSkip   Verdict = "skip"
)

// SkipReason explains why a post was not replied to.
type SkipReason string

const (
	ReasonNone             SkipReason = ""
	ReasonGenerationFailed SkipReason = "generation_failed"
	ReasonExplicitSkip     SkipReason = "explicit_skip"
	ReasonSentimentReject  SkipReason = "sentiment_reject"
	ReasonTopicalityReject SkipReason = "topicality_reject"
	ReasonExternalError    SkipReason = "external_error"
	ReasonBudgetExhausted  SkipReason = "budget_exhausted"
	ReasonAlreadyReplied   SkipReason = "already_replied"
)

// ReplyDecision flows from the gate straight into the log record.
type ReplyDecision struct {
	Reply   string     `json:"reply,omitempty"`
	Verdict Verdict    `json:"verdict"`
	Reason  SkipReason `json:"reason,omitempty"`
}

func Accept(reply string) ReplyDecision {
	return ReplyDecision{Reply: reply, Verdict: VerdictAccept}
}

func Skip(reason SkipReason) ReplyDecision {
	return ReplyDecision{Verdict: VerdictSkip, Reason: reason}
}

// Accepted is true when the reply may be posted.
func (d ReplyDecision) Accepted() bool {
	return d.Verdict == VerdictAccept
}
