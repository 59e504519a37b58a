package bot

import (
	"context"
	"fmt"

	"github.com/spaolacci/murmur3"
	"github.com/xaenox/subreddit-bot/internal/models"
	"go.uber.org/zap"
)

// process walks the selected subreddits in order. Once the reply budget is
// spent, the next post reached is logged as budget_exhausted, wherever it
// sits, and processing stops.
func (r *Runner) process(ctx context.Context, st *run, selected []string) {
	res := st.result

	for _, sub := range selected {
		if ctx.Err() != nil {
			res.Interrupted = true
			return
		}
		res.Subreddits = append(res.Subreddits, sub)
		log := st.logger.With(zap.String("subreddit", sub))

		posts, err := r.fetchPosts(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				res.Interrupted = true
				return
			}
			log.Warn("Failed to fetch posts", zap.Error(err))
			r.skip(ctx, st, models.CandidatePost{Subreddit: sub}, models.ReasonExternalError, err.Error())
			continue
		}
		log.Info("Fetched posts", zap.Int("count", len(posts)))

		if len(posts) > r.opts.PostsPerSubreddit {
			posts = posts[:r.opts.PostsPerSubreddit]
		}
		for _, post := range posts {
			if ctx.Err() != nil {
				res.Interrupted = true
				return
			}
			if post.Subreddit == "" {
				post.Subreddit = sub
			}
			if res.Replies >= st.identity.MaxReplies {
				r.skip(ctx, st, post, models.ReasonBudgetExhausted, "")
				log.Info("Reply budget spent", zap.Int("max_replies", st.identity.MaxReplies))
				return
			}

			if r.processPost(ctx, st, post) {
				if err := r.deps.Pacer.Wait(ctx); err != nil {
					res.Interrupted = true
					return
				}
			}
		}
	}
}

func (r *Runner) fetchPosts(ctx context.Context, sub string) ([]models.CandidatePost, error) {
	posts, err := r.deps.Posts.FetchRecentPosts(ctx, sub, r.opts.PostsPerSubreddit, r.opts.Sort)
	if err != nil {
		return nil, models.External("fetch "+r.opts.Sort+" posts", err)
	}
	if len(posts) == 0 && r.opts.Sort == SortRising {
		posts, err = r.deps.Posts.FetchRecentPosts(ctx, sub, r.opts.PostsPerSubreddit, SortNew)
		if err != nil {
			return nil, models.External("fetch new posts", err)
		}
	}
	return posts, nil
}

// processPost handles one post end to end and reports whether an action
// (real or simulated) was taken.
func (r *Runner) processPost(ctx context.Context, st *run, post models.CandidatePost) bool {
	res := st.result
	log := st.logger.With(zap.String("subreddit", post.Subreddit), zap.String("post_id", post.ID))

	if err := post.Validate(); err != nil {
		r.skip(ctx, st, post, models.ReasonExternalError, err.Error())
		return false
	}
	if _, done := st.replied[post.ID]; done {
		r.skip(ctx, st, post, models.ReasonAlreadyReplied, "")
		return false
	}

	raw, err := r.deps.Generator.Generate(ctx, st.identity.Prompt, post)
	if err != nil {
		log.Warn("Reply generation failed", zap.Error(err))
		raw = ""
	}

	decision := r.deps.Gate.Evaluate(post, raw)
	if !decision.Accepted() {
		log.Debug("Reply skipped", zap.String("reason", string(decision.Reason)))
		r.skip(ctx, st, post, decision.Reason, "")
		return false
	}

	upvotes := 0
	if r.opts.DryRun {
		upvotes = r.simulatedUpvotes(st, post)
	} else {
		if err := r.deps.Sink.PostComment(ctx, post, decision.Reply); err != nil {
			log.Warn("Failed to post comment", zap.Error(err))
			r.skip(ctx, st, post, models.ReasonExternalError, err.Error())
			return false
		}
		upvotes = r.upvote(ctx, st, post, log)

		if err := r.deps.Store.UpsertHistory(ctx, st.identity.ID, post.Subreddit, r.opts.Now()); err != nil {
			log.Error("Failed to update subreddit history", zap.Error(err))
		}
	}

	res.Replies++
	res.Upvotes += upvotes
	st.replied[post.ID] = struct{}{}

	log.Info("Replied to post", zap.Int("upvotes", upvotes), zap.Int("replies", res.Replies))
	r.record(ctx, st, models.LogEntry{
		Subreddit: post.Subreddit,
		PostID:    post.ID,
		Action:    models.ActionReply,
		Verdict:   models.VerdictAccept,
		Reply:     decision.Reply,
		ReplyHash: ReplyFingerprint(decision.Reply),
		Upvotes:   upvotes,
	})
	return true
}

// upvote votes on the post and then its top comments while the run's
// upvote budget lasts. Failures are logged only.
func (r *Runner) upvote(ctx context.Context, st *run, post models.CandidatePost, log *zap.Logger) int {
	targets := []string{postFullName(post)}
	for i, c := range post.TopComments {
		if i >= r.opts.CommentsToUpvote {
			break
		}
		targets = append(targets, commentFullName(c))
	}

	n := 0
	for _, target := range targets {
		if st.result.Upvotes+n >= st.identity.MaxUpvotes {
			break
		}
		if err := r.deps.Sink.Upvote(ctx, target); err != nil {
			log.Warn("Failed to upvote", zap.String("target", target), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

func (r *Runner) simulatedUpvotes(st *run, post models.CandidatePost) int {
	n := 1 + min(len(post.TopComments), r.opts.CommentsToUpvote)
	remaining := st.identity.MaxUpvotes - st.result.Upvotes
	return max(0, min(n, remaining))
}

func (r *Runner) skip(ctx context.Context, st *run, post models.CandidatePost, reason models.SkipReason, detail string) {
	st.result.SkipReasons = append(st.result.SkipReasons, reason)
	r.record(ctx, st, models.LogEntry{
		Subreddit: post.Subreddit,
		PostID:    post.ID,
		Action:    models.ActionSkip,
		Verdict:   models.VerdictSkip,
		Reason:    reason,
		Detail:    detail,
	})
}

func postFullName(p models.CandidatePost) string {
	if p.FullName != "" {
		return p.FullName
	}
	return "t3_" + p.ID
}

func commentFullName(c models.Comment) string {
	if c.FullName != "" {
		return c.FullName
	}
	return "t1_" + c.ID
}

// ReplyFingerprint is a short stable hash of a reply, stored in the log so
// repeated boilerplate replies are easy to spot.
func ReplyFingerprint(reply string) string {
	return fmt.Sprintf("%016x", murmur3.Sum64([]byte(reply)))
}
