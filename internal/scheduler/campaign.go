package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"

	"ThreadSentinel/internal/breaker"
	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/notifier"
	"ThreadSentinel/internal/transport"
)

type candidate struct {
	discussion *model.Discussion
	score      model.RelevanceScore
}

// processCampaign runs one ready campaign: fetch, filter, score, post, reschedule.
func (s *Scheduler) processCampaign(ctx context.Context, c *model.Campaign) model.CampaignOutcome {
	out := model.CampaignOutcome{CampaignID: c.ID, CampaignName: c.Name}

	sub := c.TargetSubreddit(s.cfg.DefaultSubreddits)
	out.Subreddit = sub
	if sub == "" {
		return s.skipCampaign(out, "no subreddits configured")
	}

	discussions, err := s.source.FetchDiscussions(ctx, sub, s.cfg.CandidateLimit)
	if err != nil {
		reason := fmt.Sprintf("fetch r/%s: %v", sub, err)
		s.recordFailure(ctx, reason, model.SeverityMedium)
		s.advanceRotation(ctx, c)
		return s.failCampaign(out, reason)
	}

	fresh, err := s.dedup.FilterNew(ctx, c.ID, discussions)
	if err != nil {
		return s.failCampaign(out, err.Error())
	}
	out.Candidates = len(fresh)

	best := s.bestCandidate(ctx, c, fresh)
	if best == nil {
		s.advanceRotation(ctx, c)
		return s.skipCampaign(out, fmt.Sprintf("no acceptable candidates in r/%s (%d fetched, %d new)", sub, len(discussions), len(fresh)))
	}
	out.DiscussionID = best.discussion.ID
	out.Score = best.score.Final

	ref, err := s.accounts.SelectNext(ctx)
	if err != nil {
		return s.failCampaign(out, err.Error())
	}
	if ref == nil {
		reason := "no account available at selection time"
		s.recordFailure(ctx, reason, model.SeverityLow)
		return s.skipCampaign(out, reason)
	}
	out.AccountID = ref.ID

	text, err := s.composer.Compose(ctx, c, best.discussion)
	if err != nil {
		reason := fmt.Sprintf("compose reply: %v", err)
		s.recordFailure(ctx, reason, model.SeverityMedium)
		return s.failCampaign(out, reason)
	}

	posted, err := s.accounts.Submit(ctx, ref, best.discussion.ID, text)
	if err != nil {
		reason := fmt.Sprintf("post on %s as %s: %v", best.discussion.ID, ref.Username, err)
		s.recordFailure(ctx, reason, model.SeverityMedium)
		if transport.IsTerminal(err) {
			s.alert(ctx, notifier.FormatAccountAlert(ref.ID, ref.Username, err.Error()))
		}
		return s.failCampaign(out, reason)
	}
	out.CommentURL = posted.CommentURL

	s.recordSuccess(ctx, c, ref, best, text, posted)
	out.State = model.OutcomePosted
	log.Printf("[INFO] campaign %s posted on %s in r/%s as %s (score %.1f)",
		c.ID, best.discussion.ID, sub, ref.Username, best.score.Final)
	return out
}

// bestCandidate scores the discussions and returns the highest-ranked accepted one.
func (s *Scheduler) bestCandidate(ctx context.Context, c *model.Campaign, ds []*model.Discussion) *candidate {
	scored := make([]candidate, 0, len(ds))
	for _, d := range ds {
		sc, err := s.scorer.Score(ctx, d, c.Profile)
		if err != nil {
			log.Printf("[WARN] campaign %s: score %s: %v", c.ID, d.ID, err)
			continue
		}
		scored = append(scored, candidate{discussion: d, score: sc})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score.Final > scored[j].score.Final
	})
	for i := range scored {
		if scored[i].score.Accepted {
			return &scored[i]
		}
	}
	return nil
}

// recordSuccess commits every side effect of a successful post. The comment is
// already live, so individual failures are logged rather than returned.
func (s *Scheduler) recordSuccess(ctx context.Context, c *model.Campaign, ref *model.AccountRef, best *candidate, text string, posted *transport.SubmitResult) {
	if err := s.dedup.Record(ctx, &model.PostedRecord{
		CampaignID:   c.ID,
		DiscussionID: best.discussion.ID,
		Subreddit:    best.discussion.Subreddit,
		PostedText:   text,
		Score:        best.score.Final,
		AccountID:    ref.ID,
		CommentID:    posted.CommentID,
		CommentURL:   posted.CommentURL,
	}); err != nil {
		log.Printf("[ERROR] campaign %s: %v", c.ID, err)
	}

	cooldown := ref.CooldownMinutes
	if cooldown <= 0 {
		cooldown = s.cfg.DefaultCooldownMinutes
	}
	if err := s.accounts.MarkUsed(ctx, ref.ID, cooldown); err != nil {
		log.Printf("[ERROR] campaign %s: %v", c.ID, err)
	}

	now := s.now()
	if _, err := s.campaigns.UpdateCampaign(ctx, c.ID, func(cur *model.Campaign) error {
		next := now.Add(cur.Interval())
		cur.PostsToday++
		cur.NextEligibleAt = &next
		cur.AdvanceRotation(s.cfg.DefaultSubreddits)
		return nil
	}); err != nil {
		log.Printf("[ERROR] campaign %s: reschedule: %v", c.ID, err)
	}

	if err := s.breaker.RecordSuccess(ctx, breaker.WorkerPosting); err != nil {
		log.Printf("[ERROR] record breaker success: %v", err)
	}
}

func (s *Scheduler) advanceRotation(ctx context.Context, c *model.Campaign) {
	if _, err := s.campaigns.UpdateCampaign(ctx, c.ID, func(cur *model.Campaign) error {
		cur.AdvanceRotation(s.cfg.DefaultSubreddits)
		return nil
	}); err != nil {
		log.Printf("[ERROR] campaign %s: advance rotation: %v", c.ID, err)
	}
}

func (s *Scheduler) skipCampaign(out model.CampaignOutcome, reason string) model.CampaignOutcome {
	out.State = model.OutcomeSkipped
	out.Reason = reason
	log.Printf("[INFO] campaign %s skipped: %s", out.CampaignID, reason)
	return out
}

func (s *Scheduler) failCampaign(out model.CampaignOutcome, reason string) model.CampaignOutcome {
	out.State = model.OutcomeFailed
	out.Reason = reason
	log.Printf("[ERROR] campaign %s failed: %s", out.CampaignID, reason)
	return out
}
