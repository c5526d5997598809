package scoring

import (
	"context"
	"errors"
	"log"
	"math"

	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/quota"
)

// Scorer scores one discussion against a targeting profile.
type Scorer interface {
	Score(ctx context.Context, d *model.Discussion, profile model.TargetingProfile) (model.RelevanceScore, error)
}

// AIClient is the external AI scoring collaborator.
type AIClient interface {
	ScoreDiscussion(ctx context.Context, d *model.Discussion, profile model.TargetingProfile) (*model.AIScore, error)
}

// Quota gates AI calls.
type Quota interface {
	Reserve(ctx context.Context) error
	MarkExhausted()
}

// AIAssisted asks the AI service first and falls back to the heuristic on any failure.
type AIAssisted struct {
	ai        AIClient
	quota     Quota
	heuristic *Heuristic
}

// NewAIAssisted creates an AI-assisted scorer.
func NewAIAssisted(ai AIClient, q Quota) *AIAssisted {
	return &AIAssisted{ai: ai, quota: q, heuristic: NewHeuristic()}
}

// Score returns the AI judgement when one is available, otherwise the heuristic score.
func (s *AIAssisted) Score(ctx context.Context, d *model.Discussion, profile model.TargetingProfile) (model.RelevanceScore, error) {
	if err := s.quota.Reserve(ctx); err != nil {
		if !errors.Is(err, quota.ErrQuotaExceeded) {
			log.Printf("[WARN] ai quota check failed, using heuristic: %v", err)
		}
		return s.heuristic.Evaluate(d, profile), nil
	}

	raw, err := s.ai.ScoreDiscussion(ctx, d, profile)
	if err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			s.quota.MarkExhausted()
		} else {
			log.Printf("[WARN] ai scoring failed for %s, using heuristic: %v", d.ID, err)
		}
		return s.heuristic.Evaluate(d, profile), nil
	}
	if !wellFormed(raw) {
		log.Printf("[WARN] malformed ai score for %s, using heuristic", d.ID)
		return s.heuristic.Evaluate(d, profile), nil
	}

	return Decide(model.RelevanceScore{
		Intent:       raw.Intent,
		ContextMatch: raw.ContextMatch,
		Quality:      raw.Quality,
		Engagement:   raw.Engagement,
		Method:       model.MethodAI,
	}, profile), nil
}

func wellFormed(s *model.AIScore) bool {
	if s == nil {
		return false
	}
	for _, v := range []float64{s.Intent, s.ContextMatch, s.Quality, s.Engagement} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
