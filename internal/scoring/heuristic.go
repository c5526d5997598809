package scoring

import (
	"context"
	"fmt"
	"math"

	"ThreadSentinel/internal/model"
)

// DefaultThreshold applies when a profile leaves its relevance threshold unset.
const DefaultThreshold = 60.0

// weakSubScore is the level under which a sub-score is named as the rejection cause.
const weakSubScore = 40.0

// Heuristic is the deterministic, always-available scoring strategy.
type Heuristic struct{}

// NewHeuristic returns the heuristic scorer.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Score never fails; the error return satisfies Scorer.
func (h *Heuristic) Score(_ context.Context, d *model.Discussion, profile model.TargetingProfile) (model.RelevanceScore, error) {
	return h.Evaluate(d, profile), nil
}

// Evaluate computes all four sub-scores and the acceptance decision.
func (h *Heuristic) Evaluate(d *model.Discussion, profile model.TargetingProfile) model.RelevanceScore {
	text := d.Title + "\n" + d.Text
	return Decide(model.RelevanceScore{
		Intent:       intentScore(text),
		ContextMatch: contextScore(d.Title, text, compileProfile(profile)),
		Quality:      qualityScore(d, text),
		Engagement:   engagementScore(d),
		Method:       model.MethodHeuristic,
	}, profile)
}

// Decide clamps the sub-scores, recomputes the weighted final and applies the threshold.
func Decide(s model.RelevanceScore, profile model.TargetingProfile) model.RelevanceScore {
	s.Intent = clamp(s.Intent)
	s.ContextMatch = clamp(s.ContextMatch)
	s.Quality = clamp(s.Quality)
	s.Engagement = clamp(s.Engagement)
	s.Final = round2(model.WeightedFinal(s.Intent, s.ContextMatch, s.Quality, s.Engagement))

	threshold := profile.RelevanceThreshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	s.Accepted = s.Final >= threshold
	s.RejectionReason = ""
	if !s.Accepted {
		s.RejectionReason = rejectionReason(s, threshold)
	}
	return s
}

func rejectionReason(s model.RelevanceScore, threshold float64) string {
	reason, weakest := "low intent", s.Intent
	if s.ContextMatch < weakest {
		reason, weakest = "poor context match", s.ContextMatch
	}
	if s.Quality < weakest {
		reason, weakest = "low quality", s.Quality
	}
	if weakest < weakSubScore {
		return reason
	}
	return fmt.Sprintf("score %.1f below threshold %.1f", s.Final, threshold)
}

func intentScore(text string) float64 {
	score := capped(countPatterns(text, problemPatterns), 20, 40)
	score += capped(countPatterns(text, recommendationPatterns), 15, 30)
	score += capped(countPatterns(text, questionPatterns), 10, 20)
	score += capped(countPatterns(text, experiencePatterns), 5, 10)
	return score
}

func contextScore(title, text string, terms profileTerms) float64 {
	score := -40 * float64(terms.negative.count(text))

	var kwPoints float64
	for _, kw := range terms.keywords {
		if !kw.MatchString(text) {
			continue
		}
		kwPoints += 20
		if kw.MatchString(title) {
			kwPoints += 20
		}
	}
	score += math.Min(kwPoints, 40)

	score += capped(businessContextTerms.count(text), 10, 30)
	score += capped(businessIndicators.count(text), 5, 20)
	score += capped(terms.segments.count(text), 5, 10)
	return clamp(score)
}

func qualityScore(d *model.Discussion, text string) float64 {
	score := 50.0
	if d.IsSelf {
		score += 20
	}
	score += capped(qualityPhrases.count(text), 5, 20)
	score -= float64(spamPhrases.count(text)) * 10

	length := len(d.Title) + len(d.Text)
	switch {
	case length > 500:
		score += 15
	case length > 200:
		score += 10
	case length < 50:
		score -= 15
	}
	return clamp(score)
}

func engagementScore(d *model.Discussion) float64 {
	var score float64
	if d.Score >= 10 {
		score += 20
	}
	if d.Score >= 50 {
		score += 20
	}
	if d.NumComments >= 5 {
		score += 20
	}
	if d.NumComments >= 20 {
		score += 20
	}
	if d.Score > 0 && float64(d.NumComments)/float64(d.Score) > 0.1 {
		score += 20
	}
	return math.Min(score, 100)
}

func capped(hits int, per, max float64) float64 {
	return math.Min(float64(hits)*per, max)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
