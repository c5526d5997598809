package model

// ScoreMethod says which strategy produced a score. Informational only.
type ScoreMethod string

const (
	MethodHeuristic ScoreMethod = "heuristic"
	MethodAI        ScoreMethod = "ai"
)

// Sub-score weights of the final relevance score.
const (
	WeightIntent       = 0.25
	WeightContextMatch = 0.35
	WeightQuality      = 0.25
	WeightEngagement   = 0.15
)

// RelevanceScore is the outcome of scoring one discussion for one campaign.
type RelevanceScore struct {
	Intent          float64
	ContextMatch    float64
	Quality         float64
	Engagement      float64
	Final           float64
	Accepted        bool
	RejectionReason string
	Method          ScoreMethod
}

// WeightedFinal combines the four sub-scores.
func WeightedFinal(intent, context, quality, engagement float64) float64 {
	return WeightIntent*intent + WeightContextMatch*context + WeightQuality*quality + WeightEngagement*engagement
}

// AIScore is the raw judgement returned by the AI scoring service.
type AIScore struct {
	Intent       float64 `json:"intent"`
	ContextMatch float64 `json:"context_match"`
	Quality      float64 `json:"quality"`
	Engagement   float64 `json:"engagement"`
	Reasoning    string  `json:"reasoning,omitempty"`
}
