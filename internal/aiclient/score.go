package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"ThreadSentinel/internal/model"
)

const scoreSystemPrompt = `You rate Reddit discussions for a product marketer.
Return only a JSON object with numeric fields intent, context_match, quality, engagement (each 0-100)
and a short string field reasoning.
intent: how clearly the author is looking for a solution or recommendation.
context_match: how well the discussion fits the product and targeting keywords.
quality: how substantive and non-spammy the discussion is.
engagement: how much attention the discussion is getting.`

// ScoreDiscussion asks the model to rate d against profile.
func (c *Client) ScoreDiscussion(ctx context.Context, d *model.Discussion, profile model.TargetingProfile) (*model.AIScore, error) {
	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages: chatMessages(scoreSystemPrompt, scorePrompt(d, profile)),
		// A zero temperature is dropped by omitempty.
		Temperature: math.SmallestNonzeroFloat32,
		MaxTokens:   300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}

	var score model.AIScore
	if err := json.Unmarshal([]byte(extractJSON(content)), &score); err != nil {
		return nil, fmt.Errorf("%w: decode score: %v", ErrMalformedResponse, err)
	}
	return &score, nil
}

func scorePrompt(d *model.Discussion, profile model.TargetingProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target keywords: %s\n", strings.Join(profile.Keywords, ", "))
	if len(profile.NegativeKeywords) > 0 {
		fmt.Fprintf(&b, "Negative keywords: %s\n", strings.Join(profile.NegativeKeywords, ", "))
	}
	if len(profile.CustomerSegments) > 0 {
		fmt.Fprintf(&b, "Customer segments: %s\n", strings.Join(profile.CustomerSegments, ", "))
	}
	fmt.Fprintf(&b, "\nSubreddit: r/%s\nScore: %d, comments: %d\nTitle: %s\n\n%s\n",
		d.Subreddit, d.Score, d.NumComments, d.Title, truncate(d.Text, 4000))
	return b.String()
}

// extractJSON trims markdown fences some models wrap around JSON output.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
