package aiclient

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"ThreadSentinel/internal/model"
)

const composeSystemPrompt = `You write short, helpful Reddit comments.
Answer the author's question first. Mention the product once, naturally, only where it genuinely helps.
No marketing language, no hashtags, no emojis, at most 120 words. Reply with the comment text only.`

// ComposeReply drafts a comment for d that mentions the campaign's product.
func (c *Client) ComposeReply(ctx context.Context, campaign *model.Campaign, d *model.Discussion) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s (%s)\n%s\n\n", campaign.Name, campaign.WebsiteURL, campaign.Description)
	fmt.Fprintf(&b, "Discussion in r/%s\nTitle: %s\n\n%s\n", d.Subreddit, d.Title, truncate(d.Text, 4000))

	content, err := c.complete(ctx, openai.ChatCompletionRequest{
		Messages:    chatMessages(composeSystemPrompt, b.String()),
		Temperature: 0.7,
		MaxTokens:   400,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}
