package compose

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"text/template"

	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/quota"
)

// DefaultTemplate is used when a campaign has no reply template of its own.
const DefaultTemplate = `We ran into the same thing{{if .Campaign.Description}} and ended up using {{.Campaign.Name}}: {{.Campaign.Description}}{{else}} and ended up using {{.Campaign.Name}}{{end}}.{{if .Campaign.WebsiteURL}} {{.Campaign.WebsiteURL}}{{end}}`

// Composer produces the comment text for a discussion.
type Composer interface {
	Compose(ctx context.Context, campaign *model.Campaign, d *model.Discussion) (string, error)
}

// Drafter is the AI side of reply composition.
type Drafter interface {
	ComposeReply(ctx context.Context, campaign *model.Campaign, d *model.Discussion) (string, error)
}

// Quota gates AI calls.
type Quota interface {
	Reserve(ctx context.Context) error
	MarkExhausted()
}

// TemplateComposer renders the campaign's reply template.
type TemplateComposer struct{}

// templateData is the dot value of reply templates.
type templateData struct {
	Campaign   *model.Campaign
	Discussion *model.Discussion
}

func (TemplateComposer) Compose(_ context.Context, campaign *model.Campaign, d *model.Discussion) (string, error) {
	src := campaign.ReplyTemplate
	if strings.TrimSpace(src) == "" {
		src = DefaultTemplate
	}
	tmpl, err := template.New("reply").Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse reply template of %s: %w", campaign.ID, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, templateData{Campaign: campaign, Discussion: d}); err != nil {
		return "", fmt.Errorf("render reply template of %s: %w", campaign.ID, err)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("reply template of %s rendered empty", campaign.ID)
	}
	return text, nil
}

// AIComposer drafts replies with the AI service and falls back to the template.
type AIComposer struct {
	drafter  Drafter
	quota    Quota
	fallback TemplateComposer
}

// NewAIComposer creates an AI-assisted composer.
func NewAIComposer(drafter Drafter, q Quota) *AIComposer {
	return &AIComposer{drafter: drafter, quota: q}
}

func (c *AIComposer) Compose(ctx context.Context, campaign *model.Campaign, d *model.Discussion) (string, error) {
	if err := c.quota.Reserve(ctx); err != nil {
		return c.fallback.Compose(ctx, campaign, d)
	}
	text, err := c.drafter.ComposeReply(ctx, campaign, d)
	if err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			c.quota.MarkExhausted()
		} else {
			log.Printf("[WARN] ai reply for %s failed, using template: %v", d.ID, err)
		}
		return c.fallback.Compose(ctx, campaign, d)
	}
	if strings.TrimSpace(text) == "" {
		return c.fallback.Compose(ctx, campaign, d)
	}
	return text, nil
}
