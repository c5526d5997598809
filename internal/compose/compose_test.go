package compose

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/quota"
)

type fakeDrafter struct {
	text string
	err  error
}

func (f *fakeDrafter) ComposeReply(context.Context, *model.Campaign, *model.Discussion) (string, error) {
	return f.text, f.err
}

type fakeQuota struct {
	err       error
	exhausted bool
}

func (f *fakeQuota) Reserve(context.Context) error { return f.err }
func (f *fakeQuota) MarkExhausted()                { f.exhausted = true }

func testCampaign() *model.Campaign {
	return &model.Campaign{ID: "c1", Name: "Acme CRM", Description: "a CRM built for agencies", WebsiteURL: "https://acme.example"}
}

func TestTemplateComposer(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"default", "", "We ran into the same thing and ended up using Acme CRM: a CRM built for agencies. https://acme.example"},
		{"custom", "Re {{.Discussion.Title}}: try {{.Campaign.Name}}", "Re Best CRM?: try Acme CRM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCampaign()
			c.ReplyTemplate = tt.template
			got, err := TemplateComposer{}.Compose(context.Background(), c, &model.Discussion{Title: "Best CRM?"})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTemplateComposer_BadTemplate(t *testing.T) {
	c := testCampaign()
	c.ReplyTemplate = "{{.Nope"
	if _, err := (TemplateComposer{}).Compose(context.Background(), c, &model.Discussion{}); err == nil {
		t.Error("expected parse error")
	}
}

func TestAIComposer(t *testing.T) {
	fallback, _ := TemplateComposer{}.Compose(context.Background(), testCampaign(), &model.Discussion{})

	tests := []struct {
		name          string
		quotaErr      error
		drafter       *fakeDrafter
		want          string
		wantExhausted bool
	}{
		{"ai reply", nil, &fakeDrafter{text: "Acme handled this for us."}, "Acme handled this for us.", false},
		{"quota closed", quota.ErrQuotaExceeded, &fakeDrafter{text: "unused"}, fallback, false},
		{"service over quota", nil, &fakeDrafter{err: fmt.Errorf("429: %w", quota.ErrQuotaExceeded)}, fallback, true},
		{"service down", nil, &fakeDrafter{err: errors.New("dial tcp: refused")}, fallback, false},
		{"blank reply", nil, &fakeDrafter{text: "   "}, fallback, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuota{err: tt.quotaErr}
			got, err := NewAIComposer(tt.drafter, q).Compose(context.Background(), testCampaign(), &model.Discussion{ID: "d1"})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if q.exhausted != tt.wantExhausted {
				t.Errorf("expected exhausted=%v", tt.wantExhausted)
			}
		})
	}
}
