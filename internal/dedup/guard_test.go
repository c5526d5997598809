package dedup

import (
	"context"
	"testing"

	"ThreadSentinel/internal/model"
)

type memLedger struct {
	rows map[[2]string]*model.PostedRecord
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[[2]string]*model.PostedRecord)}
}

func (m *memLedger) HasPosted(_ context.Context, campaignID, discussionID string) (bool, error) {
	_, ok := m.rows[[2]string{campaignID, discussionID}]
	return ok, nil
}

func (m *memLedger) InsertPosted(_ context.Context, rec *model.PostedRecord) (bool, error) {
	key := [2]string{rec.CampaignID, rec.DiscussionID}
	if _, ok := m.rows[key]; ok {
		return false, nil
	}
	cp := *rec
	m.rows[key] = &cp
	return true, nil
}

func TestRecord_DuplicateIsNoop(t *testing.T) {
	ledger := newMemLedger()
	g := NewGuard(ledger)
	ctx := context.Background()

	first := &model.PostedRecord{CampaignID: "c1", DiscussionID: "d1", PostedText: "first", Score: 80}
	if err := g.Record(ctx, first); err != nil {
		t.Fatal(err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Errorf("expected id and timestamp filled, got %+v", first)
	}
	if err := g.Record(ctx, &model.PostedRecord{CampaignID: "c1", DiscussionID: "d1", PostedText: "second"}); err != nil {
		t.Fatalf("duplicate insert must succeed, got %v", err)
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(ledger.rows))
	}
	if got := ledger.rows[[2]string{"c1", "d1"}].PostedText; got != "first" {
		t.Errorf("duplicate must not overwrite, got %q", got)
	}
}

func TestHasPosted_ScopedToCampaign(t *testing.T) {
	g := NewGuard(newMemLedger())
	ctx := context.Background()
	if err := g.Record(ctx, &model.PostedRecord{CampaignID: "c1", DiscussionID: "d1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		campaign, discussion string
		want                 bool
	}{
		{"c1", "d1", true},
		{"c2", "d1", false},
		{"c1", "d2", false},
	}
	for _, tt := range tests {
		got, err := g.HasPosted(ctx, tt.campaign, tt.discussion)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("HasPosted(%s, %s) = %v, want %v", tt.campaign, tt.discussion, got, tt.want)
		}
	}
}

func TestFilterNew(t *testing.T) {
	g := NewGuard(newMemLedger())
	ctx := context.Background()
	_ = g.Record(ctx, &model.PostedRecord{CampaignID: "c1", DiscussionID: "b"})

	in := []*model.Discussion{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, err := g.FilterNew(ctx, "c1", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Errorf("expected [a c], got %v", ids(out))
	}
}

func TestRecord_RequiresKeys(t *testing.T) {
	if err := NewGuard(newMemLedger()).Record(context.Background(), &model.PostedRecord{CampaignID: "c1"}); err == nil {
		t.Error("expected error for missing discussion id")
	}
}

func ids(ds []*model.Discussion) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
