package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ThreadSentinel/internal/model"
)

// Ledger is the append-only posted-record store. InsertPosted must treat a
// duplicate (campaign, discussion) pair as success and report inserted=false.
type Ledger interface {
	HasPosted(ctx context.Context, campaignID, discussionID string) (bool, error)
	InsertPosted(ctx context.Context, rec *model.PostedRecord) (inserted bool, err error)
}

// Guard records and checks (campaign, discussion) pairs already acted upon.
type Guard struct {
	ledger Ledger
	now    func() time.Time
}

// NewGuard creates a Guard over ledger.
func NewGuard(ledger Ledger) *Guard {
	return &Guard{ledger: ledger, now: time.Now}
}

// HasPosted reports whether the campaign already replied to the discussion.
func (g *Guard) HasPosted(ctx context.Context, campaignID, discussionID string) (bool, error) {
	ok, err := g.ledger.HasPosted(ctx, campaignID, discussionID)
	if err != nil {
		return false, fmt.Errorf("check posted %s/%s: %w", campaignID, discussionID, err)
	}
	return ok, nil
}

// Record appends rec to the ledger, filling id and timestamp when empty.
// A duplicate pair is a no-op.
func (g *Guard) Record(ctx context.Context, rec *model.PostedRecord) error {
	if rec.CampaignID == "" || rec.DiscussionID == "" {
		return fmt.Errorf("record posted: campaign and discussion id are required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = g.now().UTC()
	}
	if _, err := g.ledger.InsertPosted(ctx, rec); err != nil {
		return fmt.Errorf("record posted %s/%s: %w", rec.CampaignID, rec.DiscussionID, err)
	}
	return nil
}

// FilterNew drops the discussions the campaign already replied to, preserving order.
func (g *Guard) FilterNew(ctx context.Context, campaignID string, ds []*model.Discussion) ([]*model.Discussion, error) {
	out := make([]*model.Discussion, 0, len(ds))
	for _, d := range ds {
		posted, err := g.HasPosted(ctx, campaignID, d.ID)
		if err != nil {
			return nil, err
		}
		if !posted {
			out = append(out, d)
		}
	}
	return out, nil
}
