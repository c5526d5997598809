package main

import (
	"context"
	"errors"
	"log"

	"ThreadSentinel/internal/config"
	"ThreadSentinel/internal/model"
	"ThreadSentinel/internal/store"
)

// applySeed upserts the declared accounts and campaigns. Existing rows keep
// their cooldowns, counters and schedules.
func applySeed(ctx context.Context, st *store.SQLiteStore, seed *config.Seed) error {
	for _, sa := range seed.Accounts {
		_, err := st.UpdateAccount(ctx, sa.ID, func(a *model.Account) error {
			sa.Apply(a)
			return nil
		})
		if errors.Is(err, store.ErrNotFound) {
			err = st.SaveAccount(ctx, sa.NewAccount())
		}
		if err != nil {
			return err
		}
	}
	for _, sc := range seed.Campaigns {
		_, err := st.UpdateCampaign(ctx, sc.ID, func(c *model.Campaign) error {
			sc.Apply(c)
			return nil
		})
		if errors.Is(err, store.ErrNotFound) {
			err = st.SaveCampaign(ctx, sc.NewCampaign())
		}
		if err != nil {
			return err
		}
	}
	log.Printf("[INFO] seed applied: %d account(s), %d campaign(s)", len(seed.Accounts), len(seed.Campaigns))
	return nil
}
