package seeder

import (
	"context"
	"errors"
	"fmt"

	"apply-codes/internal/domain/email"
	"apply-codes/internal/store"
)

// CampaignSeeder writes one finished campaign with an email log per
// recipient, spread over the delivery statuses.
type CampaignSeeder struct {
	UID string
}

func (CampaignSeeder) Name() string { return "campaign" }

func (c CampaignSeeder) Run(ctx context.Context, s store.Store) error {
	if c.UID == "" {
		return errors.New("uid is required")
	}

	statuses := []email.Status{
		email.StatusDelivered, email.StatusDelivered, email.StatusOpened,
		email.StatusClicked, email.StatusBounced, email.StatusSent,
	}
	campaignID := c.UID + "-demo-campaign"
	stats := map[string]any{}
	for _, st := range statuses {
		n, _ := stats[string(st)].(int)
		stats[string(st)] = n + 1
	}

	err := create(ctx, s, store.CollectionCampaigns, campaignID, map[string]any{
		"user_id":         c.UID,
		"name":            "Demo outreach",
		"status":          "completed",
		"total":           len(statuses),
		"sent":            len(statuses),
		"recipient_count": len(statuses),
		"stats":           stats,
	})
	if err != nil {
		return err
	}

	for i, st := range statuses {
		err := create(ctx, s, store.CollectionEmailLogs, fmt.Sprintf("%s-%d", campaignID, i), map[string]any{
			"user_id":     c.UID,
			"campaign_id": campaignID,
			"to":          []string{fmt.Sprintf("candidate%d@example.com", i+1)},
			"subject":     "A role you might like",
			"status":      string(st),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
