package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/recipient"
)

// SyncResult summarizes one re-detection pass.
type SyncResult struct {
	Created int
	Updated int
	Skipped int // manually-overridden groups left untouched
	Deleted int
}

// Sync re-runs detection for an account and reconciles the result with the
// stored groups. Stored and detected groups are keyed by (normalized
// recipient, amount rounded to whole currency units): matches update in
// place, manually-overridden groups are skipped, and stored non-overridden
// groups with no detected counterpart are deleted. The group-to-row link
// table is rewritten for every created or updated group.
func (d *Detector) Sync(ctx context.Context, accountID uuid.UUID, now time.Time) (SyncResult, error) {
	var res SyncResult

	detections, err := d.Detect(ctx, accountID, now)
	if err != nil {
		return res, err
	}

	stored, err := d.groups.ListRecurringGroups(ctx, accountID)
	if err != nil {
		return res, fmt.Errorf("listing stored groups: %w", err)
	}

	storedByKey := make(map[string]int, len(stored))
	for i, g := range stored {
		storedByKey[groupKey(g.Recipient, g.AverageAmount.Round(0).String())] = i
	}

	matched := make(map[int]bool, len(stored))
	for _, det := range detections {
		key := groupKey(det.Group.Recipient, det.Group.AverageAmount.Round(0).String())
		idx, ok := storedByKey[key]
		if ok && !matched[idx] {
			matched[idx] = true
			existing := stored[idx]
			if existing.ManualOverride {
				res.Skipped++
				continue
			}
			updated := det.Group
			updated.ID = existing.ID
			updated.ManualOverride = false
			if err := d.groups.UpdateRecurringGroup(ctx, &updated); err != nil {
				return res, fmt.Errorf("updating group: %w", err)
			}
			if err := d.groups.SetRecurringMembers(ctx, existing.ID, det.TransactionIDs); err != nil {
				return res, fmt.Errorf("linking group rows: %w", err)
			}
			res.Updated++
			continue
		}

		g := det.Group
		if err := d.groups.CreateRecurringGroup(ctx, &g); err != nil {
			return res, fmt.Errorf("creating group: %w", err)
		}
		if err := d.groups.SetRecurringMembers(ctx, g.ID, det.TransactionIDs); err != nil {
			return res, fmt.Errorf("linking group rows: %w", err)
		}
		res.Created++
	}

	for i, g := range stored {
		if matched[i] {
			continue
		}
		if g.ManualOverride {
			res.Skipped++
			continue
		}
		if err := d.groups.DeleteRecurringGroup(ctx, g.ID); err != nil {
			return res, fmt.Errorf("deleting stale group: %w", err)
		}
		res.Deleted++
	}
	return res, nil
}

func groupKey(rawRecipient, roundedAmount string) string {
	return recipient.Normalize(rawRecipient) + "\x00" + roundedAmount
}
