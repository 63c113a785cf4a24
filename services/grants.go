package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/models"
)

// GrantEvaluator derives loyalty-card grants from a user's cumulative point
// total.
type GrantEvaluator struct {
	backend *cms.Client
}

func NewGrantEvaluator(backend *cms.Client) *GrantEvaluator {
	return &GrantEvaluator{backend: backend}
}

// EvaluateGrants grants every card whose threshold the user's cumulative
// points now meet and which the user does not already hold. The evaluation
// is a diff against existing grants, never a blind re-insert, so
// re-evaluating with a higher total only ever adds grants. Returns the ids
// of the cards granted by this call.
func (g *GrantEvaluator) EvaluateGrants(ctx context.Context, userID, cumulativePoints int) ([]int, error) {
	var cards []models.Card
	if err := g.backend.List(ctx, "cards", &cards); err != nil {
		return nil, fmt.Errorf("card list failed: %w", err)
	}

	var existing []models.CardsCollected
	if err := g.backend.FindAll(ctx, "cards-collecteds", "user", strconv.Itoa(userID), &existing); err != nil {
		return nil, fmt.Errorf("grant lookup failed: %w", err)
	}
	held := make(map[int]bool, len(existing))
	for _, grant := range existing {
		held[grant.Card] = true
	}

	var granted []int
	for _, card := range cards {
		if card.PointsRequired > cumulativePoints || held[card.ID] {
			continue
		}
		attrs := map[string]any{
			"user": userID,
			"card": card.ID,
		}
		if err := g.backend.Create(ctx, "cards-collecteds", attrs, nil); err != nil {
			return granted, fmt.Errorf("grant create failed for card %d: %w", card.ID, err)
		}
		granted = append(granted, card.ID)
	}
	return granted, nil
}
