package services

import (
	"context"
	"fmt"

	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/models"
)

const dateFormat = "2006-01-02"

// Aggregator maintains the running totals on profiles and biomes.
//
// The backend's update API accepts absolute values only, so every
// accumulation is a read-modify-write: the delta is added to the snapshot the
// Resolver just returned (not a fresh read) and the sum is written back. Two
// concurrent notifications for the same profile or biome can both read the
// same "before" totals and one delta is silently lost. Closing that requires
// serializing notifications per natural key upstream, an atomic-increment
// verb on the backend, or a conditional write keyed on a version column --
// any of which lands at this seam only.
type Aggregator struct {
	backend *cms.Client
}

func NewAggregator(backend *cms.Client) *Aggregator {
	return &Aggregator{backend: backend}
}

// AccumulateProfile adds the notification's amount and points to the profile
// snapshot, overwrites the most-recent fields, persists the absolute result
// and returns the new snapshot.
func (a *Aggregator) AccumulateProfile(ctx context.Context, profile models.UserProfile, n *models.DonationNotification) (models.UserProfile, error) {
	profile.AmountDonated += n.AmountGross
	profile.TotalPoints += n.PointsEarned
	profile.Token = n.GatewayToken
	profile.FriendName = n.FriendName
	profile.FriendEmail = n.FriendEmail
	profile.BillingDate = n.BillingDate.Format(dateFormat)

	attrs := map[string]any{
		"amountDonated": profile.AmountDonated,
		"totalPoints":   profile.TotalPoints,
		"token":         profile.Token,
		"friendName":    profile.FriendName,
		"friendEmail":   profile.FriendEmail,
		"billingDate":   profile.BillingDate,
	}
	if err := a.backend.Update(ctx, "user-profiles", profile.ID, attrs); err != nil {
		return models.UserProfile{}, fmt.Errorf("profile update failed: %w", err)
	}
	return profile, nil
}

// AccumulateBiome adds the donation amount to the biome's running total and
// persists the absolute result.
func (a *Aggregator) AccumulateBiome(ctx context.Context, biome models.Biome, amount float64) (models.Biome, error) {
	biome.TotalDonated += amount

	attrs := map[string]any{
		"totalDonated": biome.TotalDonated,
	}
	if err := a.backend.Update(ctx, "biomes", biome.ID, attrs); err != nil {
		return models.Biome{}, fmt.Errorf("biome update failed: %w", err)
	}
	return biome, nil
}
