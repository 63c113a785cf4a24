package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/models"
	"github.com/BiomeFund/biomebridge-go/utils"
)

// ErrUnknownBiome is returned by ResolveBiome when the biome does not exist
// and the policy forbids creating it.
var ErrUnknownBiome = errors.New("biome not found")

// Resolver performs find-by-natural-key-or-create against the backend for
// each entity the pipeline touches. The find and the create are two separate
// backend calls; a concurrent notification for the same key can still create
// a duplicate between them. Redelivery is safe because a retry finds what
// the first attempt created.
type Resolver struct {
	backend *cms.Client
}

func NewResolver(backend *cms.Client) *Resolver {
	return &Resolver{backend: backend}
}

// ResolveUser finds the user by email or creates one with a generated
// credential. The credential is random and never used by this system again;
// the backend owns authentication.
func (r *Resolver) ResolveUser(ctx context.Context, n *models.DonationNotification) (models.User, bool, error) {
	var user models.User
	found, err := r.backend.FindFirst(ctx, "users", "email", "$eq", n.Email, &user)
	if err != nil {
		return models.User{}, false, fmt.Errorf("user lookup failed: %w", err)
	}
	if found {
		return user, true, nil
	}

	password, err := utils.GenerateSecureToken(24)
	if err != nil {
		return models.User{}, false, fmt.Errorf("failed to generate user credential: %w", err)
	}

	username := n.FirstName
	if username == "" {
		username = n.Email
	}
	attrs := map[string]any{
		"email":    n.Email,
		"username": username,
		"password": password,
	}
	if err := r.backend.Create(ctx, "users", attrs, &user); err != nil {
		return models.User{}, false, fmt.Errorf("user create failed: %w", err)
	}
	return user, false, nil
}

// ResolveProfile finds the user's profile or creates one with zero totals,
// leaving the Aggregator as the only writer of totals. The returned snapshot
// is the one the Aggregator accumulates onto.
func (r *Resolver) ResolveProfile(ctx context.Context, userID int) (models.UserProfile, bool, error) {
	var profile models.UserProfile
	found, err := r.backend.FindFirst(ctx, "user-profiles", "user", "$eq", strconv.Itoa(userID), &profile)
	if err != nil {
		return models.UserProfile{}, false, fmt.Errorf("profile lookup failed: %w", err)
	}
	if found {
		return profile, true, nil
	}

	attrs := map[string]any{
		"user":          userID,
		"amountDonated": 0,
		"totalPoints":   0,
	}
	if err := r.backend.Create(ctx, "user-profiles", attrs, &profile); err != nil {
		return models.UserProfile{}, false, fmt.Errorf("profile create failed: %w", err)
	}
	profile.User = userID
	return profile, false, nil
}

// ResolveBiome finds the biome by case-insensitive trimmed name. When
// nothing matches, createIfMissing decides between creating it and
// ErrUnknownBiome.
func (r *Resolver) ResolveBiome(ctx context.Context, name string, createIfMissing bool) (models.Biome, bool, error) {
	canonical := strings.TrimSpace(name)

	var biome models.Biome
	found, err := r.backend.FindFirst(ctx, "biomes", "name", "$eqi", canonical, &biome)
	if err != nil {
		return models.Biome{}, false, fmt.Errorf("biome lookup failed: %w", err)
	}
	if found {
		return biome, true, nil
	}
	if !createIfMissing {
		return models.Biome{}, false, fmt.Errorf("%w: %q", ErrUnknownBiome, canonical)
	}

	attrs := map[string]any{
		"name":         canonical,
		"totalDonated": 0,
	}
	if err := r.backend.Create(ctx, "biomes", attrs, &biome); err != nil {
		return models.Biome{}, false, fmt.Errorf("biome create failed: %w", err)
	}
	return biome, false, nil
}
