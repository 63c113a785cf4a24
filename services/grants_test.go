package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/services"
	"github.com/BiomeFund/biomebridge-go/testutil"
)

func newTestEvaluator(t *testing.T, backend *testutil.FakeBackend) *services.GrantEvaluator {
	t.Helper()
	srv := backend.Server()
	return services.NewGrantEvaluator(cms.NewClient(srv.URL, testutil.Token, 5*time.Second))
}

func seedCards(backend *testutil.FakeBackend) (bronze, silver int) {
	bronze = backend.Seed("cards", map[string]any{"name": "Bronze", "pointsRequired": 10})
	silver = backend.Seed("cards", map[string]any{"name": "Silver", "pointsRequired": 100})
	return bronze, silver
}

func TestGrantsAwardedAtThreshold(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	bronze, _ := seedCards(backend)
	g := newTestEvaluator(t, backend)

	granted, err := g.EvaluateGrants(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(granted) != 1 || granted[0] != bronze {
		t.Fatalf("expected bronze only, got %v", granted)
	}
	if got := backend.Count("cards-collecteds"); got != 1 {
		t.Fatalf("expected 1 grant record, got %d", got)
	}
}

func TestGrantsBelowThreshold(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	seedCards(backend)
	g := newTestEvaluator(t, backend)

	granted, err := g.EvaluateGrants(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(granted) != 0 {
		t.Fatalf("expected no grants below threshold, got %v", granted)
	}
}

func TestReEvaluationOnlyAddsGrants(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	_, silver := seedCards(backend)
	g := newTestEvaluator(t, backend)
	ctx := context.Background()

	if _, err := g.EvaluateGrants(ctx, 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	granted, err := g.EvaluateGrants(ctx, 1, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(granted) != 1 || granted[0] != silver {
		t.Fatalf("expected silver only on re-evaluation, got %v", granted)
	}
	if got := backend.Count("cards-collecteds"); got != 2 {
		t.Fatalf("expected 2 grant records, got %d", got)
	}

	// A third pass with the same total must be a no-op.
	granted, err = g.EvaluateGrants(ctx, 1, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(granted) != 0 {
		t.Fatalf("expected no new grants, got %v", granted)
	}
	if got := backend.Count("cards-collecteds"); got != 2 {
		t.Fatalf("grant must not be duplicated, got %d records", got)
	}
}

func TestGrantsAreScopedPerUser(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	bronze, _ := seedCards(backend)
	g := newTestEvaluator(t, backend)
	ctx := context.Background()

	if _, err := g.EvaluateGrants(ctx, 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	granted, err := g.EvaluateGrants(ctx, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(granted) != 1 || granted[0] != bronze {
		t.Fatalf("expected bronze for second user, got %v", granted)
	}
	if got := backend.Count("cards-collecteds"); got != 2 {
		t.Fatalf("expected one grant per user, got %d", got)
	}
}

func TestPipelineGrantsCardsFromCumulativePoints(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	bronze, silver := seedCards(backend)
	p := newTestPipeline(t, backend, services.PipelineOptions{CreateMissingBiomes: true})
	ctx := context.Background()

	result, err := p.Process(ctx, firstDonation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.GrantedCards) != 1 || result.GrantedCards[0] != bronze {
		t.Fatalf("expected bronze granted, got %v", result.GrantedCards)
	}

	second := firstDonation()
	second["custom_int1"] = "90"
	second["pf_payment_id"] = "pf-2"
	result, err = p.Process(ctx, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.GrantedCards) != 1 || result.GrantedCards[0] != silver {
		t.Fatalf("expected silver granted at 100 points, got %v", result.GrantedCards)
	}
	if got := backend.Count("cards-collecteds"); got != 2 {
		t.Fatalf("expected 2 grants total, got %d", got)
	}
}
