package cms_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BiomeFund/biomebridge-go/cms"
	"github.com/BiomeFund/biomebridge-go/models"
	"github.com/BiomeFund/biomebridge-go/testutil"
)

func newTestClient(t *testing.T) (*cms.Client, *testutil.FakeBackend) {
	t.Helper()
	backend := testutil.NewFakeBackend(t)
	srv := backend.Server()
	return cms.NewClient(srv.URL, testutil.Token, 5*time.Second), backend
}

func TestFindFirstMissAndHit(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	var user models.User
	found, err := client.FindFirst(ctx, "users", "email", "$eq", "a@x.com", &user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected miss on empty backend")
	}

	backend.Seed("users", map[string]any{"email": "a@x.com", "username": "ada"})
	found, err = client.FindFirst(ctx, "users", "email", "$eq", "a@x.com", &user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || user.Email != "a@x.com" || user.ID == 0 {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestFindFirstCaseInsensitive(t *testing.T) {
	client, backend := newTestClient(t)
	backend.Seed("biomes", map[string]any{"name": "Forest", "totalDonated": 0})

	var biome models.Biome
	found, err := client.FindFirst(context.Background(), "biomes", "name", "$eqi", "fOrEsT", &biome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || biome.Name != "Forest" {
		t.Fatalf("case-insensitive lookup failed: %+v", biome)
	}
}

func TestCreateAndUpdate(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	var biome models.Biome
	err := client.Create(ctx, "biomes", map[string]any{"name": "Forest", "totalDonated": 0}, &biome)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if biome.ID == 0 {
		t.Fatal("expected created id")
	}

	if err := client.Update(ctx, "biomes", biome.ID, map[string]any{"totalDonated": 50.0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := backend.First("biomes")["totalDonated"]; got != 50.0 {
		t.Fatalf("update not applied, totalDonated=%v", got)
	}
}

func TestBackendErrorSurfacesDetail(t *testing.T) {
	client, backend := newTestClient(t)
	backend.FailOn("", "/api/donations")

	err := client.Create(context.Background(), "donations", map[string]any{"amount": 1}, nil)
	var berr *cms.BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if berr.StatusCode != 500 || berr.Detail != "simulated backend failure" {
		t.Fatalf("unexpected backend error: %+v", berr)
	}
}

func TestUnreachableBackend(t *testing.T) {
	client := cms.NewClient("http://127.0.0.1:1", testutil.Token, time.Second)
	var user models.User
	_, err := client.FindFirst(context.Background(), "users", "email", "$eq", "a@x.com", &user)
	var berr *cms.BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if berr.StatusCode != 0 {
		t.Fatalf("expected status 0 for transport failure, got %d", berr.StatusCode)
	}
}
