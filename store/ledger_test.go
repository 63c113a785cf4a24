package store_test

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BiomeFund/biomebridge-go/models"
	"github.com/BiomeFund/biomebridge-go/store"
)

func newTestLedger(t *testing.T) *store.Ledger {
	t.Helper()
	dir := t.TempDir()
	ledger, err := store.Open(store.Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to open test ledger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestSeenEmpty(t *testing.T) {
	ledger := newTestLedger(t)
	seen, err := ledger.Seen(context.Background(), "pf-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("expected unseen payment id on fresh ledger")
	}
}

func TestMarkThenSeen(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	n := &models.DonationNotification{
		PaymentID:   "pf-2",
		Email:       "a@x.com",
		AmountGross: 50,
		BiomeName:   "Forest",
	}
	if err := ledger.Mark(ctx, n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := ledger.Seen(ctx, "pf-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("expected payment id to be seen after mark")
	}

	seen, err = ledger.Seen(ctx, "pf-other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("unrelated payment id should not be seen")
	}
}

func TestMarkIsIdempotent(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	n := &models.DonationNotification{PaymentID: "pf-3", Email: "a@x.com"}
	if err := ledger.Mark(ctx, n); err != nil {
		t.Fatalf("unexpected error on first mark: %v", err)
	}
	if err := ledger.Mark(ctx, n); err != nil {
		t.Fatalf("unexpected error on duplicate mark: %v", err)
	}
}

func TestLedgerFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	ledger, err := store.Open(store.Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ledger.Close()
	if ledger.ConnectionInfo() != "sqlite (local)" {
		t.Fatalf("expected local sqlite, got %s", ledger.ConnectionInfo())
	}
}

func TestUnreachableRemoteFallsBackWithNotice(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	ledger, err := store.Open(store.Config{
		URL:       "http://127.0.0.1:1",
		AuthToken: "token",
		Path:      filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ledger.Close()

	if ledger.ConnectionInfo() != "sqlite (local)" {
		t.Fatalf("expected fallback to local sqlite, got %s", ledger.ConnectionInfo())
	}
	if !strings.Contains(buf.String(), "falling back to local SQLite") {
		t.Fatalf("expected fallback notice in log, got %q", buf.String())
	}
}
