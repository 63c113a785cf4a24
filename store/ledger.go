// Package store provides the processed-notification ledger.
//
// The ledger is the fast path of the dedup check: a replayed notification is
// recognized locally before any backend call is made. The backend's own
// Donation records (keyed by gateway payment id) remain the durable source
// of truth; losing the ledger only costs one extra backend lookup per
// replay.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"                      // SQLite driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // libsql driver

	"github.com/BiomeFund/biomebridge-go/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_notifications (
	payment_id   TEXT PRIMARY KEY,
	email        TEXT NOT NULL,
	amount       REAL NOT NULL,
	biome        TEXT NOT NULL,
	processed_at TEXT NOT NULL
);`

// Ledger records which gateway payment ids have completed the pipeline.
type Ledger struct {
	conn      *sql.DB
	useRemote bool
}

// Config selects the ledger backend. A remote libsql URL takes precedence;
// otherwise Path names a local SQLite file.
type Config struct {
	URL       string
	AuthToken string
	Path      string
}

// Open connects to the remote ledger when configured and reachable, falling
// back to local SQLite, and ensures the schema exists.
func Open(config Config) (*Ledger, error) {
	var conn *sql.DB
	var err error
	var useRemote bool

	if config.URL != "" && config.AuthToken != "" {
		connStr := config.URL + "?authToken=" + config.AuthToken
		conn, err = sql.Open("libsql", connStr)
		if err != nil {
			log.Printf("ERROR: Failed to open remote ledger %s: %v, falling back to local SQLite", config.URL, err)
			conn = nil
		} else if pingErr := conn.Ping(); pingErr != nil {
			log.Printf("ERROR: Remote ledger %s unreachable: %v, falling back to local SQLite", config.URL, pingErr)
			conn.Close()
			conn = nil
		} else {
			useRemote = true
		}
	}

	if conn == nil {
		dbDir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}

		conn, err = sql.Open("sqlite3", config.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger database: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ledger database ping failed: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
	}

	return &Ledger{conn: conn, useRemote: useRemote}, nil
}

// Seen reports whether the payment id has already completed the pipeline.
func (l *Ledger) Seen(ctx context.Context, paymentID string) (bool, error) {
	var found int
	err := l.conn.QueryRowContext(ctx,
		"SELECT 1 FROM processed_notifications WHERE payment_id = ?", paymentID).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return true, nil
}

// Mark records a completed notification. Marking the same payment id twice
// is a no-op.
func (l *Ledger) Mark(ctx context.Context, n *models.DonationNotification) error {
	_, err := l.conn.ExecContext(ctx,
		"INSERT OR IGNORE INTO processed_notifications (payment_id, email, amount, biome, processed_at) VALUES (?, ?, ?, ?, ?)",
		n.PaymentID, n.Email, n.AmountGross, n.BiomeName, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ledger mark failed: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (l *Ledger) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}

// ConnectionInfo returns a string describing the ledger backend.
func (l *Ledger) ConnectionInfo() string {
	if l.useRemote {
		return "libsql (remote)"
	}
	return "sqlite (local)"
}
