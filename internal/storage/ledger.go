package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kelsos/weave-sweep/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Transfer is one recorded broadcast attempt
type Transfer struct {
	ID        int64
	RunID     string
	CreatedAt time.Time
	Family    models.ChainFamily
	Name      string
	Address   string
	Recipient string
	Denom     string
	Amount    string
	Success   bool
	TxHash    string
	Height    int64
	Error     string
}

// Ledger keeps the history of transfer attempts in SQLite
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the ledger database and migrates it
func OpenLedger(ctx context.Context, dbPath string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// migrate runs the embedded scripts in file name order
func (l *Ledger) migrate(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := migrationFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := l.db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// Record appends a transfer attempt
func (l *Ledger) Record(ctx context.Context, t Transfer) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	success := 0
	if t.Success {
		success = 1
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO transfers(run_id, created_at, family, name, address, recipient, denom, amount, success, tx_hash, height, error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.RunID, t.CreatedAt.Unix(), string(t.Family), t.Name, t.Address, t.Recipient, t.Denom, t.Amount,
		success, nullIfEmpty(t.TxHash), t.Height, nullIfEmpty(t.Error))
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// Recent returns the latest transfer attempts, newest first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Transfer, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, created_at, family, name, address, recipient, denom, amount, success,
			COALESCE(tx_hash, ''), COALESCE(height, 0), COALESCE(error, '')
		FROM transfers
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		var createdAt int64
		var family string
		var success int
		if err := rows.Scan(&t.ID, &t.RunID, &createdAt, &family, &t.Name, &t.Address, &t.Recipient,
			&t.Denom, &t.Amount, &success, &t.TxHash, &t.Height, &t.Error); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		t.Family = models.ChainFamily(family)
		t.Success = success == 1
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
