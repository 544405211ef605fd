package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore holds the materialised tip index. Every row is derived from the
// node's event feed; the node remains the source of truth.
type SQLiteStore struct {
	db *sql.DB
}

// ErrNoSuchCreator is returned for per-creator queries against an address the
// indexer has never seen register.
var ErrNoSuchCreator = errors.New("tipindexd: creator not indexed")

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS creators (
            address TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            category TEXT,
            first_seen TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS tips (
            id TEXT PRIMARY KEY,
            creator TEXT NOT NULL,
            supporter TEXT NOT NULL,
            amount TEXT NOT NULL,
            fee TEXT NOT NULL,
            creator_share TEXT NOT NULL,
            collab_share TEXT NOT NULL,
            message TEXT,
            received_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS tips_creator_idx ON tips(creator, received_at);`,
		`CREATE TABLE IF NOT EXISTS badges (
            token_id TEXT PRIMARY KEY,
            creator TEXT NOT NULL,
            supporter TEXT NOT NULL,
            tier INTEGER NOT NULL,
            tier_name TEXT NOT NULL,
            minted_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS cursors (
            name TEXT PRIMARY KEY,
            value INTEGER NOT NULL
        );`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TipRow is one indexed tip.
type TipRow struct {
	ID           string    `json:"id"`
	Creator      string    `json:"creator"`
	Supporter    string    `json:"supporter"`
	Amount       string    `json:"amount"`
	Fee          string    `json:"fee"`
	CreatorShare string    `json:"creatorShare"`
	CollabShare  string    `json:"collabShare"`
	Message      string    `json:"message,omitempty"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// CreatorRow is one indexed creator registration.
type CreatorRow struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	FirstSeen time.Time `json:"firstSeen"`
}

// BadgeRow is one indexed badge mint.
type BadgeRow struct {
	TokenID   string    `json:"tokenId"`
	Creator   string    `json:"creator"`
	Supporter string    `json:"supporter"`
	Tier      uint8     `json:"tier"`
	TierName  string    `json:"tierName"`
	MintedAt  time.Time `json:"mintedAt"`
}

// InsertTip records one accepted tip. The row id is assigned here so replayed
// events never collide with earlier rows.
func (s *SQLiteStore) InsertTip(ctx context.Context, row TipRow) (string, error) {
	if strings.TrimSpace(row.ID) == "" {
		row.ID = uuid.NewString()
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now().UTC()
	}
	const stmt = `INSERT INTO tips (id, creator, supporter, amount, fee, creator_share, collab_share, message, received_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt,
		row.ID, row.Creator, row.Supporter, row.Amount, row.Fee,
		row.CreatorShare, row.CollabShare, row.Message, row.ReceivedAt)
	if err != nil {
		return "", fmt.Errorf("tipindexd: insert tip: %w", err)
	}
	return row.ID, nil
}

// UpsertCreator records a registration, keeping the earliest first_seen when
// the same address reappears after an update event.
func (s *SQLiteStore) UpsertCreator(ctx context.Context, row CreatorRow) error {
	if row.FirstSeen.IsZero() {
		row.FirstSeen = time.Now().UTC()
	}
	const stmt = `INSERT INTO creators (address, name, category, first_seen) VALUES (?, ?, ?, ?)
        ON CONFLICT(address) DO UPDATE SET name = excluded.name, category = excluded.category`
	if _, err := s.db.ExecContext(ctx, stmt, row.Address, row.Name, row.Category, row.FirstSeen); err != nil {
		return fmt.Errorf("tipindexd: upsert creator: %w", err)
	}
	return nil
}

// InsertBadge records a badge mint. Badge token ids are unique on the ledger,
// so a replayed event is simply ignored.
func (s *SQLiteStore) InsertBadge(ctx context.Context, row BadgeRow) error {
	if row.MintedAt.IsZero() {
		row.MintedAt = time.Now().UTC()
	}
	const stmt = `INSERT OR IGNORE INTO badges (token_id, creator, supporter, tier, tier_name, minted_at)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, stmt,
		row.TokenID, row.Creator, row.Supporter, row.Tier, row.TierName, row.MintedAt); err != nil {
		return fmt.Errorf("tipindexd: insert badge: %w", err)
	}
	return nil
}

// ListCreators returns indexed creators ordered by first appearance.
func (s *SQLiteStore) ListCreators(ctx context.Context) ([]CreatorRow, error) {
	const query = `SELECT address, name, IFNULL(category, ''), first_seen FROM creators ORDER BY first_seen ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CreatorRow
	for rows.Next() {
		var row CreatorRow
		if err := rows.Scan(&row.Address, &row.Name, &row.Category, &row.FirstSeen); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListTips returns the most recent tips, optionally filtered by creator.
func (s *SQLiteStore) ListTips(ctx context.Context, creator string, limit int) ([]TipRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, creator, supporter, amount, fee, creator_share, collab_share, IFNULL(message, ''), received_at
        FROM tips`
	args := []interface{}{}
	if strings.TrimSpace(creator) != "" {
		query += ` WHERE creator = ?`
		args = append(args, creator)
	}
	query += ` ORDER BY received_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TipRow
	for rows.Next() {
		var row TipRow
		if err := rows.Scan(&row.ID, &row.Creator, &row.Supporter, &row.Amount, &row.Fee,
			&row.CreatorShare, &row.CollabShare, &row.Message, &row.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AllTips streams every tip row in insertion order, for exports.
func (s *SQLiteStore) AllTips(ctx context.Context) ([]TipRow, error) {
	const query = `SELECT id, creator, supporter, amount, fee, creator_share, collab_share, IFNULL(message, ''), received_at
        FROM tips ORDER BY received_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TipRow
	for rows.Next() {
		var row TipRow
		if err := rows.Scan(&row.ID, &row.Creator, &row.Supporter, &row.Amount, &row.Fee,
			&row.CreatorShare, &row.CollabShare, &row.Message, &row.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListBadges returns the badges minted against one creator.
func (s *SQLiteStore) ListBadges(ctx context.Context, creator string) ([]BadgeRow, error) {
	const query = `SELECT token_id, creator, supporter, tier, tier_name, minted_at
        FROM badges WHERE creator = ? ORDER BY minted_at ASC`
	rows, err := s.db.QueryContext(ctx, query, creator)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BadgeRow
	for rows.Next() {
		var row BadgeRow
		if err := rows.Scan(&row.TokenID, &row.Creator, &row.Supporter, &row.Tier, &row.TierName, &row.MintedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// CreatorTotals aggregates the indexed tips for one creator.
type CreatorTotals struct {
	Creator  string `json:"creator"`
	TipCount uint64 `json:"tipCount"`
	// Gross is the sum of tip amounts as indexed. The node's TipRecord
	// query is authoritative; a mismatch means the indexer missed events.
	Gross string `json:"gross"`
}

// Totals returns per-creator aggregates for the audit endpoint. Amounts are
// summed as integers by SQLite, which is safe up to 2^63; beyond that the
// export path should be used instead.
func (s *SQLiteStore) Totals(ctx context.Context, creator string) (*CreatorTotals, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM creators WHERE address = ?`, creator).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNoSuchCreator
	}
	totals := &CreatorTotals{Creator: creator}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), IFNULL(SUM(CAST(amount AS INTEGER)), 0) FROM tips WHERE creator = ?`, creator).
		Scan(&totals.TipCount, &totals.Gross)
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// BumpCursor advances a named counter (restart-survivable ops bookkeeping,
// e.g. the number of feed events consumed).
func (s *SQLiteStore) BumpCursor(ctx context.Context, name string) error {
	const stmt = `INSERT INTO cursors (name, value) VALUES (?, 1)
        ON CONFLICT(name) DO UPDATE SET value = value + 1`
	_, err := s.db.ExecContext(ctx, stmt, name)
	return err
}

// Cursor reads a named counter, zero when absent.
func (s *SQLiteStore) Cursor(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cursors WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return value, err
}
