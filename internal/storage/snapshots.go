package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/mtg-commander/internal/remote"
)

const focusKey = "active_deck_id"

// Snapshot is one cached deck as last reported by the service.
type Snapshot struct {
	Deck       remote.Deck
	Validation *remote.ValidationResult
	UpdatedAt  time.Time
}

// SnapshotStore reads and writes cached deck snapshots.
type SnapshotStore struct {
	db  *DB
	now func() time.Time
}

// NewSnapshotStore creates a store on db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db, now: time.Now}
}

// ReplaceAll swaps the cached decks for decks, keeping their order.
func (s *SnapshotStore) ReplaceAll(ctx context.Context, decks []Snapshot) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM deck_snapshots`); err != nil {
			return fmt.Errorf("failed to clear snapshots: %w", err)
		}
		for i, snap := range decks {
			if err := s.insert(ctx, tx, snap, i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put stores snap. A new deck goes in front of every cached deck; an existing
// deck keeps its position.
func (s *SnapshotStore) Put(ctx context.Context, snap Snapshot) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		payload, validation, err := encode(snap)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE deck_snapshots SET payload = ?, validation = ?, updated_at = ? WHERE id = ?`,
			payload, validation, s.now().UTC(), snap.Deck.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update snapshot: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}

		var front sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MIN(position) FROM deck_snapshots`).Scan(&front); err != nil {
			return fmt.Errorf("failed to read positions: %w", err)
		}
		position := 0
		if front.Valid {
			position = int(front.Int64) - 1
		}
		return s.insert(ctx, tx, snap, position)
	})
}

// Delete removes the cached deck with id.
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.conn.ExecContext(ctx, `DELETE FROM deck_snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// LoadAll returns the cached decks, newest first.
func (s *SnapshotStore) LoadAll(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT payload, validation, updated_at FROM deck_snapshots ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var (
			payload    string
			validation sql.NullString
			snap       Snapshot
		)
		if err := rows.Scan(&payload, &validation, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &snap.Deck); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		if validation.Valid {
			var v remote.ValidationResult
			if err := json.Unmarshal([]byte(validation.String), &v); err != nil {
				return nil, fmt.Errorf("failed to decode validation: %w", err)
			}
			snap.Validation = &v
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SaveFocus records the active deck id; empty clears it.
func (s *SnapshotStore) SaveFocus(ctx context.Context, deckID string) error {
	if deckID == "" {
		_, err := s.db.conn.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, focusKey)
		if err != nil {
			return fmt.Errorf("failed to clear focus: %w", err)
		}
		return nil
	}

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, focusKey, deckID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save focus: %w", err)
	}
	return nil
}

// LoadFocus returns the recorded active deck id, or "".
func (s *SnapshotStore) LoadFocus(ctx context.Context) (string, error) {
	var id string
	err := s.db.conn.QueryRowContext(ctx, `SELECT value FROM session_state WHERE key = ?`, focusKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load focus: %w", err)
	}
	return id, nil
}

func (s *SnapshotStore) insert(ctx context.Context, tx *sql.Tx, snap Snapshot, position int) error {
	payload, validation, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO deck_snapshots (id, position, payload, validation, updated_at) VALUES (?, ?, ?, ?, ?)`,
		snap.Deck.ID, position, payload, validation, s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", snap.Deck.ID, err)
	}
	return nil
}

func encode(snap Snapshot) (string, sql.NullString, error) {
	payload, err := json.Marshal(snap.Deck)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("failed to encode deck: %w", err)
	}
	if snap.Validation == nil {
		return string(payload), sql.NullString{}, nil
	}
	v, err := json.Marshal(snap.Validation)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("failed to encode validation: %w", err)
	}
	return string(payload), sql.NullString{String: string(v), Valid: true}, nil
}
