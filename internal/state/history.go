package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

// RecordQuery appends a history entry and sets its id.
func (s *SQLiteStore) RecordQuery(ctx context.Context, h *core.QueryHistory) error {
	if err := s.ready(); err != nil {
		return err
	}

	var errMsg any
	if h.ErrorMessage != "" {
		errMsg = h.ErrorMessage
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history (connection_id, sql_text, executed_at, execution_time_ms, row_count, is_success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ConnectionID, h.SQLText, h.ExecutedAt, h.ExecutionTimeMs, h.RowCount, h.Success, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read history id: %w", err)
	}
	h.ID = id
	return nil
}

// ListHistory returns up to limit entries, newest first.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]core.QueryHistory, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, connection_id, sql_text, executed_at, execution_time_ms, row_count, is_success, error_message, is_favorite
		FROM query_history
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	out := []core.QueryHistory{}
	for rows.Next() {
		var (
			h      core.QueryHistory
			connID sql.NullInt64
			errMsg sql.NullString
		)
		if err := rows.Scan(&h.ID, &connID, &h.SQLText, &h.ExecutedAt, &h.ExecutionTimeMs,
			&h.RowCount, &h.Success, &errMsg, &h.Favorite); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		if connID.Valid {
			id := connID.Int64
			h.ConnectionID = &id
		}
		h.ErrorMessage = errMsg.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// ToggleFavorite flips the favorite flag of a history entry and returns
// the new value.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	var favorite bool
	err := s.db.QueryRowContext(ctx,
		`UPDATE query_history SET is_favorite = NOT is_favorite WHERE id = ? RETURNING is_favorite`, id,
	).Scan(&favorite)
	if errors.Is(err, sql.ErrNoRows) {
		return false, qerr.Newf(qerr.CodeNotFound, "history entry %d not found", id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorite, nil
}

// ClearHistory deletes history entries, sparing favorites when
// keepFavorites is set, and returns how many were removed.
func (s *SQLiteStore) ClearHistory(ctx context.Context, keepFavorites bool) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	query := `DELETE FROM query_history`
	if keepFavorites {
		query += ` WHERE is_favorite = 0`
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
