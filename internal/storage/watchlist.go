package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/forexcell/models"
)

var ErrWatchlistExists = errors.New("watchlist already exists")

func (s *Store) CreateWatchlist(ctx context.Context, userID, name, description string, isDefault bool) (*models.Watchlist, error) {
	userID, name = strings.TrimSpace(userID), strings.TrimSpace(name)
	if userID == "" || name == "" {
		return nil, fmt.Errorf("user id and name are required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO watchlists (user_id, name, description, is_default, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, name) DO NOTHING
`, userID, name, description, isDefault, now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("create watchlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrWatchlistExists, name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("watchlist id: %w", err)
	}
	return &models.Watchlist{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Description: description,
		IsDefault:   isDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       []models.WatchlistItem{},
	}, nil
}

// GetWatchlist loads a watchlist with its items, or nil when it does not
// exist.
func (s *Store) GetWatchlist(ctx context.Context, id int64) (*models.Watchlist, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, user_id, name, description, is_default, created_at, updated_at
FROM watchlists
WHERE id = ?
`, id)
	w, err := scanWatchlist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watchlist: %w", err)
	}
	if w.Items, err = s.items(ctx, w.ID); err != nil {
		return nil, err
	}
	return w, nil
}

// ListWatchlists returns the user's watchlists, default first.
func (s *Store) ListWatchlists(ctx context.Context, userID string) ([]*models.Watchlist, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, name, description, is_default, created_at, updated_at
FROM watchlists
WHERE user_id = ?
ORDER BY is_default DESC, name ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}
	var out []*models.Watchlist
	for rows.Next() {
		w, err := scanWatchlist(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		out = append(out, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list watchlists rows: %w", err)
	}
	for _, w := range out {
		if w.Items, err = s.items(ctx, w.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) DeleteWatchlist(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlists WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete watchlist: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddAsset adds ticker to the watchlist. It reports false when the ticker
// is already present.
func (s *Store) AddAsset(ctx context.Context, watchlistID int64, ticker, notes string, tags []string) (bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return false, fmt.Errorf("ticker is required")
	}
	tagsJSON, err := encodeJSON(tags)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `
INSERT INTO watchlist_items (watchlist_id, ticker, notes, tags_json, added_at, seq)
SELECT ?, ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1 FROM watchlist_items WHERE watchlist_id = ?
ON CONFLICT(watchlist_id, ticker) DO NOTHING
`, watchlistID, ticker, notes, tagsJSON, now, watchlistID)
	if err != nil {
		return false, fmt.Errorf("add asset: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.touch(ctx, watchlistID, now)
	}
	return n > 0, nil
}

// RemoveAsset reports whether ticker was present.
func (s *Store) RemoveAsset(ctx context.Context, watchlistID int64, ticker string) (bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist_items WHERE watchlist_id = ? AND ticker = ?`, watchlistID, ticker)
	if err != nil {
		return false, fmt.Errorf("remove asset: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.touch(ctx, watchlistID, time.Now().UTC().Format(timeLayout))
	}
	return n > 0, nil
}

func (s *Store) Tickers(ctx context.Context, watchlistID int64) ([]string, error) {
	items, err := s.items(ctx, watchlistID)
	if err != nil {
		return nil, err
	}
	w := models.Watchlist{Items: items}
	return w.Tickers(), nil
}

func (s *Store) items(ctx context.Context, watchlistID int64) ([]models.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ticker, notes, tags_json, added_at
FROM watchlist_items
WHERE watchlist_id = ?
ORDER BY seq ASC
`, watchlistID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		var (
			it          models.WatchlistItem
			notes, tags sql.NullString
			added       string
		)
		if err := rows.Scan(&it.Ticker, &notes, &tags, &added); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Notes, it.AddedAt = notes.String, parseTime(added)
		if err := decodeJSON(tags, &it.Tags); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items rows: %w", err)
	}
	return items, nil
}

func (s *Store) touch(ctx context.Context, watchlistID int64, now string) {
	_, _ = s.db.ExecContext(ctx, `UPDATE watchlists SET updated_at = ? WHERE id = ?`, now, watchlistID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWatchlist(row scanner) (*models.Watchlist, error) {
	var (
		w                models.Watchlist
		description      sql.NullString
		created, updated string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &description, &w.IsDefault, &created, &updated); err != nil {
		return nil, err
	}
	w.Description = description.String
	w.CreatedAt, w.UpdatedAt = parseTime(created), parseTime(updated)
	return &w, nil
}
