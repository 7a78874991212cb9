package models

import "time"

type WatchlistItem struct {
	Ticker  string    `json:"ticker"`
	Notes   string    `json:"notes,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Watchlist is a user's named list of tracked pairs.
type Watchlist struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsDefault   bool            `json:"is_default"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []WatchlistItem `json:"items"`
}

// Tickers returns the tracked symbols in insertion order.
func (w *Watchlist) Tickers() []string {
	out := make([]string, 0, len(w.Items))
	for _, it := range w.Items {
		out = append(out, it.Ticker)
	}
	return out
}
