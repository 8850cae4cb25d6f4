package store

import (
	"context"
	"os"
	"sort"

	"github.com/rcliao/vouchbot/internal/model"
)

// Stats holds counter statistics.
type Stats struct {
	Backend     string      `json:"backend"`
	Path        string      `json:"path"`
	SizeBytes   int64       `json:"size_bytes"`
	Users       int         `json:"users"`
	TotalVouch  int         `json:"total_vouches"`
	MaxCount    int         `json:"max_count"`
	Untiered    int         `json:"untiered"`
	Tiers       []TierStats `json:"tiers"`
	JournalSize int         `json:"journal_events,omitempty"`
}

// TierStats holds the number of users whose count lands on a tier.
type TierStats struct {
	RoleID   model.RoleID `json:"role_id"`
	Name     string       `json:"name"`
	Required int          `json:"required"`
	Users    int          `json:"users"`
}

// ComputeStats returns statistics for the store at path. Tier membership is
// derived from counts against ladder, not from platform role state.
func ComputeStats(ctx context.Context, s Store, backend, path string, ladder model.Ladder) (*Stats, error) {
	st := &Stats{Backend: backend, Path: path}

	if info, err := os.Stat(path); err == nil {
		st.SizeBytes = info.Size()
	}

	entries, err := s.Load(ctx)
	if err != nil {
		return st, err
	}

	st.Tiers = make([]TierStats, len(ladder))
	for i, t := range ladder {
		st.Tiers[i] = TierStats{RoleID: t.RoleID, Name: t.Name, Required: t.Required}
	}

	for _, e := range entries {
		st.Users++
		st.TotalVouch += e.Count
		if e.Count > st.MaxCount {
			st.MaxCount = e.Count
		}
		at := ladder.Index(e.Count)
		if at < 0 {
			st.Untiered++
			continue
		}
		st.Tiers[at].Users++
	}

	if sq, ok := s.(*SQLiteStore); ok {
		sq.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vouch_events`).Scan(&st.JournalSize)
	}

	return st, nil
}

// Sorted returns entries ordered by count descending, then user id.
func Sorted(entries []model.Entry) []model.Entry {
	out := make([]model.Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
