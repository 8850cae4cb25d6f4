package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rcliao/vouchbot/internal/model"
)

// MarshalPairs encodes entries as a JSON array of [user_id, count] pairs,
// sorted by user id so repeated saves of the same mapping are byte-identical.
func MarshalPairs(entries []model.Entry) ([]byte, error) {
	sorted := make([]model.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })

	pairs := make([][2]any, len(sorted))
	for i, e := range sorted {
		pairs[i] = [2]any{e.UserID, e.Count}
	}
	return json.Marshal(pairs)
}

// UnmarshalPairs decodes the [user_id, count] pair format. Later duplicates of
// a user id win.
func UnmarshalPairs(data []byte) ([]model.Entry, error) {
	var raw [][2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode pairs: %w", err)
	}

	index := make(map[model.UserID]int, len(raw))
	var entries []model.Entry
	for i, p := range raw {
		var id string
		if err := json.Unmarshal(p[0], &id); err != nil {
			return nil, fmt.Errorf("pair %d: user id: %w", i, err)
		}
		var count int
		if err := json.Unmarshal(p[1], &count); err != nil {
			return nil, fmt.Errorf("pair %d: count: %w", i, err)
		}
		if id == "" {
			return nil, fmt.Errorf("pair %d: empty user id", i)
		}
		if count < 0 {
			return nil, fmt.Errorf("pair %d: negative count %d", i, count)
		}
		if at, ok := index[id]; ok {
			entries[at].Count = count
			continue
		}
		index[id] = len(entries)
		entries = append(entries, model.Entry{UserID: id, Count: count})
	}
	return entries, nil
}

// Import writes entries into s. With merge, counts are added to the existing
// ones; otherwise the imported mapping replaces the store. Returns the number
// of entries imported.
func Import(ctx context.Context, s Store, entries []model.Entry, merge bool) (int, error) {
	next := entries
	if merge {
		existing, err := s.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("load: %w", err)
		}
		counts := make(map[model.UserID]int, len(existing)+len(entries))
		var order []model.UserID
		for _, e := range existing {
			if _, ok := counts[e.UserID]; !ok {
				order = append(order, e.UserID)
			}
			counts[e.UserID] = e.Count
		}
		for _, e := range entries {
			if _, ok := counts[e.UserID]; !ok {
				order = append(order, e.UserID)
			}
			counts[e.UserID] += e.Count
		}
		next = make([]model.Entry, 0, len(order))
		for _, id := range order {
			next = append(next, model.Entry{UserID: id, Count: counts[id]})
		}
	}

	if err := s.Save(ctx, next); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}

	if j, ok := s.(Journal); ok {
		events := make([]model.Event, 0, len(entries))
		for _, e := range entries {
			events = append(events, model.Event{UserID: e.UserID, Delta: e.Count, Reason: model.ReasonImport})
		}
		if err := j.Append(ctx, events...); err != nil {
			return len(entries), fmt.Errorf("journal: %w", err)
		}
	}
	return len(entries), nil
}
