package vouch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/vouchbot/internal/model"
)

// Scan defaults.
const (
	DefaultScanLimit = 1000
	DefaultPageSize  = 100
)

// ScanRequest selects what a scan covers.
type ScanRequest struct {
	GuildID model.GuildID
	Channel Channel
	// Target restricts crediting and reconciliation to one user. Empty scans
	// every member.
	Target model.UserID
	// Output receives progress and summary messages. Defaults to Channel.
	Output model.ChannelID
}

// ScanResult summarizes a completed scan.
type ScanResult struct {
	ID            string
	TotalMessages int
	MentionCount  int
	// Changes holds members whose roles the scan touched.
	Changes       []Result
	Outcomes      []Outcome
}

// Scanner walks a bounded window of channel history and credits mentions.
type Scanner struct {
	Service  *Service
	Limit    int
	PageSize int
}

// Scan runs one scan. Failures are reported to the output channel and
// returned; counts persisted before the failure stay.
func (sc *Scanner) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	s := sc.Service
	if req.Output == "" {
		req.Output = req.Channel.ID
	}
	res := &ScanResult{ID: ulid.Make().String()}
	log := s.Log.With("scan", res.ID, "channel", req.Channel.ID)

	err := sc.run(ctx, req, res, log)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to process mentions in channel %s: %v", req.Channel.ID, err))
		sc.send(ctx, log, req.Output, fmt.Sprintf("There was an issue searching for vouches: %v. Check bot permissions, channel access, or ensure the channel name/ID is correct.", err))
		return res, err
	}
	return res, nil
}

func (sc *Scanner) run(ctx context.Context, req ScanRequest, res *ScanResult, log *slog.Logger) error {
	s := sc.Service
	ch := req.Channel

	if err := CheckPermissions(ctx, s.Platform, ch); err != nil {
		return err
	}

	members := make(map[model.UserID]Member)
	for _, m := range s.members(ctx, req.GuildID) {
		members[m.UserID] = m
	}

	window, err := sc.fetch(ctx, ch.ID)
	if err != nil {
		return err
	}
	res.TotalMessages = len(window)
	log.Info("fetched messages", "count", res.TotalMessages)
	sc.send(ctx, log, req.Output, fmt.Sprintf("Fetched %d messages in channel %s for vouch search.", res.TotalMessages, ch.Name))

	err = s.Counter.Update(ctx, "", func(tx *Tx) error {
		for _, msg := range window {
			for _, id := range Mentioned(msg, s.Prefix) {
				if _, ok := members[id]; !ok {
					continue
				}
				if req.Target != "" && id != req.Target {
					continue
				}
				if _, ok := tx.Increment(id, model.ReasonScan); ok {
					res.MentionCount++
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	who := "all server members"
	if req.Target != "" {
		who = "<@" + req.Target + ">"
	}
	if res.MentionCount > 0 {
		log.Info("found mentions", "count", res.MentionCount, "target", req.Target)
		sc.send(ctx, log, req.Output, fmt.Sprintf("Found %d unique explicit @mentions in channel %s for %s.", res.MentionCount, ch.Name, who))
	} else {
		log.Info("no mentions found", "target", req.Target)
		sc.send(ctx, log, req.Output, fmt.Sprintf("No explicit @mentions found in channel %s for %s.", ch.Name, who))
	}

	var users []model.UserID
	if req.Target != "" {
		users = []model.UserID{req.Target}
	} else {
		for id := range s.Counter.Snapshot() {
			users = append(users, id)
		}
		slices.Sort(users)
	}
	for _, id := range users {
		m, ok := members[id]
		if !ok {
			continue
		}
		r := s.Sync(ctx, req.GuildID, m)
		res.Outcomes = append(res.Outcomes, r.Outcomes...)
		switch {
		case r.Promoted():
			sc.send(ctx, log, req.Output, EarnedMessage(m.Tag, r.Count, r.Tier.RoleID))
		case req.Target != "":
			sc.send(ctx, log, req.Output, CountMessage(m.Tag, r.Count))
		}
		if !r.Plan.Empty() {
			res.Changes = append(res.Changes, r)
		}
	}

	log.Info("scan complete", "messages", res.TotalMessages, "mentions", res.MentionCount, "changes", len(res.Changes))
	sc.send(ctx, log, req.Output, "Vouch counts and roles have been updated based on explicit @mentions in the vouch channel.")
	return nil
}

// fetch pages backward from the newest message until a page comes back empty
// or the window holds Limit messages. Messages are deduplicated by id.
func (sc *Scanner) fetch(ctx context.Context, channelID model.ChannelID) ([]Message, error) {
	limit := sc.Limit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	pageSize := sc.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	seen := make(map[string]struct{})
	var window []Message
	before := ""
	for len(window) < limit {
		page, err := sc.Service.Platform.Messages(ctx, channelID, before, min(pageSize, limit-len(window)))
		if err != nil {
			return window, fmt.Errorf("fetch messages: %w", err)
		}
		if len(page) == 0 {
			break
		}
		added := 0
		for _, m := range page {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			seen[m.ID] = struct{}{}
			window = append(window, m)
			added++
			if len(window) == limit {
				break
			}
		}
		if added == 0 {
			break
		}
		before = page[len(page)-1].ID
	}
	return window, nil
}

func (sc *Scanner) send(ctx context.Context, log *slog.Logger, channelID model.ChannelID, content string) {
	if err := sc.Service.Platform.Send(ctx, channelID, content); err != nil {
		log.Error("Failed to send scan report", "error", err)
	}
}

// CountMessage formats "<tag> now has N vouch(es).".
func CountMessage(tag string, count int) string {
	return fmt.Sprintf("%s now has %d %s.", tag, count, Plural(count))
}

// EarnedMessage formats the promotion announcement.
func EarnedMessage(tag string, count int, roleID model.RoleID) string {
	return fmt.Sprintf("%s now has %d %s and earned the <@&%s> role!", tag, count, Plural(count), roleID)
}

// Plural returns "vouch" for one and "vouches" otherwise.
func Plural(count int) string {
	if count == 1 {
		return "vouch"
	}
	return "vouches"
}
