package vouch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rcliao/vouchbot/internal/model"
)

// Service ties the counter to the platform: each mutation is followed by tier
// resolution and role reconciliation for the affected member.
type Service struct {
	Platform Platform
	Counter  *Counter
	Ladder   model.Ladder
	// Prefix marks command messages, which never count as mentions.
	Prefix string
	Log    *slog.Logger
}

// Result describes one member's state after a mutation.
type Result struct {
	Member   Member
	Count    int
	Tier     model.Tier
	HasTier  bool
	Plan     Plan
	Outcomes []Outcome
}

// Promoted reports whether the tier role was added successfully.
func (r Result) Promoted() bool {
	for _, o := range r.Outcomes {
		if o.Op == OpAdd && o.Err == nil {
			return true
		}
	}
	return false
}

// Sync reconciles m's roles with its current count.
func (s *Service) Sync(ctx context.Context, guildID model.GuildID, m Member) Result {
	return s.sync(ctx, guildID, m, s.Counter.Get(m.UserID))
}

func (s *Service) sync(ctx context.Context, guildID model.GuildID, m Member, count int) Result {
	plan, tier, ok := PlanFor(m, count, s.Ladder)
	r := Result{Member: m, Count: count, Tier: tier, HasTier: ok, Plan: plan}
	if !plan.Empty() {
		r.Outcomes = Apply(ctx, s.Platform, s.Log, guildID, m.UserID, plan)
	}
	return r
}

// Vouch credits target with one vouch from actor.
func (s *Service) Vouch(ctx context.Context, guildID model.GuildID, actor, target model.UserID) (Result, error) {
	if target == actor {
		return Result{}, ErrSelfVouch
	}
	m, err := s.Platform.Member(ctx, guildID, target)
	if err != nil {
		return Result{}, fmt.Errorf("fetch member %s: %w", target, err)
	}

	var count int
	err = s.Counter.Update(ctx, actor, func(tx *Tx) error {
		n, ok := tx.Increment(target, model.ReasonVouch)
		if !ok {
			return ErrAtCap
		}
		count = n
		return nil
	})
	if err != nil && count == 0 {
		return Result{Member: m, Count: s.Counter.Get(target)}, err
	}
	r := s.sync(ctx, guildID, m, count)
	return r, err
}

// Unvouch removes one vouch from target.
func (s *Service) Unvouch(ctx context.Context, guildID model.GuildID, actor, target model.UserID) (Result, error) {
	m, err := s.Platform.Member(ctx, guildID, target)
	if err != nil {
		return Result{}, fmt.Errorf("fetch member %s: %w", target, err)
	}

	count := -1
	err = s.Counter.Update(ctx, actor, func(tx *Tx) error {
		n, ok := tx.Decrement(target, model.ReasonUnvouch)
		if !ok {
			return ErrNoVouches
		}
		count = n
		return nil
	})
	if err != nil && count < 0 {
		return Result{Member: m}, err
	}
	return s.sync(ctx, guildID, m, count), err
}

// Count returns userID's current count.
func (s *Service) Count(userID model.UserID) int {
	return s.Counter.Get(userID)
}

// ClearResult describes a reset or wipe.
type ClearResult struct {
	Users    int
	Members  int
	Outcomes []Outcome
}

// Clear drops every count and strips every tier role from every member.
// reason is model.ReasonReset or model.ReasonWipe.
func (s *Service) Clear(ctx context.Context, guildID model.GuildID, actor model.UserID, reason string) (ClearResult, error) {
	var res ClearResult
	err := s.Counter.Update(ctx, actor, func(tx *Tx) error {
		res.Users = tx.Clear(reason)
		return nil
	})
	if err != nil {
		return res, err
	}

	members := s.members(ctx, guildID)
	tierRoles := s.Ladder.RoleIDs()
	for _, m := range members {
		plan := Reconcile(m.Roles, "", tierRoles)
		if plan.Empty() {
			continue
		}
		res.Members++
		res.Outcomes = append(res.Outcomes, Apply(ctx, s.Platform, s.Log, guildID, m.UserID, plan)...)
	}
	return res, nil
}

// CreditMentions credits every user mentioned by a live message and
// reconciles each one that is a guild member.
func (s *Service) CreditMentions(ctx context.Context, msg Message) ([]Result, error) {
	ids := Mentioned(msg, s.Prefix)
	if len(ids) == 0 {
		return nil, nil
	}

	counts := make(map[model.UserID]int, len(ids))
	saveErr := s.Counter.Update(ctx, msg.AuthorID, func(tx *Tx) error {
		for _, id := range ids {
			n, ok := tx.Increment(id, model.ReasonMention)
			if !ok {
				s.Log.Info("mention ignored at cap", "user", id, "count", n)
				continue
			}
			counts[id] = n
		}
		return nil
	})

	var results []Result
	for _, id := range ids {
		n, ok := counts[id]
		if !ok {
			continue
		}
		m, err := s.Platform.Member(ctx, msg.GuildID, id)
		if errors.Is(err, ErrNotMember) {
			continue
		}
		if err != nil {
			s.Log.Error("Failed to update roles from mention", "user", id, "error", err)
			continue
		}
		results = append(results, s.sync(ctx, msg.GuildID, m, n))
	}
	return results, saveErr
}

// members fetches the full member list, falling back to the local cache.
func (s *Service) members(ctx context.Context, guildID model.GuildID) []Member {
	members, err := s.Platform.Members(ctx, guildID)
	if err != nil {
		s.Log.Error("Failed to fetch guild members", "guild", guildID, "error", err)
		members = s.Platform.CachedMembers(guildID)
		s.Log.Info("Falling back to cached members", "count", len(members))
	}
	return members
}
