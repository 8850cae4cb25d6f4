package vouch

import (
	"context"
	"log/slog"
	"slices"

	"github.com/rcliao/vouchbot/internal/model"
)

// Plan is the set of role mutations that converges a member onto one tier.
type Plan struct {
	Add    model.RoleID
	Remove []model.RoleID
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return p.Add == "" && len(p.Remove) == 0
}

// Reconcile computes the mutations that leave a member holding exactly target
// among tierRoles, or none of them when target is empty. Removals follow
// tierRoles order.
func Reconcile(current []model.RoleID, target model.RoleID, tierRoles []model.RoleID) Plan {
	var p Plan
	for _, id := range tierRoles {
		if id != target && slices.Contains(current, id) && !slices.Contains(p.Remove, id) {
			p.Remove = append(p.Remove, id)
		}
	}
	if target != "" && !slices.Contains(current, target) {
		p.Add = target
	}
	return p
}

// PlanFor resolves count against ladder and reconciles the member's roles.
func PlanFor(m Member, count int, ladder model.Ladder) (Plan, model.Tier, bool) {
	tier, ok := ladder.Resolve(count)
	return Reconcile(m.Roles, tier.RoleID, ladder.RoleIDs()), tier, ok
}

// Op is a role mutation kind.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Outcome is the result of one role mutation attempt.
type Outcome struct {
	Op     Op
	UserID model.UserID
	RoleID model.RoleID
	Err    error
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Apply executes plan for one member, removals before the addition. A failed
// mutation is logged and recorded; the remaining ones still run.
func Apply(ctx context.Context, p Platform, log *slog.Logger, guildID model.GuildID, userID model.UserID, plan Plan) []Outcome {
	outcomes := make([]Outcome, 0, len(plan.Remove)+1)
	for _, roleID := range plan.Remove {
		err := p.RemoveRole(ctx, guildID, userID, roleID)
		if err != nil {
			log.Error("Failed to remove role "+roleID, "user", userID, "error", err)
		}
		outcomes = append(outcomes, Outcome{Op: OpRemove, UserID: userID, RoleID: roleID, Err: err})
	}
	if plan.Add != "" {
		err := p.AddRole(ctx, guildID, userID, plan.Add)
		if err != nil {
			log.Error("Failed to add role "+plan.Add, "user", userID, "error", err)
		}
		outcomes = append(outcomes, Outcome{Op: OpAdd, UserID: userID, RoleID: plan.Add, Err: err})
	}
	return outcomes
}

// Converged returns the member's role set after the successful outcomes.
func Converged(m Member, outcomes []Outcome) Member {
	roles := slices.Clone(m.Roles)
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		switch o.Op {
		case OpRemove:
			roles = slices.DeleteFunc(roles, func(id model.RoleID) bool { return id == o.RoleID })
		case OpAdd:
			if !slices.Contains(roles, o.RoleID) {
				roles = append(roles, o.RoleID)
			}
		}
	}
	m.Roles = roles
	return m
}

func sortIDs(ids []model.UserID) []model.UserID {
	slices.Sort(ids)
	return ids
}
