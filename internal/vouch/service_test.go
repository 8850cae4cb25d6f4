package vouch_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/vouchbot/internal/logging"
	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/platform/fake"
	"github.com/rcliao/vouchbot/internal/store"
	"github.com/rcliao/vouchbot/internal/vouch"
)

const guild = "g1"

var ladder = model.Ladder{
	{RoleID: "A", Required: 3},
	{RoleID: "B", Required: 15},
	{RoleID: "C", Required: 30},
}

type env struct {
	platform *fake.Platform
	store    store.Store
	path     string
	svc      *vouch.Service
}

func newEnv(t *testing.T, l model.Ladder) *env {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vouchData.json")
	s := store.NewJSONFileStore(path)
	c, err := vouch.NewCounter(ctx, s, model.DefaultCap, logging.Discard())
	require.NoError(t, err)
	p := fake.New()
	return &env{
		platform: p,
		store:    s,
		path:     path,
		svc: &vouch.Service{
			Platform: p,
			Counter:  c,
			Ladder:   l,
			Prefix:   "/",
			Log:      logging.Discard(),
		},
	}
}

func (e *env) persisted(t *testing.T) map[string]int {
	t.Helper()
	entries, err := store.NewJSONFileStore(e.path).Load(context.Background())
	require.NoError(t, err)
	m := make(map[string]int)
	for _, en := range entries {
		m[en.UserID] = en.Count
	}
	return m
}

func TestVouchPromotesAtThreshold(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	e.platform.AddMember("u")

	for i := 1; i <= 2; i++ {
		r, err := e.svc.Vouch(ctx, guild, "actor", "u")
		require.NoError(t, err)
		assert.Equal(t, i, r.Count)
		assert.False(t, r.Promoted())
	}
	r, err := e.svc.Vouch(ctx, guild, "actor", "u")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Count)
	assert.True(t, r.Promoted())
	assert.Equal(t, "A", r.Tier.RoleID)
	assert.Equal(t, []string{"A"}, e.platform.Roles("u"))
	assert.Equal(t, 3, e.persisted(t)["u"])
}

func TestSelfVouchRejected(t *testing.T) {
	e := newEnv(t, ladder)
	e.platform.AddMember("u")

	_, err := e.svc.Vouch(context.Background(), guild, "u", "u")
	assert.ErrorIs(t, err, vouch.ErrSelfVouch)
	assert.Equal(t, 0, e.svc.Count("u"))
	assert.Empty(t, e.persisted(t))
}

func TestVouchNonMember(t *testing.T) {
	e := newEnv(t, ladder)
	_, err := e.svc.Vouch(context.Background(), guild, "actor", "ghost")
	assert.ErrorIs(t, err, vouch.ErrNotMember)
	assert.Equal(t, 0, e.svc.Count("ghost"))
}

func TestVouchCommandRespectsCap(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	e.platform.AddMember("u", "C")
	require.NoError(t, e.store.Save(ctx, []model.Entry{{UserID: "u", Count: 50}}))
	c, err := vouch.NewCounter(ctx, e.store, 50, logging.Discard())
	require.NoError(t, err)
	e.svc.Counter = c

	r, err := e.svc.Vouch(ctx, guild, "actor", "u")
	assert.ErrorIs(t, err, vouch.ErrAtCap)
	assert.Equal(t, 50, r.Count)
	assert.Equal(t, 50, e.svc.Count("u"))
}

func TestUnvouchDemotes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, model.Ladder{{RoleID: "A", Required: 3}})
	e.platform.AddMember("u", "A", "keep")
	require.NoError(t, e.svc.Counter.Update(ctx, "", func(tx *vouch.Tx) error {
		for range 3 {
			tx.Increment("u", model.ReasonVouch)
		}
		return nil
	}))

	r, err := e.svc.Unvouch(ctx, guild, "mod", "u")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Count)
	assert.False(t, r.HasTier)
	assert.Empty(t, r.Plan.Add)
	assert.Equal(t, []string{"A"}, r.Plan.Remove)
	assert.Equal(t, []string{"keep"}, e.platform.Roles("u"))
	assert.Equal(t, 2, e.persisted(t)["u"])
}

func TestUnvouchAtZero(t *testing.T) {
	e := newEnv(t, ladder)
	e.platform.AddMember("u")

	_, err := e.svc.Unvouch(context.Background(), guild, "mod", "u")
	assert.ErrorIs(t, err, vouch.ErrNoVouches)
	assert.Equal(t, 0, e.svc.Count("u"))
}

func TestClearStripsEveryTierRole(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	holdings := map[string][]string{
		"u1": {"A"},
		"u2": {"B", "x"},
		"u3": {"C"},
		"u4": {"A", "C"},
		"u5": nil,
	}
	for id, roles := range holdings {
		e.platform.AddMember(id, roles...)
	}
	require.NoError(t, e.svc.Counter.Update(ctx, "", func(tx *vouch.Tx) error {
		for id := range holdings {
			tx.Increment(id, model.ReasonVouch)
		}
		return nil
	}))

	res, err := e.svc.Clear(ctx, guild, "owner", model.ReasonWipe)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Users)
	assert.Equal(t, 4, res.Members)
	assert.Empty(t, vouch.Failed(res.Outcomes))

	assert.Empty(t, e.svc.Counter.Snapshot())
	assert.Empty(t, e.persisted(t))
	for id := range holdings {
		for _, r := range e.platform.Roles(id) {
			assert.False(t, ladder.Contains(r), "%s still holds %s", id, r)
		}
	}
	assert.Equal(t, []string{"x"}, e.platform.Roles("u2"))
}

func TestClearFallsBackToCachedMembers(t *testing.T) {
	e := newEnv(t, ladder)
	e.platform.AddMember("u1", "A")
	e.platform.AddMember("u2", "B")
	e.platform.MembersErr = errors.New("missing intent")
	e.platform.Cached = []vouch.Member{{UserID: "u1", Roles: []string{"A"}}}

	res, err := e.svc.Clear(context.Background(), guild, "mod", model.ReasonReset)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Members)
	assert.Empty(t, e.platform.Roles("u1"))
	assert.Equal(t, []string{"B"}, e.platform.Roles("u2"))
}

func TestRoleFailureDoesNotAbortSiblings(t *testing.T) {
	e := newEnv(t, ladder)
	e.platform.AddMember("u1", "A")
	e.platform.AddMember("u2", "A")
	e.platform.AddMember("u3", "B")
	e.platform.RoleErr["A"] = errors.New("missing access")

	res, err := e.svc.Clear(context.Background(), guild, "mod", model.ReasonReset)
	require.NoError(t, err)
	assert.Len(t, vouch.Failed(res.Outcomes), 2)
	assert.Empty(t, e.platform.Roles("u3"))
}

func TestCreditMentions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, model.Ladder{{RoleID: "A", Required: 1}})
	e.platform.AddMember("111")
	e.platform.AddMember("999")

	msg := vouch.Message{
		GuildID:  guild,
		AuthorID: "999",
		Content:  "thanks <@111> <@!111> <@222> and me <@999>",
		Mentions: []string{"111", "333"},
	}

	results, err := e.svc.CreditMentions(ctx, msg)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "111", results[0].Member.UserID)
	assert.True(t, results[0].Promoted())

	// Non-members are still credited; only reconciliation needs membership.
	assert.Equal(t, 1, e.svc.Count("111"))
	assert.Equal(t, 1, e.svc.Count("222"))
	assert.Equal(t, 1, e.svc.Count("333"))
	assert.Equal(t, 0, e.svc.Count("999"))

	cmd := msg
	cmd.Content = "/vouch <@111>"
	results, err = e.svc.CreditMentions(ctx, cmd)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, e.svc.Count("111"))
}

func TestCounterSerializesConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)

	done := make(chan error)
	for i := range 20 {
		go func() {
			done <- e.svc.Counter.Update(ctx, fmt.Sprint(i), func(tx *vouch.Tx) error {
				tx.Increment("u", model.ReasonMention)
				return nil
			})
		}()
	}
	for range 20 {
		require.NoError(t, <-done)
	}
	assert.Equal(t, 20, e.svc.Count("u"))
	assert.Equal(t, 20, e.persisted(t)["u"])
}

func TestCorruptDataStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vouchData.json")
	require.NoError(t, writeFile(path, "not json"))
	c, err := vouch.NewCounter(context.Background(), store.NewJSONFileStore(path), 50, logging.Discard())
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot())
}
