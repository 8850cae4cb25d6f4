package vouch_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/vouch"
)

func newScanner(e *env, limit int) *vouch.Scanner {
	return &vouch.Scanner{Service: e.svc, Limit: limit, PageSize: 100}
}

func TestScanEndToEndPromotion(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, model.Ladder{{RoleID: "A", Required: 3}})
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.AddMember("7")
	e.platform.AddMember("8")

	e.platform.Post("vc", "8", "great trade <@7>", "7")
	res, err := newScanner(e, 1000).Scan(ctx, vouch.ScanRequest{GuildID: guild, Channel: ch})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalMessages)
	assert.Equal(t, 1, res.MentionCount)
	assert.Equal(t, 1, e.svc.Count("7"))
	assert.Empty(t, res.Changes)
	assert.Empty(t, e.platform.Roles("7"))

	// Two more mentions; rescanning credits the whole window again.
	e.platform.Post("vc", "8", "again <@7>", "7")
	e.platform.Post("vc", "8", "and again <@!7>")
	e.svc.Counter.Update(ctx, "", func(tx *vouch.Tx) error {
		tx.Clear(model.ReasonReset)
		return nil
	})
	res, err = newScanner(e, 1000).Scan(ctx, vouch.ScanRequest{GuildID: guild, Channel: ch})
	require.NoError(t, err)
	assert.Equal(t, 3, res.MentionCount)
	assert.Equal(t, 3, e.svc.Count("7"))
	assert.Equal(t, []string{"A"}, e.platform.Roles("7"))
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "7", res.Changes[0].Member.UserID)
	assert.NotEmpty(t, res.ID)

	sent := e.platform.SentTo("vc")
	assert.Contains(t, sent, "Fetched 3 messages in channel vouch for vouch search.")
	assert.Contains(t, sent, "Found 3 unique explicit @mentions in channel vouch for all server members.")
	assert.Contains(t, sent, "user7 now has 3 vouches and earned the <@&A> role!")
	assert.Equal(t, 3, e.persisted(t)["7"])
}

func TestScanCapsAtFifty(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.AddMember("7")
	for i := range 1000 {
		e.platform.Post("vc", fmt.Sprint(100+i%5), "<@7>", "7")
	}

	sc := newScanner(e, 1000)
	for range 2 {
		res, err := sc.Scan(ctx, vouch.ScanRequest{GuildID: guild, Channel: ch})
		require.NoError(t, err)
		assert.Equal(t, 1000, res.TotalMessages)
	}
	assert.Equal(t, 50, e.svc.Count("7"))
	assert.Equal(t, 50, e.persisted(t)["7"])
	assert.Equal(t, []string{"C"}, e.platform.Roles("7"))
}

func TestScanWindowIsBounded(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.AddMember("7")
	for range 250 {
		e.platform.Post("vc", "8", "<@7>")
	}

	res, err := newScanner(e, 120).Scan(ctx, vouch.ScanRequest{GuildID: guild, Channel: ch})
	require.NoError(t, err)
	assert.Equal(t, 120, res.TotalMessages)
	assert.Equal(t, 2, e.platform.PageFetches)
	assert.Equal(t, 50, e.svc.Count("7"))
}

func TestScanStopsOnEmptyPage(t *testing.T) {
	e := newEnv(t, ladder)
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	for range 150 {
		e.platform.Post("vc", "8", "hello")
	}

	res, err := newScanner(e, 1000).Scan(context.Background(), vouch.ScanRequest{GuildID: guild, Channel: ch})
	require.NoError(t, err)
	assert.Equal(t, 150, res.TotalMessages)
	assert.Equal(t, 3, e.platform.PageFetches)
	assert.Zero(t, res.MentionCount)
	assert.Contains(t, e.platform.SentTo("vc"), "No explicit @mentions found in channel vouch for all server members.")
}

func TestScanSkipsBotsPrefixAndNonMembers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.AddMember("7")

	e.platform.Post("vc", "8", "/vouch <@7>", "7")
	e.platform.Post("vc", "8", "<@404>", "404")
	e.platform.Post("vc", "7", "me! <@7>", "7")
	e.platform.Post("vc", "bot", "<@7>", "7")
	hist := e.platform.History["vc"]
	hist[len(hist)-1].AuthorBot = true

	res, err := newScanner(e, 1000).Scan(ctx, vouch.ScanRequest{GuildID: guild, Channel: ch})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalMessages)
	assert.Zero(t, res.MentionCount)
	assert.Empty(t, e.svc.Counter.Snapshot())
}

func TestScanTarget(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, model.Ladder{{RoleID: "A", Required: 1}})
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.AddChannel(guild, "out", "logs")
	e.platform.AddMember("7")
	e.platform.AddMember("9")
	e.platform.Post("vc", "8", "<@7> <@9>", "7", "9")

	res, err := newScanner(e, 1000).Scan(ctx, vouch.ScanRequest{GuildID: guild, Channel: ch, Target: "9", Output: "out"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MentionCount)
	assert.Equal(t, 0, e.svc.Count("7"))
	assert.Equal(t, 1, e.svc.Count("9"))
	assert.Empty(t, e.platform.Roles("7"))
	assert.Equal(t, []string{"A"}, e.platform.Roles("9"))

	assert.Empty(t, e.platform.SentTo("vc"))
	out := e.platform.SentTo("out")
	assert.Contains(t, out, "Found 1 unique explicit @mentions in channel vouch for <@9>.")
	assert.Contains(t, out, "user9 now has 1 vouch and earned the <@&A> role!")
}

func TestScanMissingPermissions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.AddChannel(guild, "out", "logs")
	e.platform.Perms["vc"] = vouch.Permissions{View: true}

	_, err := newScanner(e, 1000).Scan(ctx, vouch.ScanRequest{GuildID: guild, Channel: ch, Output: "out"})
	require.Error(t, err)
	assert.True(t, vouch.IsPermission(err))
	assert.Contains(t, err.Error(), "Read Message History, Send Messages")
	assert.Zero(t, e.platform.PageFetches)

	out := e.platform.SentTo("out")
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0], "There was an issue searching for vouches: missing permissions in #vouch"))
}

func TestScanFetchFailure(t *testing.T) {
	e := newEnv(t, ladder)
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.MessagesErr = errors.New("gateway timeout")

	_, err := newScanner(e, 1000).Scan(context.Background(), vouch.ScanRequest{GuildID: guild, Channel: ch})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway timeout")
}

func TestScanMemberFetchFallsBackToCache(t *testing.T) {
	e := newEnv(t, ladder)
	ch := e.platform.AddChannel(guild, "vc", "vouch")
	e.platform.AddMember("7")
	e.platform.AddMember("9")
	e.platform.MembersErr = errors.New("missing intent")
	e.platform.Cached = []vouch.Member{{UserID: "9"}}
	e.platform.Post("vc", "8", "<@7> <@9>")

	res, err := newScanner(e, 1000).Scan(context.Background(), vouch.ScanRequest{GuildID: guild, Channel: ch})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MentionCount)
	assert.Equal(t, 1, e.svc.Count("9"))
	assert.Equal(t, 0, e.svc.Count("7"))
}

func TestFindChannel(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, ladder)
	log := e.svc.Log
	e.platform.AddChannel(guild, "1", "vouch")
	e.platform.AddChannel(guild, "2", "Trades")
	e.platform.Channels["3"] = vouch.Channel{ID: "3", GuildID: guild, Name: "voice"}

	ch, err := vouch.FindChannel(ctx, e.platform, log, guild, "<#2>", "1")
	require.NoError(t, err)
	assert.Equal(t, "2", ch.ID)

	ch, err = vouch.FindChannel(ctx, e.platform, log, guild, "", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", ch.ID)

	ch, err = vouch.FindChannel(ctx, e.platform, log, guild, "#trades", "3")
	require.NoError(t, err)
	assert.Equal(t, "2", ch.ID)

	ch, err = vouch.FindChannel(ctx, e.platform, log, guild, "<#404>", "")
	require.NoError(t, err)
	assert.Equal(t, "1", ch.ID, "falls back to the channel named vouch")

	delete(e.platform.Channels, "1")
	_, err = vouch.FindChannel(ctx, e.platform, log, guild, "nowhere", "1")
	assert.ErrorIs(t, err, vouch.ErrChannelNotFound)
}
