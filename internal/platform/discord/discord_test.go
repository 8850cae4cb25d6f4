package discord

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPacer(page, mutation time.Duration) *Pacer {
	p := NewPacer(page, mutation)
	p.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ConstantBackOff{Interval: time.Millisecond}, 3)
	}
	return p
}

func restErr(code int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: code}}
}

func TestPacerRetriesTransientErrors(t *testing.T) {
	p := fastPacer(0, 0)
	calls := 0
	err := p.Call(context.Background(), func() error {
		calls++
		if calls < 3 {
			return restErr(http.StatusBadGateway)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPacerDoesNotRetryClientErrors(t *testing.T) {
	p := fastPacer(0, 0)
	calls := 0
	err := p.Call(context.Background(), func() error {
		calls++
		return restErr(http.StatusForbidden)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusForbidden, status(err))
}

func TestPacerGivesUp(t *testing.T) {
	p := fastPacer(0, 0)
	calls := 0
	err := p.Call(context.Background(), func() error {
		calls++
		return restErr(http.StatusTooManyRequests)
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestPacerSpacesMutations(t *testing.T) {
	p := fastPacer(0, 20*time.Millisecond)
	start := time.Now()
	for range 3 {
		require.NoError(t, p.Mutate(context.Background(), func() error { return nil }))
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestPacerHonoursCancellation(t *testing.T) {
	p := fastPacer(time.Hour, 0)
	require.NoError(t, p.Page(context.Background(), func() error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Page(ctx, func() error { return nil })
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&discordgo.RateLimitError{}))
	assert.True(t, isRetryable(restErr(500)))
	assert.False(t, isRetryable(restErr(404)))
	assert.False(t, isRetryable(&discordgo.RESTError{}))
	assert.False(t, isRetryable(errors.New("boom")))
	assert.False(t, isRetryable(nil))
}

func TestConvertMessage(t *testing.T) {
	m := ConvertMessage(&discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   "thanks <@2>",
		Author:    &discordgo.User{ID: "1", Username: "alice", Discriminator: "0", Bot: true},
		Mentions:  []*discordgo.User{{ID: "2"}, nil},
	})
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "1", m.AuthorID)
	assert.Equal(t, "alice", m.AuthorTag)
	assert.True(t, m.AuthorBot)
	assert.Equal(t, []string{"2"}, m.Mentions)
}

func TestConvertMember(t *testing.T) {
	m := ConvertMember(&discordgo.Member{
		User:  &discordgo.User{ID: "7", Username: "bob", Discriminator: "0042"},
		Roles: []string{"r1", "r2"},
	})
	assert.Equal(t, "7", m.UserID)
	assert.Equal(t, "bob#0042", m.Tag)
	assert.Equal(t, []string{"r1", "r2"}, m.Roles)
	assert.Empty(t, ConvertMember(nil).UserID)
}

func TestConvertChannel(t *testing.T) {
	assert.True(t, ConvertChannel(&discordgo.Channel{ID: "1", Type: discordgo.ChannelTypeGuildText}).TextBased)
	assert.False(t, ConvertChannel(&discordgo.Channel{ID: "2", Type: discordgo.ChannelTypeGuildCategory}).TextBased)
}

func TestConvertPermissions(t *testing.T) {
	p := ConvertPermissions(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages)
	assert.True(t, p.View)
	assert.False(t, p.ReadHistory)
	assert.True(t, p.Send)
	assert.Equal(t, []string{"Read Message History"}, p.Missing())

	assert.Empty(t, ConvertPermissions(discordgo.PermissionAdministrator).Missing())
}
