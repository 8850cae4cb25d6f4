// Package discord adapts a discordgo session to the vouch platform surface.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/vouch"
)

const memberPageSize = 1000

// Adapter implements vouch.Platform over a discordgo session.
type Adapter struct {
	s     *discordgo.Session
	pacer *Pacer
	log   *slog.Logger
}

// New returns an adapter over s.
func New(s *discordgo.Session, pacer *Pacer, log *slog.Logger) *Adapter {
	return &Adapter{s: s, pacer: pacer, log: log}
}

var _ vouch.Platform = (*Adapter)(nil)

func (a *Adapter) Channel(ctx context.Context, channelID model.ChannelID) (vouch.Channel, error) {
	var c *discordgo.Channel
	err := a.pacer.Call(ctx, func() (err error) {
		c, err = a.s.Channel(channelID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		if apiCode(err) == discordgo.ErrCodeUnknownChannel || status(err) == http.StatusNotFound {
			return vouch.Channel{}, fmt.Errorf("channel %s: %w", channelID, vouch.ErrChannelNotFound)
		}
		return vouch.Channel{}, err
	}
	return ConvertChannel(c), nil
}

func (a *Adapter) GuildChannels(ctx context.Context, guildID model.GuildID) ([]vouch.Channel, error) {
	var chs []*discordgo.Channel
	err := a.pacer.Call(ctx, func() (err error) {
		chs, err = a.s.GuildChannels(guildID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]vouch.Channel, 0, len(chs))
	for _, c := range chs {
		out = append(out, ConvertChannel(c))
	}
	return out, nil
}

func (a *Adapter) Members(ctx context.Context, guildID model.GuildID) ([]vouch.Member, error) {
	var out []vouch.Member
	after := ""
	for {
		var page []*discordgo.Member
		err := a.pacer.Call(ctx, func() (err error) {
			page, err = a.s.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetch members: %w", err)
		}
		for _, m := range page {
			out = append(out, ConvertMember(m))
		}
		if len(page) < memberPageSize {
			break
		}
		after = page[len(page)-1].User.ID
	}
	a.log.Debug("fetched guild members", "guild", guildID, "count", len(out))
	return out, nil
}

func (a *Adapter) CachedMembers(guildID model.GuildID) []vouch.Member {
	g, err := a.s.State.Guild(guildID)
	if err != nil {
		return nil
	}
	a.s.State.RLock()
	defer a.s.State.RUnlock()
	out := make([]vouch.Member, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, ConvertMember(m))
	}
	return out
}

func (a *Adapter) Member(ctx context.Context, guildID model.GuildID, userID model.UserID) (vouch.Member, error) {
	var m *discordgo.Member
	err := a.pacer.Call(ctx, func() (err error) {
		m, err = a.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		if apiCode(err) == discordgo.ErrCodeUnknownMember || apiCode(err) == discordgo.ErrCodeUnknownUser || status(err) == http.StatusNotFound {
			return vouch.Member{}, fmt.Errorf("member %s: %w", userID, vouch.ErrNotMember)
		}
		return vouch.Member{}, err
	}
	return ConvertMember(m), nil
}

func (a *Adapter) Messages(ctx context.Context, channelID model.ChannelID, before string, limit int) ([]vouch.Message, error) {
	var msgs []*discordgo.Message
	err := a.pacer.Page(ctx, func() (err error) {
		msgs, err = a.s.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]vouch.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ConvertMessage(m))
	}
	return out, nil
}

func (a *Adapter) AddRole(ctx context.Context, guildID model.GuildID, userID model.UserID, roleID model.RoleID) error {
	return a.pacer.Mutate(ctx, func() error {
		return a.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
}

func (a *Adapter) RemoveRole(ctx context.Context, guildID model.GuildID, userID model.UserID, roleID model.RoleID) error {
	return a.pacer.Mutate(ctx, func() error {
		return a.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx))
	})
}

func (a *Adapter) Send(ctx context.Context, channelID model.ChannelID, content string) error {
	return a.pacer.Mutate(ctx, func() error {
		_, err := a.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
		return err
	})
}

func (a *Adapter) Permissions(ctx context.Context, channelID model.ChannelID) (vouch.Permissions, error) {
	if a.s.State == nil || a.s.State.User == nil {
		return vouch.Permissions{}, errors.New("session is not ready")
	}
	var bits int64
	err := a.pacer.Call(ctx, func() (err error) {
		bits, err = a.s.UserChannelPermissions(a.s.State.User.ID, channelID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return vouch.Permissions{}, err
	}
	return ConvertPermissions(bits), nil
}

func apiCode(err error) int {
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Message != nil {
		return re.Message.Code
	}
	return 0
}

func status(err error) int {
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}
