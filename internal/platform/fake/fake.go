// Package fake provides an in-memory vouch.Platform for tests.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/vouch"
)

// Sent is a message the platform was asked to send.
type Sent struct {
	ChannelID model.ChannelID
	Content   string
}

// Mutation is a role change the platform was asked to make.
type Mutation struct {
	Op     vouch.Op
	UserID model.UserID
	RoleID model.RoleID
}

// Platform is a goroutine-safe in-memory guild.
type Platform struct {
	mu sync.Mutex

	Channels    map[model.ChannelID]vouch.Channel
	Perms       map[model.ChannelID]vouch.Permissions
	MemberList  map[model.UserID]*vouch.Member
	History     map[model.ChannelID][]vouch.Message // oldest first
	SentLog     []Sent
	Mutations   []Mutation
	PageFetches int

	// Failure injection.
	MembersErr  error
	MessagesErr error
	// RoleErr fails role mutations whose role id is a key.
	RoleErr map[model.RoleID]error
	// Cached is returned by CachedMembers when set; otherwise every member.
	Cached []vouch.Member
}

// New returns an empty platform.
func New() *Platform {
	return &Platform{
		Channels:   make(map[model.ChannelID]vouch.Channel),
		Perms:      make(map[model.ChannelID]vouch.Permissions),
		MemberList: make(map[model.UserID]*vouch.Member),
		History:    make(map[model.ChannelID][]vouch.Message),
		RoleErr:    make(map[model.RoleID]error),
	}
}

// AddChannel registers a text channel with full permissions.
func (p *Platform) AddChannel(guildID model.GuildID, id model.ChannelID, name string) vouch.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := vouch.Channel{ID: id, GuildID: guildID, Name: name, TextBased: true}
	p.Channels[id] = ch
	p.Perms[id] = vouch.Permissions{View: true, ReadHistory: true, Send: true}
	return ch
}

// AddMember registers a guild member.
func (p *Platform) AddMember(userID model.UserID, roles ...model.RoleID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MemberList[userID] = &vouch.Member{UserID: userID, Tag: "user" + userID, Roles: slices.Clone(roles)}
}

// Post appends a message to a channel's history. Ids are assigned in order.
func (p *Platform) Post(channelID model.ChannelID, authorID model.UserID, content string, mentions ...model.UserID) vouch.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.History[channelID]) + 1
	m := vouch.Message{
		ID:        fmt.Sprintf("%s-%06d", channelID, n),
		ChannelID: channelID,
		AuthorID:  authorID,
		AuthorTag: "user" + authorID,
		Content:   content,
		Mentions:  mentions,
	}
	p.History[channelID] = append(p.History[channelID], m)
	return m
}

// Roles returns a member's current roles.
func (p *Platform) Roles(userID model.UserID) []model.RoleID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.MemberList[userID]; ok {
		return slices.Clone(m.Roles)
	}
	return nil
}

// SentTo returns the messages sent to channelID, in order.
func (p *Platform) SentTo(channelID model.ChannelID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.SentLog {
		if s.ChannelID == channelID {
			out = append(out, s.Content)
		}
	}
	return out
}

func (p *Platform) Channel(_ context.Context, channelID model.ChannelID) (vouch.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.Channels[channelID]
	if !ok {
		return vouch.Channel{}, fmt.Errorf("channel %s: %w", channelID, vouch.ErrChannelNotFound)
	}
	return ch, nil
}

func (p *Platform) GuildChannels(_ context.Context, guildID model.GuildID) ([]vouch.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []vouch.Channel
	for _, ch := range p.Channels {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	slices.SortFunc(out, func(a, b vouch.Channel) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

func (p *Platform) Members(_ context.Context, _ model.GuildID) ([]vouch.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.MembersErr != nil {
		return nil, p.MembersErr
	}
	return p.all(), nil
}

func (p *Platform) CachedMembers(_ model.GuildID) []vouch.Member {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Cached != nil {
		return slices.Clone(p.Cached)
	}
	return p.all()
}

func (p *Platform) all() []vouch.Member {
	out := make([]vouch.Member, 0, len(p.MemberList))
	for _, m := range p.MemberList {
		c := *m
		c.Roles = slices.Clone(m.Roles)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b vouch.Member) int {
		if a.UserID < b.UserID {
			return -1
		}
		if a.UserID > b.UserID {
			return 1
		}
		return 0
	})
	return out
}

func (p *Platform) Member(_ context.Context, _ model.GuildID, userID model.UserID) (vouch.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.MemberList[userID]
	if !ok {
		return vouch.Member{}, fmt.Errorf("member %s: %w", userID, vouch.ErrNotMember)
	}
	c := *m
	c.Roles = slices.Clone(m.Roles)
	return c, nil
}

func (p *Platform) Messages(_ context.Context, channelID model.ChannelID, before string, limit int) ([]vouch.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PageFetches++
	if p.MessagesErr != nil {
		return nil, p.MessagesErr
	}
	history := p.History[channelID]
	end := len(history)
	if before != "" {
		end = slices.IndexFunc(history, func(m vouch.Message) bool { return m.ID == before })
		if end < 0 {
			return nil, nil
		}
	}
	var page []vouch.Message
	for i := end - 1; i >= 0 && len(page) < limit; i-- {
		page = append(page, history[i])
	}
	return page, nil
}

func (p *Platform) AddRole(_ context.Context, _ model.GuildID, userID model.UserID, roleID model.RoleID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.RoleErr[roleID]; err != nil {
		return err
	}
	m, ok := p.MemberList[userID]
	if !ok {
		return fmt.Errorf("member %s: %w", userID, vouch.ErrNotMember)
	}
	if slices.Contains(m.Roles, roleID) {
		return fmt.Errorf("member %s already has role %s", userID, roleID)
	}
	m.Roles = append(m.Roles, roleID)
	p.Mutations = append(p.Mutations, Mutation{Op: vouch.OpAdd, UserID: userID, RoleID: roleID})
	return nil
}

func (p *Platform) RemoveRole(_ context.Context, _ model.GuildID, userID model.UserID, roleID model.RoleID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.RoleErr[roleID]; err != nil {
		return err
	}
	m, ok := p.MemberList[userID]
	if !ok {
		return fmt.Errorf("member %s: %w", userID, vouch.ErrNotMember)
	}
	m.Roles = slices.DeleteFunc(m.Roles, func(id model.RoleID) bool { return id == roleID })
	p.Mutations = append(p.Mutations, Mutation{Op: vouch.OpRemove, UserID: userID, RoleID: roleID})
	return nil
}

func (p *Platform) Send(_ context.Context, channelID model.ChannelID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SentLog = append(p.SentLog, Sent{ChannelID: channelID, Content: content})
	return nil
}

func (p *Platform) Permissions(_ context.Context, channelID model.ChannelID) (vouch.Permissions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Perms[channelID], nil
}

var _ vouch.Platform = (*Platform)(nil)
