package vouch

import (
	"context"
	"slices"

	"github.com/rcliao/vouchbot/internal/model"
)

// Channel is a guild channel as seen by the bot.
type Channel struct {
	ID        model.ChannelID
	GuildID   model.GuildID
	Name      string
	TextBased bool
}

// Member is a guild member with its current role set.
type Member struct {
	UserID model.UserID
	Tag    string
	Bot    bool
	Roles  []model.RoleID
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID model.RoleID) bool {
	return slices.Contains(m.Roles, roleID)
}

// Message is a channel message reduced to what mention extraction needs.
type Message struct {
	ID        string
	ChannelID model.ChannelID
	GuildID   model.GuildID
	AuthorID  model.UserID
	AuthorTag string
	AuthorBot bool
	Content   string
	// Mentions are the user ids the platform parsed out of the message.
	Mentions []model.UserID
}

// Permissions are the bot's capabilities in one channel.
type Permissions struct {
	View        bool
	ReadHistory bool
	Send        bool
}

// Missing names every capability that is not granted.
func (p Permissions) Missing() []string {
	var missing []string
	if !p.View {
		missing = append(missing, "View Channel")
	}
	if !p.ReadHistory {
		missing = append(missing, "Read Message History")
	}
	if !p.Send {
		missing = append(missing, "Send Messages")
	}
	return missing
}

// Platform is the chat-platform surface the vouch core consumes. Pacing and
// retry of calls are the implementation's concern.
type Platform interface {
	// Channel fetches a channel by id. Returns ErrChannelNotFound if absent.
	Channel(ctx context.Context, channelID model.ChannelID) (Channel, error)
	// GuildChannels lists the guild's channels.
	GuildChannels(ctx context.Context, guildID model.GuildID) ([]Channel, error)
	// Members fetches the full guild member list.
	Members(ctx context.Context, guildID model.GuildID) ([]Member, error)
	// CachedMembers returns whatever members are cached locally.
	CachedMembers(guildID model.GuildID) []Member
	// Member fetches one member. Returns ErrNotMember if the user is not in the guild.
	Member(ctx context.Context, guildID model.GuildID, userID model.UserID) (Member, error)
	// Messages returns up to limit messages older than before (newest first).
	// An empty before starts at the most recent message.
	Messages(ctx context.Context, channelID model.ChannelID, before string, limit int) ([]Message, error)
	AddRole(ctx context.Context, guildID model.GuildID, userID model.UserID, roleID model.RoleID) error
	RemoveRole(ctx context.Context, guildID model.GuildID, userID model.UserID, roleID model.RoleID) error
	Send(ctx context.Context, channelID model.ChannelID, content string) error
	// Permissions reports the bot's own capabilities in channelID.
	Permissions(ctx context.Context, channelID model.ChannelID) (Permissions, error)
}
