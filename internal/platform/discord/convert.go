package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/rcliao/vouchbot/internal/vouch"
)

// ConvertChannel maps a discordgo channel.
func ConvertChannel(c *discordgo.Channel) vouch.Channel {
	if c == nil {
		return vouch.Channel{}
	}
	return vouch.Channel{ID: c.ID, GuildID: c.GuildID, Name: c.Name, TextBased: textBased(c.Type)}
}

func textBased(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeDM,
		discordgo.ChannelTypeGroupDM:
		return true
	}
	return false
}

// ConvertMember maps a discordgo member.
func ConvertMember(m *discordgo.Member) vouch.Member {
	if m == nil {
		return vouch.Member{}
	}
	out := vouch.Member{Roles: append([]string(nil), m.Roles...)}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Tag = m.User.String()
		out.Bot = m.User.Bot
	}
	return out
}

// ConvertMessage maps a discordgo message.
func ConvertMessage(m *discordgo.Message) vouch.Message {
	out := vouch.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
		out.AuthorTag = m.Author.String()
		out.AuthorBot = m.Author.Bot
	}
	for _, u := range m.Mentions {
		if u != nil {
			out.Mentions = append(out.Mentions, u.ID)
		}
	}
	return out
}

// ConvertPermissions maps a permission bit set.
func ConvertPermissions(bits int64) vouch.Permissions {
	if bits&discordgo.PermissionAdministrator != 0 {
		return vouch.Permissions{View: true, ReadHistory: true, Send: true}
	}
	return vouch.Permissions{
		View:        bits&discordgo.PermissionViewChannel != 0,
		ReadHistory: bits&discordgo.PermissionReadMessageHistory != 0,
		Send:        bits&discordgo.PermissionSendMessages != 0,
	}
}
