package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/rcliao/vouchbot/internal/platform/discord"
)

// SlashCommands are the application commands registered with Discord.
var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        CmdVouch,
		Description: "Vouch for a member",
		Options:     []*discordgo.ApplicationCommandOption{userOption("The member to vouch for", true)},
	},
	{
		Name:        CmdVouches,
		Description: "Show a member's vouch count",
		Options:     []*discordgo.ApplicationCommandOption{userOption("The member to look up", false)},
	},
	{
		Name:        CmdUnvouch,
		Description: "Remove one vouch from a member (moderators)",
		Options:     []*discordgo.ApplicationCommandOption{userOption("The member to remove a vouch from", true)},
	},
	{
		Name:        CmdReset,
		Description: "Reset every vouch count and tier role (moderators)",
	},
	{
		Name:        CmdWipe,
		Description: "Wipe every vouch count and tier role (owner)",
	},
	{
		Name:        CmdSearch,
		Description: "Recount a member's vouches from channel history (owner)",
		Options: []*discordgo.ApplicationCommandOption{
			userOption("The member to recount", true),
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "The channel to search",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	},
}

func userOption(desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: desc,
		Required:    required,
	}
}

// invitePermissions is Manage Roles.
const invitePermissions = discordgo.PermissionManageRoles

// InviteLink returns the OAuth2 URL that adds the bot to a guild.
func InviteLink(clientID string) string {
	return fmt.Sprintf("https://discord.com/api/oauth2/authorize?client_id=%s&permissions=%d&scope=bot%%20applications.commands", clientID, invitePermissions)
}

// Gateway connects a Bot to discordgo session events.
type Gateway struct {
	Bot *Bot
	// AppID enables slash command registration when set.
	AppID string

	ctx context.Context
}

// Attach registers event handlers on s. Handlers use ctx for outbound calls.
func (g *Gateway) Attach(ctx context.Context, s *discordgo.Session) {
	g.ctx = ctx
	s.AddHandler(g.onReady)
	s.AddHandler(g.onMessageCreate)
	s.AddHandler(g.onInteractionCreate)
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log := g.Bot.Log
	log.Info(fmt.Sprintf("Logged in as %s", r.User.String()))
	log.Info("Invite Link: " + InviteLink(r.User.ID))

	if len(r.Guilds) == 0 {
		log.Error("Bot is not in any guild")
		return
	}
	guildID := r.Guilds[0].ID

	if g.AppID != "" {
		if _, err := s.ApplicationCommandBulkOverwrite(g.AppID, guildID, SlashCommands, discordgo.WithContext(g.ctx)); err != nil {
			log.Error("Failed to register slash commands", "error", err)
		} else {
			log.Info("slash commands registered", "count", len(SlashCommands), "guild", guildID)
		}
	}

	if err := g.Bot.Startup(g.ctx, guildID); err != nil {
		log.Error("startup scan failed", "error", err)
	}
}

func (g *Gateway) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.GuildID == "" {
		return
	}
	msg := discord.ConvertMessage(m.Message)
	invoker := discord.ConvertMember(m.Member)
	invoker.UserID = m.Author.ID
	invoker.Tag = m.Author.String()
	invoker.Bot = m.Author.Bot
	g.Bot.OnMessage(g.ctx, msg, invoker)
}

func (g *Gateway) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.Member == nil {
		return
	}
	log := g.Bot.Log
	data := i.ApplicationCommandData()

	inv := Invocation{
		Name:      data.Name,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Invoker:   discord.ConvertMember(i.Member),
	}
	for _, opt := range data.Options {
		id, _ := opt.Value.(string)
		switch opt.Type {
		case discordgo.ApplicationCommandOptionUser:
			inv.Target = id
		case discordgo.ApplicationCommandOptionChannel:
			inv.ChannelArg = "<#" + id + ">"
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(g.ctx))
	if err != nil {
		log.Error("Failed to acknowledge interaction", "command", data.Name, "error", err)
		return
	}

	reply := g.Bot.Handle(g.ctx, inv)
	if reply == "" {
		reply = "Done."
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &reply}, discordgo.WithContext(g.ctx)); err != nil {
		log.Error("Failed to reply to interaction", "command", data.Name, "error", err)
	}
}
