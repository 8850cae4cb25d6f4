// Package bot routes chat events and commands to the vouch service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/vouch"
)

// Command names.
const (
	CmdVouch   = "vouch"
	CmdVouches = "vouches"
	CmdUnvouch = "unvouch"
	CmdReset   = "vouchreset"
	CmdWipe    = "vouchwipe"
	CmdSearch  = "vouchsearch"
)

// Invocation is one command call, from a prefix message or a slash command.
type Invocation struct {
	Name      string
	GuildID   model.GuildID
	ChannelID model.ChannelID
	Invoker   vouch.Member
	// Target is the mentioned user, if any.
	Target model.UserID
	// ChannelArg is the raw channel argument of vouchsearch.
	ChannelArg string
}

// Bot handles live messages and commands.
type Bot struct {
	Service *vouch.Service
	Scanner *vouch.Scanner

	VouchChannelID model.ChannelID
	ModRoleID      model.RoleID
	OwnerRoleID    model.RoleID
	ScanOnStartup  bool

	Log *slog.Logger
}

func (b *Bot) platform() vouch.Platform { return b.Service.Platform }

// Startup announces the bot in the vouch channel and runs a broad scan.
func (b *Bot) Startup(ctx context.Context, guildID model.GuildID) error {
	defer b.recover("startup")

	ch, err := vouch.FindChannel(ctx, b.platform(), b.Log, guildID, model.DefaultVouchChannelName, b.VouchChannelID)
	if err != nil {
		b.Log.Error("Failed to send startup message: "+err.Error(), "guild", guildID)
		return err
	}
	if err := b.platform().Send(ctx, ch.ID, "Vouch Bot is online and ready to track vouches based on explicit @mentions!"); err != nil {
		b.Log.Error("Failed to send startup message: "+err.Error(), "channel", ch.ID)
	}
	b.Log.Info("startup message sent", "channel", ch.ID, "name", ch.Name)

	if !b.ScanOnStartup {
		return nil
	}
	_, err = b.Scanner.Scan(ctx, vouch.ScanRequest{GuildID: guildID, Channel: ch})
	return err
}

// OnMessage handles a message posted in the guild. Replies are sent to the
// message's channel.
func (b *Bot) OnMessage(ctx context.Context, msg vouch.Message, invoker vouch.Member) {
	defer b.recover("message")

	if msg.AuthorBot {
		return
	}
	prefix := b.Service.Prefix

	if msg.ChannelID == b.VouchChannelID && !strings.HasPrefix(msg.Content, prefix) {
		b.creditMentions(ctx, msg)
		return
	}
	if !strings.HasPrefix(msg.Content, prefix) {
		return
	}

	inv, ok := ParsePrefixCommand(strings.TrimPrefix(msg.Content, prefix), msg.Mentions)
	if !ok {
		return
	}
	inv.GuildID = msg.GuildID
	inv.ChannelID = msg.ChannelID
	inv.Invoker = invoker
	if inv.Invoker.UserID == "" {
		inv.Invoker.UserID = msg.AuthorID
		inv.Invoker.Tag = msg.AuthorTag
	}

	if reply := b.Handle(ctx, inv); reply != "" {
		b.send(ctx, msg.ChannelID, reply)
	}
}

func (b *Bot) creditMentions(ctx context.Context, msg vouch.Message) {
	results, err := b.Service.CreditMentions(ctx, msg)
	if err != nil {
		b.Log.Error("Failed to save vouch data from mention", "error", err)
	}
	for _, r := range results {
		if len(vouch.Failed(r.Outcomes)) > 0 {
			b.Log.Error("Failed to update roles for "+r.Member.Tag+" from mention")
			b.send(ctx, msg.ChannelID, "There was an issue updating roles. Check bot permissions.")
			continue
		}
		b.send(ctx, msg.ChannelID, resultMessage(r))
	}
}

// Handle runs a command and returns the reply for the invoker. An empty
// reply means everything was already reported.
func (b *Bot) Handle(ctx context.Context, inv Invocation) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			b.Log.Error(fmt.Sprintf("panic in command %s: %v", inv.Name, r), "stack", string(debug.Stack()))
			reply = "Something went wrong while running that command."
		}
	}()

	switch inv.Name {
	case CmdVouch:
		return b.vouch(ctx, inv)
	case CmdVouches:
		return b.vouches(ctx, inv)
	case CmdUnvouch:
		if !b.isMod(inv.Invoker) {
			return "Only moderators can use this command."
		}
		return b.unvouch(ctx, inv)
	case CmdReset:
		if !b.isMod(inv.Invoker) {
			return "Only moderators can use this command."
		}
		return b.clear(ctx, inv, model.ReasonReset)
	case CmdWipe:
		if !b.isOwner(inv.Invoker) {
			return "Only the owner can use this command."
		}
		return b.clear(ctx, inv, model.ReasonWipe)
	case CmdSearch:
		if !b.isOwner(inv.Invoker) {
			return "Only the owner can use this command."
		}
		return b.search(ctx, inv)
	}
	return ""
}

func (b *Bot) isMod(m vouch.Member) bool {
	return m.HasRole(b.ModRoleID) || m.HasRole(b.OwnerRoleID)
}

func (b *Bot) isOwner(m vouch.Member) bool {
	return m.HasRole(b.OwnerRoleID)
}

func (b *Bot) vouch(ctx context.Context, inv Invocation) string {
	if inv.Target == "" {
		return "Please mention a user to vouch for with an @mention!"
	}
	r, err := b.Service.Vouch(ctx, inv.GuildID, inv.Invoker.UserID, inv.Target)
	switch {
	case errors.Is(err, vouch.ErrSelfVouch):
		return "You can't vouch for yourself!"
	case errors.Is(err, vouch.ErrNotMember):
		return "Couldn't find that member in this server!"
	case errors.Is(err, vouch.ErrAtCap):
		return fmt.Sprintf("%s already has the maximum of %d vouches.", r.Member.Tag, b.Service.Counter.Cap())
	case err != nil && r.Member.UserID == "":
		b.Log.Error(fmt.Sprintf("Failed to update roles for <@%s>: %v", inv.Target, err))
		return "There was an issue updating roles. Check bot permissions."
	case err != nil:
		b.Log.Error("Failed to save vouch data", "error", err)
	}
	return withFailures(resultMessage(r), r.Outcomes)
}

func (b *Bot) vouches(ctx context.Context, inv Invocation) string {
	target := inv.Target
	tag := inv.Invoker.Tag
	if target == "" {
		target = inv.Invoker.UserID
	} else {
		tag = b.tag(ctx, inv.GuildID, target)
	}
	n := b.Service.Count(target)
	return fmt.Sprintf("%s has %d %s, based on explicit @mentions.", tag, n, vouch.Plural(n))
}

func (b *Bot) unvouch(ctx context.Context, inv Invocation) string {
	if inv.Target == "" {
		return "Please mention a user to remove a vouch from with an @mention!"
	}
	r, err := b.Service.Unvouch(ctx, inv.GuildID, inv.Invoker.UserID, inv.Target)
	switch {
	case errors.Is(err, vouch.ErrNoVouches):
		return r.Member.Tag + " has no vouches to remove."
	case errors.Is(err, vouch.ErrNotMember):
		return "Couldn't find that member in this server!"
	case err != nil && r.Member.UserID == "":
		b.Log.Error(fmt.Sprintf("Failed to update roles for <@%s> during unvouch: %v", inv.Target, err))
		return "There was an issue updating roles. Check bot permissions."
	case err != nil:
		b.Log.Error("Failed to save vouch data", "error", err)
	}
	return withFailures(resultMessage(r), r.Outcomes)
}

func (b *Bot) clear(ctx context.Context, inv Invocation, reason string) string {
	res, err := b.Service.Clear(ctx, inv.GuildID, inv.Invoker.UserID, reason)
	verb := "reset to 0"
	what := "resetting"
	if reason == model.ReasonWipe {
		verb = "wiped"
		what = "wiping"
	}
	if err != nil {
		b.Log.Error(fmt.Sprintf("Failed to %s vouches and roles: %v", reason, err))
		return fmt.Sprintf("There was an issue %s vouches and roles. Check bot permissions.", what)
	}
	b.Log.Info("vouches cleared", "reason", reason, "users", res.Users, "members", res.Members, "actor", inv.Invoker.UserID)
	return withFailures(fmt.Sprintf("All vouch counts and roles have been %s.", verb), res.Outcomes)
}

func (b *Bot) search(ctx context.Context, inv Invocation) string {
	fail := func(err error) string {
		b.Log.Error("Failed to search vouches: " + err.Error())
		return fmt.Sprintf("There was an issue searching for vouches: %v. Check bot permissions, channel access, or ensure the channel/user is correct.", err)
	}
	if inv.Target == "" {
		return fail(errors.New("no user mentioned. Please mention a user with @mention"))
	}

	ch, err := vouch.FindChannel(ctx, b.platform(), b.Log, inv.GuildID, inv.ChannelArg, b.VouchChannelID)
	if err != nil {
		return fail(err)
	}
	m, err := b.platform().Member(ctx, inv.GuildID, inv.Target)
	if errors.Is(err, vouch.ErrNotMember) {
		return fail(fmt.Errorf("user <@%s> is not a member of this server", inv.Target))
	}
	if err != nil {
		return fail(err)
	}

	_, err = b.Scanner.Scan(ctx, vouch.ScanRequest{
		GuildID: inv.GuildID,
		Channel: ch,
		Target:  inv.Target,
		Output:  inv.ChannelID,
	})
	if err != nil {
		// The scanner already reported the failure to the output channel.
		return ""
	}
	return fmt.Sprintf("Vouch counts and roles for %s have been updated based on explicit @mentions in %s.", m.Tag, ch.Name)
}

func (b *Bot) tag(ctx context.Context, guildID model.GuildID, userID model.UserID) string {
	m, err := b.platform().Member(ctx, guildID, userID)
	if err != nil || m.Tag == "" {
		return "<@" + userID + ">"
	}
	return m.Tag
}

func (b *Bot) send(ctx context.Context, channelID model.ChannelID, content string) {
	if err := b.platform().Send(ctx, channelID, content); err != nil {
		b.Log.Error("Failed to send message", "channel", channelID, "error", err)
	}
}

// recover logs a panic from an event handler and keeps the process alive.
func (b *Bot) recover(event string) {
	if r := recover(); r != nil {
		b.Log.Error(fmt.Sprintf("panic in %s handler: %v", event, r), "stack", string(debug.Stack()))
	}
}

func resultMessage(r vouch.Result) string {
	if r.Promoted() {
		return vouch.EarnedMessage(r.Member.Tag, r.Count, r.Tier.RoleID)
	}
	return vouch.CountMessage(r.Member.Tag, r.Count)
}

func withFailures(reply string, outcomes []vouch.Outcome) string {
	failed := vouch.Failed(outcomes)
	if len(failed) == 0 {
		return reply
	}
	return fmt.Sprintf("%s (%d role %s failed. Check bot permissions.)", reply, len(failed), plural(len(failed), "update", "updates"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
