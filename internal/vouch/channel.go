package vouch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rcliao/vouchbot/internal/model"
)

var channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)

// FindChannel resolves the channel to search: a <#id> mention in arg, then
// defaultID, then a text channel named arg, then one named
// model.DefaultVouchChannelName.
func FindChannel(ctx context.Context, p Platform, log *slog.Logger, guildID model.GuildID, arg string, defaultID model.ChannelID) (Channel, error) {
	id := defaultID
	if m := channelMentionPattern.FindStringSubmatch(arg); m != nil {
		id = m[1]
	}
	if id != "" {
		ch, err := p.Channel(ctx, id)
		if err != nil {
			log.Error("Failed to fetch channel by ID "+id, "error", err)
		} else if ch.TextBased {
			return ch, nil
		}
	}

	channels, err := p.GuildChannels(ctx, guildID)
	if err != nil {
		return Channel{}, fmt.Errorf("list channels: %w", err)
	}

	if name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(arg), "#")); name != "" && !strings.HasPrefix(name, "<#") {
		for _, ch := range channels {
			if ch.TextBased && strings.ToLower(ch.Name) == name {
				return ch, nil
			}
		}
	}
	for _, ch := range channels {
		if ch.TextBased && strings.ToLower(ch.Name) == model.DefaultVouchChannelName {
			log.Info("Falling back to default vouch channel", "channel", ch.Name, "id", ch.ID)
			return ch, nil
		}
	}

	var names []string
	for _, ch := range channels {
		if ch.TextBased {
			names = append(names, fmt.Sprintf("%s (ID: %s)", ch.Name, ch.ID))
		}
	}
	log.Info("Available text channels in guild", "channels", strings.Join(names, ", "))

	want := arg
	if want == "" {
		want = model.DefaultVouchChannelName
	}
	return Channel{}, fmt.Errorf("could not find channel '%s': %w", want, ErrChannelNotFound)
}

// CheckPermissions fails with a *PermissionError unless the bot can view,
// read the history of, and send to ch.
func CheckPermissions(ctx context.Context, p Platform, ch Channel) error {
	if !ch.TextBased {
		return fmt.Errorf("%s: %w", ch.ID, ErrNotTextChannel)
	}
	perms, err := p.Permissions(ctx, ch.ID)
	if err != nil {
		return fmt.Errorf("check permissions: %w", err)
	}
	if missing := perms.Missing(); len(missing) > 0 {
		return &PermissionError{Channel: ch.Name, Missing: missing}
	}
	return nil
}

// IsNotFound reports whether err means a channel or member was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound) || errors.Is(err, ErrNotMember)
}
