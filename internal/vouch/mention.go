// Package vouch implements vouch counting, tier resolution, role
// reconciliation and channel scanning.
package vouch

import (
	"regexp"
	"strings"

	"github.com/rcliao/vouchbot/internal/model"
)

// mentionPattern matches user mention tokens: <@id> and the nickname form <@!id>.
var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

// Extract returns the set of users mentioned in a message: every structured
// mention plus every raw mention token found in text. Each user appears once.
func Extract(text string, structured []model.UserID) map[model.UserID]struct{} {
	out := make(map[model.UserID]struct{}, len(structured))
	for _, id := range structured {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		out[m[1]] = struct{}{}
	}
	return out
}

// Countable reports whether a message takes part in mention extraction. Bot
// messages and prefix commands never do.
func Countable(m Message, prefix string) bool {
	if m.AuthorBot {
		return false
	}
	if prefix != "" && strings.HasPrefix(m.Content, prefix) {
		return false
	}
	return true
}

// Mentioned returns the users credited by m, excluding its author.
func Mentioned(m Message, prefix string) []model.UserID {
	if !Countable(m, prefix) {
		return nil
	}
	var ids []model.UserID
	for id := range Extract(m.Content, m.Mentions) {
		if id == m.AuthorID {
			continue
		}
		ids = append(ids, id)
	}
	return sortIDs(ids)
}

// ParseUserMention extracts the id from a lone user mention token.
func ParseUserMention(s string) (model.UserID, bool) {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || m[0] != strings.TrimSpace(s) {
		return "", false
	}
	return m[1], true
}
