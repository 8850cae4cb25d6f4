package bot

import (
	"strings"

	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/vouch"
)

var commands = map[string]bool{
	CmdVouch:   true,
	CmdVouches: true,
	CmdUnvouch: true,
	CmdReset:   true,
	CmdWipe:    true,
	CmdSearch:  true,
}

// ParsePrefixCommand parses the text after the command prefix. The target
// is taken from the first structured mention, falling back to the first
// mention token among the arguments. "vouch search" is accepted as an alias
// of vouchsearch.
func ParsePrefixCommand(text string, mentions []model.UserID) (Invocation, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Invocation{}, false
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]
	if name == CmdVouch && len(args) > 0 && strings.EqualFold(args[0], "search") {
		name = CmdSearch
		args = args[1:]
	}
	if !commands[name] {
		return Invocation{}, false
	}

	inv := Invocation{Name: name}
	var rest []string
	for _, a := range args {
		if id, ok := vouch.ParseUserMention(a); ok {
			if inv.Target == "" {
				inv.Target = id
			}
			continue
		}
		rest = append(rest, a)
	}
	if len(mentions) > 0 {
		inv.Target = mentions[0]
	}
	if name == CmdSearch && len(rest) > 0 {
		inv.ChannelArg = rest[0]
	}
	return inv, true
}
