package vouch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSelfVouch       = errors.New("you can't vouch for yourself")
	ErrNoVouches       = errors.New("user has no vouches to remove")
	ErrAtCap           = errors.New("user is already at the maximum vouch count")
	ErrNotMember       = errors.New("user is not a member of this server")
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotTextChannel  = errors.New("channel is not text-based")
)

// PermissionError reports capabilities the bot lacks in a channel.
type PermissionError struct {
	Channel string
	Missing []string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("missing permissions in #%s: %s", e.Channel, strings.Join(e.Missing, ", "))
}

// IsPermission reports whether err is a *PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
