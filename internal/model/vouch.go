// Package model defines the core vouch data types.
package model

import "time"

// UserID is an opaque chat-platform user identifier.
type UserID = string

// RoleID is an opaque chat-platform role identifier.
type RoleID = string

// ChannelID is an opaque chat-platform channel identifier.
type ChannelID = string

// GuildID is an opaque chat-platform guild identifier.
type GuildID = string

// Tier pairs a role with the number of vouches required to hold it.
type Tier struct {
	RoleID   RoleID `json:"role_id"`
	Name     string `json:"name"`
	Required int    `json:"required"`
}

// Ladder is an ordered list of tiers, ascending by Required.
type Ladder []Tier

// RoleIDs returns every tier role in ladder order.
func (l Ladder) RoleIDs() []RoleID {
	ids := make([]RoleID, len(l))
	for i, t := range l {
		ids[i] = t.RoleID
	}
	return ids
}

// Index returns the position of the tier that applies to count: the greatest
// Required not exceeding count. Equal thresholds resolve to the later tier.
// Returns -1 when count is below every threshold.
func (l Ladder) Index(count int) int {
	at := -1
	for i, t := range l {
		if t.Required <= count && (at < 0 || t.Required >= l[at].Required) {
			at = i
		}
	}
	return at
}

// Resolve returns the tier that applies to count.
func (l Ladder) Resolve(count int) (Tier, bool) {
	at := l.Index(count)
	if at < 0 {
		return Tier{}, false
	}
	return l[at], true
}

// Contains reports whether roleID is one of the ladder's tier roles.
func (l Ladder) Contains(roleID RoleID) bool {
	for _, t := range l {
		if t.RoleID == roleID {
			return true
		}
	}
	return false
}

// Entry is a single user's persisted vouch count.
type Entry struct {
	UserID UserID `json:"user_id"`
	Count  int    `json:"count"`
}

// Event is a journal record of one counter mutation.
type Event struct {
	ID        string    `json:"id"`
	UserID    UserID    `json:"user_id,omitempty"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Actor     UserID    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal reasons.
const (
	ReasonVouch   = "vouch"
	ReasonUnvouch = "unvouch"
	ReasonMention = "mention"
	ReasonScan    = "scan"
	ReasonReset   = "reset"
	ReasonWipe    = "wipe"
	ReasonImport  = "import"
)

// Guild-specific identifiers.
const (
	VouchChannelID          ChannelID = "1306602749621698560"
	DefaultVouchChannelName           = "vouch"
	ModRoleID               RoleID    = "1306596690903437323"
	OwnerRoleID             RoleID    = "1306596817588191274"
)

// DefaultLadder is the guild's reputation ladder.
var DefaultLadder = Ladder{
	{RoleID: "1339056153170284576", Name: "Trainer", Required: 3},
	{RoleID: "1339056251090243654", Name: "Seasoned Gym Leader", Required: 15},
	{RoleID: "1339056315904954471", Name: "Elite 4", Required: 30},
}

// DefaultCap is the ceiling applied to every increment path.
const DefaultCap = 50
