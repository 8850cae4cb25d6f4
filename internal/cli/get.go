package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vouchbot/internal/config"
	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/vouch"
)

// entryView is a count annotated with the tier it resolves to.
type entryView struct {
	UserID model.UserID `json:"user_id"`
	Count  int          `json:"count"`
	Tier   string       `json:"tier,omitempty"`
	RoleID model.RoleID `json:"role_id,omitempty"`
}

func viewOf(cfg config.Config, e model.Entry) entryView {
	v := entryView{UserID: e.UserID, Count: e.Count}
	if t, ok := cfg.Ladder().Resolve(e.Count); ok {
		v.Tier = t.Name
		v.RoleID = t.RoleID
	}
	return v
}

func init() {
	cmd := &cobra.Command{
		Use:   "get <user>",
		Short: "Show one user's vouch count and tier",
		Long:  "Show one user's vouch count and tier. The user may be an id or a <@id> mention.",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	userID := args[0]
	if id, ok := vouch.ParseUserMention(userID); ok {
		userID = id
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	entries, err := s.Load(cmd.Context())
	if err != nil {
		exitErr("get", err)
	}

	e := model.Entry{UserID: userID}
	for _, en := range entries {
		if en.UserID == userID {
			e = en
			break
		}
	}

	b, _ := json.MarshalIndent(viewOf(cfg, e), "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
