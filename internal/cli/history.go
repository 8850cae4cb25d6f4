package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vouchbot/internal/store"
	"github.com/rcliao/vouchbot/internal/vouch"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the vouch mutation journal, newest first",
		Long:  "Show the vouch mutation journal, newest first. Only the sqlite store keeps a journal.",
		Run:   runHistory,
	}

	cmd.Flags().StringP("user", "u", "", "Filter by user id or <@id> mention")
	cmd.Flags().IntP("limit", "l", 50, "Max events")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	if id, ok := vouch.ParseUserMention(user); ok {
		user = id
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	j, ok := s.(store.Journal)
	if !ok {
		exitErr("history", errors.New("the "+cfg.StoreBackend+" store keeps no journal; use --store sqlite"))
	}

	events, err := j.History(cmd.Context(), store.HistoryParams{UserID: user, Limit: limit})
	if err != nil {
		exitErr("history", err)
	}

	b, _ := json.MarshalIndent(events, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
