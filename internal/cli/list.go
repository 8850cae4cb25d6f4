package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vouchbot/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vouch counts, highest first",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results (0 for all)")
	cmd.Flags().Int("min", 0, "Only users with at least this many vouches")
	cmd.Flags().Bool("ids-only", false, "Only output user ids")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	minCount, _ := cmd.Flags().GetInt("min")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	entries, err := s.Load(cmd.Context())
	if err != nil {
		exitErr("list", err)
	}

	var out []entryView
	for _, e := range store.Sorted(entries) {
		if e.Count < minCount {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, viewOf(cfg, e))
	}

	if idsOnly {
		for _, e := range out {
			fmt.Fprintln(cmd.OutOrStdout(), e.UserID)
		}
		return
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
