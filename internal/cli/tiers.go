package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Show the tier ladder",
		Run:   runTiers,
	}

	RootCmd.AddCommand(cmd)
}

func runTiers(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	b, _ := json.MarshalIndent(cfg.Ladder(), "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
