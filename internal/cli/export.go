package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vouchbot/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export vouch counts as JSON",
		Long:  "Export vouch counts as a JSON array of [user_id, count] pairs, the format of the JSON store file.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s := openStore(loadConfig())
	defer s.Close()

	entries, err := s.Load(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	b, err := store.MarshalPairs(entries)
	if err != nil {
		exitErr("export", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
