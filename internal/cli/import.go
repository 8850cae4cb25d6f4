package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/vouchbot/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import vouch counts from JSON",
		Long:  "Import vouch counts from JSON (stdin or --file). Expects the format produced by export. Do not import while the bot is running.",
		Run:   runImport,
	}

	cmd.Flags().StringP("file", "f", "", "Read from file instead of stdin")
	cmd.Flags().Bool("merge", false, "Add imported counts to existing ones instead of replacing the store")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")
	merge, _ := cmd.Flags().GetBool("merge")

	var (
		data []byte
		err  error
	)
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		exitErr("read input", err)
	}

	entries, err := store.UnmarshalPairs(data)
	if err != nil {
		exitErr("parse json", err)
	}

	s := openStore(loadConfig())
	defer s.Close()

	imported, err := store.Import(cmd.Context(), s, entries, merge)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d,"merge":%t}`+"\n", imported, merge)
}
