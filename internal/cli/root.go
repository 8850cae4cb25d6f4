// Package cli implements the vouchbot commands: the bot itself and offline
// tools over the vouch store.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/vouchbot/internal/config"
	"github.com/rcliao/vouchbot/internal/store"
)

var (
	dataPath     string
	storeBackend string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "vouchbot",
	Short: "Discord vouch reputation bot",
	Long:  "Counts vouches posted as @mentions in a guild's vouch channel and keeps tier roles in sync with the counts.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "Vouch data path (default: $VOUCH_DATA or vouchData.json)")
	RootCmd.PersistentFlags().StringVarP(&storeBackend, "store", "s", "", "Store backend: json or sqlite (default: $VOUCH_STORE or json)")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if storeBackend != "" {
		cfg.StoreBackend = storeBackend
	}
	return cfg
}

func openStore(cfg config.Config) store.Store {
	s, err := store.Open(cfg.StoreBackend, cfg.DataPath)
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
