package cmd

import (
	"fmt"

	"github.com/SK124/Swamp/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying the config file, environment and flags.

Reconnects default to the exponential policy: the delay starts at the
role's base delay (2s broadcasting, 1s watching) and doubles up to
max_delay. Set reconnect.policy to "fixed" (or pass --reconnect-policy fixed)
to retry after the same delay every time.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(loadOptions())
		if err != nil {
			return err
		}
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
