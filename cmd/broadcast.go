package cmd

import (
	"github.com/SK124/Swamp/internal/room"
	"github.com/spf13/cobra"
)

var broadcastCmd = &cobra.Command{
	Use:     "broadcast <swamp-id>",
	Aliases: []string{"b"},
	Short:   "Broadcast your camera and microphone into a swamp",
	Long: `Broadcast captures the local camera and microphone and streams them into a
swamp. The connection is re-established automatically when the room socket
drops.

Examples:
  swamp broadcast 123456
  swamp broadcast --relay 123456`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoom(cmd.Context(), roomTarget{
			Role:    room.Broadcaster,
			SwampID: args[0],
		})
	},
}

func init() {
	rootCmd.AddCommand(broadcastCmd)
}
