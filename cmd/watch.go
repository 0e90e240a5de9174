package cmd

import (
	"github.com/SK124/Swamp/internal/room"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch <swamp-id | stream-link>",
	Aliases: []string{"w"},
	Short:   "Watch the streams of a swamp",
	Long: `Watch joins a swamp as a viewer. Pass a swamp id to look up its stream, or a
stream link (ws://host/room/{uuid}/websocket) to connect directly.

Examples:
  swamp watch 123456
  swamp watch ws://localhost:8081/room/4f1c.../websocket`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := roomTarget{Role: room.Viewer, SwampID: args[0]}
		if isStreamLink(args[0]) {
			uuid, err := uuidFromStreamLink(args[0])
			if err != nil {
				return err
			}
			target.SwampID = uuid
			target.StreamLink = args[0]
			target.ChatUUID = uuid
		}
		return runRoom(cmd.Context(), target)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
