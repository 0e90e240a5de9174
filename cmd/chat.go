package cmd

import (
	"log/slog"

	"github.com/SK124/Swamp/internal/config"
	"github.com/SK124/Swamp/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <swamp-uuid>",
	Short: "Join a swamp's chat without media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(loadOptions())
		if err != nil {
			return err
		}

		model := ui.NewRoomModel(ui.RoomOptions{
			ChatOnly: true,
			ChatUUID: args[0],
			DialChat: chatDialer(cmd.Context(), cfg, slog.Default()),
		})
		defer model.Close()

		_, err = tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
		if cmd.Context().Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
