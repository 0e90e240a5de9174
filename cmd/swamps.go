package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/SK124/Swamp/internal/api"
	"github.com/SK124/Swamp/internal/config"
	"github.com/SK124/Swamp/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagPage     int
	flagPerPage  int
	flagTitle    string
	flagOwner    int
	flagMax      int
	flagStart    string
	flagDuration int
	flagTopic    uint
)

var swampsCmd = &cobra.Command{
	Use:   "swamps",
	Short: "List and create swamps",
}

var swampsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List swamps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadAPIClient()
		if err != nil {
			return err
		}

		stop := ui.RunConnectionSpinner("Fetching swamps...")
		page, err := client.ListSwamps(cmd.Context(), flagPage, flagPerPage)
		stop()
		if err != nil {
			return err
		}

		fmt.Println(ui.SwampTableView(page))
		return nil
	},
}

var swampsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a swamp",
	Args:  cobra.NoArgs,
	Long: `Create a swamp through the REST API.

Examples:
  swamp swamps create --title "Go meetup" --owner 1 --max 20 --duration 60
  swamp swamps create --title "Jazz" --owner 1 --max 5 --duration 30 --start 2026-11-01T18:00:00Z --topic 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		if flagStart != "" {
			t, err := time.Parse(time.RFC3339, flagStart)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			start = t
		}

		client, err := loadAPIClient()
		if err != nil {
			return err
		}

		sp := ui.NewConnectionSpinner("Creating swamp...")
		sp.Start()
		swamp, err := client.CreateSwamp(cmd.Context(), api.NewSwamp{
			Title:           flagTitle,
			OwnerID:         flagOwner,
			MaxParticipants: flagMax,
			StartTime:       start,
			Duration:        flagDuration,
			TopicID:         flagTopic,
		})
		if err != nil {
			sp.Stop()
			return err
		}
		sp.Success(fmt.Sprintf("Created swamp %q", swamp.Title))

		cfg, err := config.Load(loadOptions())
		if err != nil {
			return err
		}
		id := fmt.Sprint(swamp.ID)
		fmt.Println(ui.RoomInfo{
			SwampID:      id,
			UUID:         swamp.UUID,
			RoomLink:     cfg.RoomLink(id),
			WatchCommand: "swamp watch " + id,
		}.View())
		return nil
	},
}

func loadAPIClient() (*api.Client, error) {
	cfg, err := config.Load(loadOptions())
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg, slog.Default())
}

func init() {
	swampsListCmd.Flags().IntVar(&flagPage, "page", 0, "page number")
	swampsListCmd.Flags().IntVar(&flagPerPage, "per-page", 0, "swamps per page")

	f := swampsCreateCmd.Flags()
	f.StringVar(&flagTitle, "title", "", "swamp title")
	f.IntVar(&flagOwner, "owner", 0, "owner user id")
	f.IntVar(&flagMax, "max", 0, "maximum participants")
	f.StringVar(&flagStart, "start", "", "start time, RFC 3339 (default now)")
	f.IntVar(&flagDuration, "duration", 0, "duration in minutes")
	f.UintVar(&flagTopic, "topic", 0, "topic id")
	swampsCreateCmd.MarkFlagRequired("title")

	swampsCmd.AddCommand(swampsListCmd, swampsCreateCmd)
	rootCmd.AddCommand(swampsCmd)
}
