package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SK124/Swamp/internal/api"
	"github.com/SK124/Swamp/internal/ui"
	"github.com/spf13/cobra"
)

var flagFollow []uint

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List, create and follow topics",
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadAPIClient()
		if err != nil {
			return err
		}

		stop := ui.RunConnectionSpinner("Fetching topics...")
		topics, err := client.ListTopics(cmd.Context())
		stop()
		if err != nil {
			return err
		}

		fmt.Println(ui.TopicTableView(topics))
		return nil
	},
}

var topicsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := loadAPIClient()
		if err != nil {
			return err
		}

		sp := ui.NewSimpleSpinner("Creating topic...")
		sp.Start()
		topic, err := client.CreateTopic(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			sp.Stop()
			return err
		}
		sp.Success(fmt.Sprintf("Created topic %q (id %d)", topic.Name, topic.ID))
		ui.PrintInfof("%s Follow it with: swamp topics user <user-id> --follow %d", ui.IconTopic, topic.ID)
		return nil
	},
}

var topicsUserCmd = &cobra.Command{
	Use:   "user <user-id>",
	Short: "Show or extend the topics a user follows",
	Long: `Show the topics a user follows. With --follow the given topic ids are added
first.

Examples:
  swamp topics user 1
  swamp topics user 1 --follow 3,4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		client, err := loadAPIClient()
		if err != nil {
			return err
		}

		if len(flagFollow) > 0 {
			if err := client.AddUserTopic(cmd.Context(), userID, flagFollow...); err != nil {
				return err
			}
			ui.PrintSuccessf("User %d now follows %d more topic(s)", userID, len(flagFollow))
		}

		ids, err := client.UserTopics(cmd.Context(), userID)
		if err != nil {
			return err
		}
		all, err := client.ListTopics(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(ui.TopicTableView(followed(all, ids)))
		return nil
	},
}

// followed keeps the topics whose id is in ids, in listing order. Ids with
// no matching topic are shown without a name.
func followed(all []api.Topic, ids []uint) []api.Topic {
	want := make(map[uint]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []api.Topic
	for _, t := range all {
		if want[t.ID] {
			out = append(out, t)
			delete(want, t.ID)
		}
	}
	for _, id := range ids {
		if want[id] {
			out = append(out, api.Topic{ID: id, Name: "?"})
			delete(want, id)
		}
	}
	return out
}

func init() {
	topicsUserCmd.Flags().UintSliceVar(&flagFollow, "follow", nil, "topic ids to follow")

	topicsCmd.AddCommand(topicsListCmd, topicsCreateCmd, topicsUserCmd)
	rootCmd.AddCommand(topicsCmd)
}
