package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SK124/Swamp/internal/config"
	"github.com/SK124/Swamp/internal/logging"
	"github.com/SK124/Swamp/internal/metrics"
	"github.com/SK124/Swamp/internal/ui"
	"github.com/SK124/Swamp/internal/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConfig        string
	flagAPI           string
	flagSignalingHost string
	flagSTUN          string
	flagTURN          string
	flagTURNUser      string
	flagTURNPass      string
	flagRelay         bool
	flagPolicy        string
	flagMaxAttempts   int
	flagMetricsAddr   string
	flagName          string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swamp",
	Short: "Terminal client for The Swamp live discussion rooms",
	Long: `swamp joins The Swamp discussion rooms from the terminal. Broadcast your
camera and microphone into a swamp, watch a swamp's streams, chat with the
room and manage swamps and topics through the REST API.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			ui.PrintWarning("ignoring .env: " + err.Error())
		}
		logging.Init()

		if flagMetricsAddr != "" {
			go func() {
				if err := metrics.Serve(cmd.Context(), flagMetricsAddr, slog.Default()); err != nil {
					slog.Error("metrics server stopped", "error", err)
				}
			}()
		}
		return nil
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagConfig, "config", "", "path to a YAML config file (reloaded on change)")
	f.StringVar(&flagAPI, "api", "", "REST API base URL")
	f.StringVar(&flagSignalingHost, "signaling-host", "", "host:port of the room websocket service")
	f.StringVar(&flagSTUN, "stun", "", "STUN server URL")
	f.StringVar(&flagTURN, "turn", "", "TURN server URL")
	f.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	f.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	f.BoolVar(&flagRelay, "relay", false, "only use TURN relay candidates")
	f.StringVar(&flagPolicy, "reconnect-policy", "", "reconnect policy: fixed or exponential (default exponential)")
	f.IntVar(&flagMaxAttempts, "max-attempts", 0, "give up after this many failed reconnects (0 retries forever)")
	f.StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&flagName, "name", os.Getenv("SWAMP_USER"), "name shown in chat")
}

func loadOptions() config.Options {
	return config.Options{
		ConfigPath:    flagConfig,
		APIBaseURL:    flagAPI,
		SignalingHost: flagSignalingHost,
		STUNServer:    flagSTUN,
		TURNServer:    flagTURN,
		TURNUser:      flagTURNUser,
		TURNPass:      flagTURNPass,
		ForceRelay:    flagRelay,
		Policy:        flagPolicy,
		MaxAttempts:   flagMaxAttempts,
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
