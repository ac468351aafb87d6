package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/shiftsync/internal/client"
	"github.com/matheus3301/shiftsync/internal/config"
	"github.com/matheus3301/shiftsync/internal/profile"
)

// App holds what every command needs once flags are parsed.
type App struct {
	cfg     *config.Config
	root    string
	client  *client.Client
	jsonOut bool
	ctx     context.Context
}

var (
	profileFlag string
	jsonFlag    bool
	timeout     time.Duration
	app         = &App{}
)

// offline marks commands that run without a daemon.
const offline = "offline"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "shiftctl",
		Short:         "Talk to a running shiftsyncd",
		Long:          `Read the live shift, job and conversation feeds of a profile and send intents to the marketplace.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initApp(ctx, cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if app.client != nil {
				_ = app.client.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", "profile name (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")

	rootCmd.AddCommand(
		statusCmd(),
		feedCmd(),
		watchCmd(),
		seenCmd(),
		filterCmd(),
		availCmd(),
		acceptCmd(),
		declineCmd(),
		cancelCmd(),
		applyCmd(),
		applyJobCmd(),
		postJobCmd(),
		profileCmd(),
		callsCmd(),
		configCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func initApp(ctx context.Context, cmd *cobra.Command) error {
	app.ctx = ctx
	app.jsonOut = jsonFlag
	app.root = profile.Root()

	cfg, err := config.Resolve(profile.ConfigPath(app.root))
	if err != nil {
		return err
	}
	if profileFlag != "" {
		if err := profile.ValidateName(profileFlag); err != nil {
			return err
		}
		cfg.Profile = profileFlag
	}
	app.cfg = cfg

	if cmd.Annotations[offline] != "" {
		return nil
	}
	socketPath := profile.New(app.root, cfg.Profile).SocketPath()
	if _, err := os.Stat(socketPath); err != nil {
		return fmt.Errorf("daemon for profile %q is not running (start it with: shiftsyncd --profile %s)", cfg.Profile, cfg.Profile)
	}
	app.client, err = client.Dial(socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for profile %q: %w", cfg.Profile, err)
	}
	return nil
}

// request returns a context bounded by --timeout.
func request() (context.Context, context.CancelFunc) {
	return context.WithTimeout(app.ctx, timeout)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
