package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perkdesk/perkdesk/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "perkdesk: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "perkdesk",
		Short:         "Staff console and backend proxy for a customer loyalty program",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "override config path (default ~/.config/perkdesk/config.toml)")

	console := newConsoleCmd(&configPath)
	root.AddCommand(newServeCmd(&configPath), console)

	// Bare invocation opens the console.
	root.Flags().AddFlagSet(console.Flags())
	root.RunE = console.RunE
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var opts app.ServeOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the backend proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = *configPath
			return app.Serve(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.BackendURL, "backend-url", "", "remote script service URL (overrides config)")
	return cmd
}

func newConsoleCmd(configPath *string) *cobra.Command {
	var opts app.Options
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open the staff console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = *configPath
			return app.Run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.PrefsPath, "prefs", "", "override prefs path (default ~/.config/perkdesk/prefs.toml)")
	cmd.Flags().IntVar(&opts.PollEvery, "poll", 0, "refresh interval in seconds (optional, defaults to 15s)")
	return cmd
}
