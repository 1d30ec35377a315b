package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/freebusy/internal/calendar"
)

// defaultUser is the token store key used when no --user is given.
const defaultUser = "user1"

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "Authorize the default user and build a calendar client",
		Long: `Acquire the credential for user1, running the browser consent flow when no
usable token is stored, then build an authenticated Calendar client.

This is the default command when no subcommand is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuickstart(cmd)
		},
	}
}

func runQuickstart(cmd *cobra.Command) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := newApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ts, err := a.auth.TokenSource(ctx, defaultUser)
	if err != nil {
		return fmt.Errorf("failed to acquire credential: %w", err)
	}
	if _, err := calendar.NewClient(ctx, ts); err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Authorized %s; calendar client ready\n", defaultUser)
	return nil
}

// commandContext is cmd's context cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
