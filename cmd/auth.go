package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/freebusy/internal/tokenstore"
)

func newAuthCmd() *cobra.Command {
	var (
		user   string
		forget bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize a user or forget their stored token",
		Long: `Run the browser consent flow for a user and store the resulting token,
replacing any token already stored.

With --forget the stored token is deleted instead and no flow is run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if forget {
				err := a.auth.Forget(ctx, user)
				if errors.Is(err, tokenstore.ErrNotFound) {
					fmt.Fprintf(out, "No token stored for %s\n", user)
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to forget %s: %w", user, err)
				}
				fmt.Fprintf(out, "Forgot token for %s\n", user)
				return nil
			}

			if err := a.auth.Authorize(ctx, user); err != nil {
				return err
			}
			fmt.Fprintf(out, "Authorized %s\n", user)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", defaultUser, "User id the token is stored under")
	cmd.Flags().BoolVar(&forget, "forget", false, "Delete the stored token instead of authorizing")

	return cmd
}
