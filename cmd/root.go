package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the freebusy application
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "freebusy",
		Short: "Reads Google Calendar free/busy time and finds common availability",
		Long: `freebusy authorizes against Google Calendar with read-only access, resolves
each user's primary calendar and reports busy time for the next seven days.

It can run as:
  - A CLI for authorizing users and querying busy or free time
  - An HTTP server answering /availability and /freebusy/{user}`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initSettings(cmd)
		},
	}

	addPersistentFlags(root)

	root.AddCommand(newQuickstartCmd())
	root.AddCommand(newAuthCmd())
	root.AddCommand(newBusyCmd())
	root.AddCommand(newAvailabilityCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "freebusy version %s\n" .Version}}`)

	// If no subcommand is provided, run the quickstart command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "quickstart")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
