// Package cmd implements the command-line interface for freebusy.
//
// This package provides the following commands:
//   - quickstart: Authorize user1 and build a calendar client
//   - auth: Run the consent flow for a user, or forget their token
//   - busy: Print the busy time of a user's primary calendar
//   - availability: Print the time several users are all free
//   - serve: Serve /availability and /freebusy/{user} over HTTP
//   - version: Display version information
//
// The quickstart command is the default command when no subcommand is specified.
//
// Persistent flags are bound through viper, so every flag can also be set
// with a FREEBUSY_ environment variable (FREEBUSY_TOKEN_STORE=sqlite) or in
// the file named by --config.
package cmd
