// Package commands implements the dittopad command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/dittopad/cmd/dittopad/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "dittopad",
	Short: "DittoPad - per-user virtual notepad server",
	Long: `DittoPad is a TCP server exposing a line-oriented virtual notepad.

Clients connect with any raw TCP tool (nc, telnet), pick a username, type
lines into a private buffer and SAVE or LOAD named text files kept in the
user's own namespace of the configured store.

Use "dittopad [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittopad/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(config.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
