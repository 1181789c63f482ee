package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/campus/cmd/campus/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "campus",
		Short:         "Campus Connect: feed, file library, events and stats",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentPreRunE = cmd.Setup
	rootCmd.PersistentPostRun = cmd.Teardown

	rootCmd.AddCommand(cmd.AuthCmds()...)
	rootCmd.AddCommand(cmd.PostsCmd())
	rootCmd.AddCommand(cmd.FilesCmd())
	rootCmd.AddCommand(cmd.OfflineCmd())
	rootCmd.AddCommand(cmd.ProfileCmd())
	rootCmd.AddCommand(cmd.StatsCmd())
	rootCmd.AddCommand(cmd.EventsCmd())
	rootCmd.AddCommand(cmd.ServeObjectsCmd())
	rootCmd.AddCommand(cmd.WatchCmd())

	if err := rootCmd.Execute(); err != nil {
		cmd.Fail(err)
		os.Exit(1)
	}
}
