package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor  bool
	userFlag int64
)

var rootCmd = &cobra.Command{
	Use:           "apptrack",
	Short:         "Track job applications with a CV-derived profile",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().Int64Var(&userFlag, "user", 0, "acting user ID (default cli.user_id)")

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(profileCmd, appsCmd, interviewCmd, assistCmd, exportCmd)
	rootCmd.AddCommand(configCmd, userCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
