package main

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/warden/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the warden version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.String())
	},
}
