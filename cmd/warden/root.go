package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - guardrail evaluation pipeline for agent gateways",
	Long: `Warden runs pluggable safety guardrails over the four interception
points of an LLM agent turn: the outbound prompt, outbound tool calls,
inbound tool results, and the final assistant response.

The check command evaluates one stage payload against the configured
guardrails, which is useful for validating a guardrail configuration
before wiring it into a gateway.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "warden.yaml", "Path to the warden configuration file")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}
