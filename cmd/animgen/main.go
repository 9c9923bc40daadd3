// Package main provides the animgen command line tool. It runs the
// generation pipeline locally without the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "animgen"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Turn a concept into a Manim animation script",
		Long: `animgen runs the concept-to-animation pipeline locally.

It analyzes a concept, plans the scenes, generates Manim code and validates it
with the LLM provider configured through the usual environment variables
(LLM_PROVIDER, LLM_API_KEY, ...). Artifacts are written below the output dir.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(generateCmd(&logLevel))
	cmd.AddCommand(tokenCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
