package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hupe1980/personasim/config"
)

var version = "0.1.0-dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	if err := newRootCmd(config.LoadSettings()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(settings config.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "personasim",
		Short: "Persona-driven conversation simulation",
		Long: `personasim stress-tests conversational agents with simulated users.

Personas derived from survey data pursue generated good-faith and bad-faith
goals against an agent configuration; every conversation is recorded as a
transcript with a terminal status.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.Bool("json", false, "Output as JSON")
	flags.String("log-level", settings.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", settings.LogFormat, "Log format: json or text")
	flags.String("agent-dir", settings.AgentDir, "Directory of agent configuration documents")
	flags.String("db", settings.Database, "SQLite persona database (empty keeps personas in memory)")
	flags.String("personas-dir", "personas", "Directory of persona JSON documents loaded when no database is set")
	flags.String("results-dir", settings.ResultsDir, "Directory batch results are written to")
	flags.String("goal-config", settings.GoalGeneratorConfig, "Goal generator configuration (default: built-in)")
	flags.String("user-config", settings.VirtualUserConfig, "Virtual user configuration (default: built-in)")
	flags.Float64("rate-limit", settings.RateLimit, "Maximum LLM requests per second (0 disables)")
	flags.Duration("session-timeout", settings.SessionTimeout, "Timeout per conversation (0 disables)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(settings),
		newServeCmd(settings),
		newPersonasCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "personasim version %s\n", version)
			}
		},
	}
}
