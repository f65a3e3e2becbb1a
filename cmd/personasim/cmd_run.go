package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/personasim"
	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/goal"
)

func newRunCmd(settings config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation batch",
		Long: `Run one simulation batch for a persona/agent pair.

Goals are generated for the pair, then one conversation per goal runs until
the turn limit or a stop signal. The batch result is written as JSON.

Examples:
  personasim run --persona kenya_urban_01 --agent health-coach
  personasim run --persona kenya_urban_01 --agent health-coach --goals 6 --good-faith 4 --bad-faith 2
  personasim run --persona kenya_urban_01 --agent health-coach --out result.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			personaID, _ := cmd.Flags().GetString("persona")
			agentID, _ := cmd.Flags().GetString("agent")
			numGoals, _ := cmd.Flags().GetInt("goals")
			maxTurns, _ := cmd.Flags().GetInt("turns")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			perGoal, _ := cmd.Flags().GetInt("conversations-per-goal")
			good, _ := cmd.Flags().GetInt("good-faith")
			bad, _ := cmd.Flags().GetInt("bad-faith")
			out, _ := cmd.Flags().GetString("out")
			quiet, _ := cmd.Flags().GetBool("quiet")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			sim, err := a.simulator(func(o *personasim.Options) {
				o.Concurrency = concurrency
				o.ConversationsPerGoal = perGoal
				if !quiet {
					o.Progress = func(stage string, percent int) {
						fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", percent, stage)
					}
				}
			})
			if err != nil {
				return err
			}

			res, err := sim.RunBatch(ctx, personasim.BatchRequest{
				PersonaID:     personaID,
				AgentConfigID: agentID,
				NumGoals:      numGoals,
				MaxTurns:      maxTurns,
				Mix:           goal.FaithMix{GoodFaith: good, BadFaith: bad},
			})
			if err != nil {
				return err
			}

			if err := writeResult(cmd.OutOrStdout(), out, res); err != nil {
				return err
			}
			printSummary(cmd.ErrOrStderr(), res)
			if res.Failed() {
				return fmt.Errorf("batch failed: %s", res.Error.Error())
			}
			return nil
		},
	}

	cmd.Flags().String("persona", "", "Persona id (required)")
	cmd.Flags().String("agent", "", "Agent configuration id (required)")
	cmd.Flags().Int("goals", 5, "Number of goals to generate")
	cmd.Flags().Int("turns", 10, "Maximum turns per conversation")
	cmd.Flags().Int("concurrency", settings.Concurrency, "Conversations running at once")
	cmd.Flags().Int("conversations-per-goal", 1, "Conversations per generated goal")
	cmd.Flags().Int("good-faith", 0, "Good-faith goals (default: even split)")
	cmd.Flags().Int("bad-faith", 0, "Bad-faith goals (default: even split)")
	cmd.Flags().String("out", "-", "Output file for the batch result (- for stdout)")
	cmd.Flags().Bool("quiet", false, "Suppress progress output")
	_ = cmd.MarkFlagRequired("persona")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func writeResult(stdout io.Writer, out string, res *core.BatchResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	data = append(data, '\n')
	if out == "" || out == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, res *core.BatchResult) {
	counts := res.Counts()
	fmt.Fprintf(w, "batch %s: %d goals, %d completed, %d failed\n",
		res.ID, len(res.Goals), counts[core.StatusCompleted], counts[core.StatusFailed])
	for _, s := range res.Sessions {
		if s.Error != nil {
			fmt.Fprintf(w, "  session %s: %s\n", s.ID, s.Error.Error())
		}
	}
}
