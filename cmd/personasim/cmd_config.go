package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/personasim/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration documents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate agent, goal generator or virtual user documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			type report struct {
				Path  string `json:"path"`
				Kind  string `json:"kind"`
				Valid bool   `json:"valid"`
				Error string `json:"error,omitempty"`
			}

			var (
				reports []report
				invalid int
			)
			for _, path := range args {
				kind, err := config.ValidateFile(path)
				r := report{Path: path, Kind: kind, Valid: err == nil}
				if err != nil {
					r.Error = err.Error()
					invalid++
				}
				reports = append(reports, r)
			}

			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					if r.Valid {
						fmt.Fprintf(cmd.OutOrStdout(), "ok    %s (%s)\n", r.Path, r.Kind)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %s\n", r.Path, r.Error)
					}
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d documents invalid", invalid, len(args))
			}
			return nil
		},
	})
	return cmd
}
