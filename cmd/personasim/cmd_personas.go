package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/personasim/persona"
)

func newPersonasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "Manage the persona store",
	}
	cmd.AddCommand(newPersonasImportCmd(), newPersonasListCmd())
	return cmd
}

func newPersonasImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Import persona JSON documents into the database",
		Long: `Import every *.json persona document of a directory into the SQLite
persona database. Personas whose id already exists are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				return errors.New("personas import requires --db")
			}

			store, err := persona.NewSQLiteStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ImportDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]int{"imported": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d personas\n", n)
			return nil
		},
	}
}

func newPersonasListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List personas",
		Long: `List personas from the database, or from --personas-dir when no
database is set.

Examples:
  personasim personas list --db personas.db
  personasim personas list --filter self_identified_country=Kenya --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, _ := cmd.Flags().GetStringSlice("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			f := persona.Filter{Limit: limit}
			for _, kv := range filters {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid filter %q, expected key=value", kv)
				}
				if f.Attributes == nil {
					f.Attributes = map[string]string{}
				}
				f.Attributes[k] = v
			}

			store, closeFn, err := openPersonaStore(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ps, err := store.List(cmd.Context(), f)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ps)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPARTICIPANT\tLANGUAGE")
			for _, p := range ps {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.ParticipantID, p.ResponseLanguage)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringSlice("filter", nil, "Attribute filter key=value (repeatable)")
	cmd.Flags().Int("limit", 0, "Maximum number of personas (0 lists all)")
	return cmd
}
