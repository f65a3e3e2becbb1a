package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/personasim"
	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/server"
)

func newServeCmd(settings config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			personasDir, _ := cmd.Flags().GetString("personas-dir")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			sim, err := a.simulator(func(o *personasim.Options) { o.Concurrency = concurrency })
			if err != nil {
				return err
			}

			srv := server.New(a.personas, sim, func(o *server.Options) {
				o.Results = a.results
				o.Metrics = a.metrics
				o.Logger = a.logger
				o.PersonasDir = personasDir
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().String("addr", settings.Addr, "Listen address")
	cmd.Flags().Int("concurrency", settings.Concurrency, "Conversations running at once per batch")
	return cmd
}
