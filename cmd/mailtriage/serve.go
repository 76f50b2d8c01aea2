package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sortdesk/mailtriage/internal/server"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the triage HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			eng, cleanup, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			addr := viper.GetString("server.addr")
			if port := viper.GetString("server.port"); port != "" {
				addr = ":" + port
			}

			return server.New(eng).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().String("addr", ":5000", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}
