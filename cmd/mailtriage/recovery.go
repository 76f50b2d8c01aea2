package main

import (
	"github.com/spf13/cobra"

	"github.com/sortdesk/mailtriage/internal/cli"
)

func recoveryCmd() *cobra.Command {
	var startDate string

	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "List low-priority messages awaiting review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			since, err := parseStartDate(startDate)
			if err != nil {
				return err
			}

			eng, cleanup, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.Recovery(ctx, since)
			if err != nil {
				return err
			}

			cmd.Print(cli.RenderRecoveryResult(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "since", "", "list messages moved on or after this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("since")

	return cmd
}
