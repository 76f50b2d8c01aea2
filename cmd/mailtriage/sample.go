package main

import (
	"github.com/spf13/cobra"

	"github.com/sortdesk/mailtriage/internal/cli"
)

func sampleCmd() *cobra.Command {
	var (
		startDate string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample recent messages for human labeling",
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

			result, err := eng.Train(ctx, since, limit)
			if err != nil {
				return err
			}

			cmd.Print(cli.RenderSamples(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "since", "", "sample messages received on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of messages to sample")
	_ = cmd.MarkFlagRequired("since")

	return cmd
}
