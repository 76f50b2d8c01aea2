package main

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sortdesk/mailtriage/internal/cli"
)

func processCmd() *cobra.Command {
	var startDate string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Classify and file messages received since a date",
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

			var bar *progressbar.ProgressBar
			eng.SetProgress(func(done, total int) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetDescription("Triaging"),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
				}
				_ = bar.Set(done)
			})

			result, err := eng.Process(ctx, since)
			if bar != nil {
				_ = bar.Finish()
			}
			if result != nil {
				cmd.Print(cli.RenderProcessResult(result))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&startDate, "since", "", "process messages received on or after this date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("since")

	return cmd
}
