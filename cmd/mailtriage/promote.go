package main

import (
	"github.com/spf13/cobra"

	"github.com/sortdesk/mailtriage/internal/cli"
	"github.com/sortdesk/mailtriage/internal/model"
)

func promoteCmd() *cobra.Command {
	var (
		emailID  string
		priority string
	)

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote a low-priority message to HIGH or MEDIUM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			label, err := model.ParseLabel(priority)
			if err != nil {
				return err
			}

			eng, cleanup, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.Promote(ctx, emailID, label)
			if err != nil {
				return err
			}

			cmd.Println(cli.SuccessStyle.Render(result.Message))
			return nil
		},
	}

	cmd.Flags().StringVar(&emailID, "id", "", "message id to promote")
	cmd.Flags().StringVar(&priority, "to", "", "new priority (HIGH or MEDIUM)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
