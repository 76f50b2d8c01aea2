package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sortdesk/mailtriage/internal/cli"
	"github.com/sortdesk/mailtriage/internal/engine"
)

func labelCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Submit human labels and retrain the classifier",
		Long: `Reads labeled samples from a JSON file of the form

  [{"email_id": "...", "subject": "...", "summary": "...", "label": "HIGH"}]

stores them, and retrains the classifier once enough labels have accumulated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read labels file: %w", err)
			}

			var items []engine.LabelItem
			if err := json.Unmarshal(data, &items); err != nil {
				return fmt.Errorf("failed to parse labels file: %w", err)
			}

			eng, cleanup, err := initEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.Label(ctx, items)
			if err != nil {
				return err
			}

			cmd.Println(cli.SuccessStyle.Render(result.Message))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON file with labeled samples")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
