package cli

import (
	"fmt"
	"strings"

	"github.com/sortdesk/mailtriage/internal/engine"
	"github.com/sortdesk/mailtriage/internal/model"
)

// RenderProcessResult formats a triage run for the terminal.
func RenderProcessResult(result *engine.ProcessResult) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Triage results"))
	b.WriteString("\n")

	for _, item := range result.Items {
		label := model.Label(item.Priority)
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			LabelStyle(label).Render(fmt.Sprintf("%-6s", item.Priority)),
			item.Subject))
		if item.Summary != "" {
			b.WriteString(SubtleStyle.Render("          " + truncate(item.Summary, 100)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(SuccessStyle.Render(fmt.Sprintf(
		"Moved %d messages (HIGH %d, MEDIUM %d, LOW %d)",
		result.MovedCounts.Total(),
		result.MovedCounts.High,
		result.MovedCounts.Medium,
		result.MovedCounts.Low)))
	if result.Skipped > 0 || result.Failed > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf(
			"  skipped %d, failed %d", result.Skipped, result.Failed)))
	}
	b.WriteString("\n")

	return b.String()
}

// RenderRecoveryResult formats the low-priority review list.
func RenderRecoveryResult(result *engine.RecoveryResult) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Low-priority messages awaiting review"))
	b.WriteString("\n")

	if len(result.Items) == 0 {
		b.WriteString(SubtleStyle.Render("  (none)"))
		b.WriteString("\n")
		return b.String()
	}

	for _, item := range result.Items {
		b.WriteString(fmt.Sprintf("  %s\n", item.Subject))
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("    id: %s", item.EmailID)))
		b.WriteString("\n")
		if item.GmailLink != "" {
			b.WriteString(SubtleStyle.Render("    " + item.GmailLink))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderSamples formats sampled messages for labeling.
func RenderSamples(result *engine.TrainResult) string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Messages sampled for labeling"))
	b.WriteString("\n")

	for _, sample := range result.Samples {
		b.WriteString(fmt.Sprintf("  %s\n", sample.Subject))
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("    id: %s", sample.EmailID)))
		b.WriteString("\n")
		if sample.Summary != "" {
			b.WriteString(SubtleStyle.Render("    " + truncate(sample.Summary, 100)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(SuccessStyle.Render(result.Message))
	b.WriteString("\n")

	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
