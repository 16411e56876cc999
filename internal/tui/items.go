package tui

import (
	"fmt"
	"strings"

	"github.com/Joseda-hg/dashtrack/internal/board"
	"github.com/Joseda-hg/dashtrack/internal/model"
)

func optionIcon(options []model.Option, id string) string {
	for _, option := range options {
		if option.ID == id {
			return option.Icon
		}
	}
	return ""
}

func optionLabel(options []model.Option, id string) string {
	for _, option := range options {
		if option.ID == id {
			return option.Label
		}
	}
	if id == "" {
		return "n/a"
	}
	return id
}

func columnLabel(schema model.Schema, id string) string {
	if column, ok := schema.Column(id); ok {
		return column.Label
	}
	return id
}

func formatCard(card board.Card, schema model.Schema) string {
	parts := make([]string, 0, 7)
	if card.Key != "" {
		parts = append(parts, card.Key)
	}
	if icon := optionIcon(schema.Types, card.Type); icon != "" {
		parts = append(parts, icon)
	}
	if icon := optionIcon(schema.Priorities, card.Priority); icon != "" {
		parts = append(parts, icon)
	}
	parts = append(parts, card.Title)
	if card.Study != "" {
		parts = append(parts, "["+card.Study+"]")
	}
	if card.DueLabel != "" {
		due := "due " + card.DueLabel
		switch {
		case card.Overdue:
			due += " OVERDUE"
		case card.DueSoon:
			due += " soon"
		}
		parts = append(parts, due)
	}
	if card.Initials != "" {
		parts = append(parts, "@"+card.Initials)
	}
	return strings.Join(parts, " ")
}

func formatSummary(summary board.Summary) string {
	line := fmt.Sprintf("%d/%d done (%d%%)", summary.Completed, summary.Total, summary.Pct)
	if summary.Overdue > 0 {
		line += fmt.Sprintf(" | %d overdue", summary.Overdue)
	}
	return line
}

func formatHistoryEntry(entry model.HistoryEntry) string {
	return fmt.Sprintf("%s | %s | %s", entry.CreatedAt.Local().Format("2006-01-02 15:04"), entry.EventType, entry.Details)
}

func cardDetail(card board.Card, schema model.Schema) []string {
	title := card.Title
	if card.Key != "" {
		title = card.Key + " " + title
	}
	lines := []string{
		title,
		fmt.Sprintf("Status: %s | Priority: %s", columnLabel(schema, card.Status), optionLabel(schema.Priorities, card.Priority)),
	}
	if schema.HasTypes {
		lines = append(lines, fmt.Sprintf("Type: %s", optionLabel(schema.Types, card.Type)))
	}
	if card.Study != "" {
		lines = append(lines, fmt.Sprintf("Study: %s", card.Study))
	}
	if schema.HasAssignee && card.Assignee != "" {
		lines = append(lines, fmt.Sprintf("Assignee: %s", card.Assignee))
	}
	if card.DueDate != "" {
		lines = append(lines, fmt.Sprintf("Due: %s", card.DueDate))
	}
	if description := strings.TrimSpace(card.Description); description != "" {
		lines = append(lines, "", description)
	}
	return lines
}
