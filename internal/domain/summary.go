package domain

import (
	"fmt"
	"strings"
)

// ChangeSummary renders a one-line overview of a ChangeSet for edit lists.
func ChangeSummary(changes ChangeSet) string {
	if len(changes.Sections) == 0 {
		if changes.Comment != "" {
			return "Comment added."
		}
		return "No changes listed."
	}
	if changes.FieldCount() == 0 {
		if changes.Comment != "" {
			return "Comment added."
		}
		return "No specific field changes found."
	}

	parts := make([]string, 0, len(changes.Sections))
	for _, section := range changes.Sections {
		parts = append(parts, fmt.Sprintf("%s (%d fields)", section.Key.Label(), len(section.Diff)))
	}
	return strings.Join(parts, ", ")
}
