package main

import (
	"fmt"
	"strings"

	"github.com/loykin/migrado"
)

const defaultHistoryLimit = 10

// formatHistory lists runs newest first, at most limit of them; limit <= 0
// lists all.
func formatHistory(runs []migrado.Run, limit int) string {
	if len(runs) == 0 {
		return "History: none recorded.\n"
	}
	items := make([]migrado.Run, len(runs))
	for i := range runs {
		items[len(runs)-1-i] = runs[i]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	var b strings.Builder
	b.WriteString("History:\n")
	for _, r := range items {
		status := "ok"
		if r.Failed {
			status = "failed"
		}
		fmt.Fprintf(&b, "#%d %s %s via %s: %s at %s\n", r.ID, r.MigrationID, r.Direction, r.Phase, status, r.RanAt)
	}
	return b.String()
}
