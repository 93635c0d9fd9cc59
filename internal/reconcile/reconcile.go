// Package reconcile implements the pure merge functions that produce the
// canonical command and history collections. Every mutation of canonical
// state in this repository, whether from a snapshot pull, a streamed event
// or a gateway response, goes through these functions. They never mutate
// their inputs and are idempotent, so applying the same change from two
// delivery paths is harmless.
package reconcile

import (
	"sort"
	"strings"

	"github.com/command-center/client-core/internal/models"
)

// HistoryLimit bounds the local execution history. History is a recency
// window, not an archive: an entry superseded by HistoryLimit newer ones
// is evicted even if it has not reached a terminal status.
const HistoryLimit = 100

// UpsertCommand replaces any entry sharing the definition's ID and returns
// the collection re-sorted by case-insensitive name.
func UpsertCommand(list []models.CommandDefinition, def models.CommandDefinition) []models.CommandDefinition {
	out := make([]models.CommandDefinition, 0, len(list)+1)
	for _, existing := range list {
		if existing.ID != def.ID {
			out = append(out, existing)
		}
	}
	out = append(out, def)
	SortCommands(out)
	return out
}

// DeleteCommand removes the entry with the given ID. Absent IDs are a
// no-op.
func DeleteCommand(list []models.CommandDefinition, id string) []models.CommandDefinition {
	out := make([]models.CommandDefinition, 0, len(list))
	for _, existing := range list {
		if existing.ID != id {
			out = append(out, existing)
		}
	}
	return out
}

// ReplaceCommands installs a full snapshot, sorted.
func ReplaceCommands(list []models.CommandDefinition) []models.CommandDefinition {
	out := make([]models.CommandDefinition, len(list))
	copy(out, list)
	SortCommands(out)
	return out
}

// UpsertExecution replaces any entry sharing the log's ID, re-sorts by
// startedAt descending and truncates to HistoryLimit. The incoming log is
// a full replacement, not a field-level patch; a late-arriving older
// update for the same ID overwrites a newer one, which is accepted because
// the authority delivers per-ID updates in order on a single connection.
func UpsertExecution(list []models.ExecutionLog, entry models.ExecutionLog) []models.ExecutionLog {
	out := make([]models.ExecutionLog, 0, len(list)+1)
	for _, existing := range list {
		if existing.ID != entry.ID {
			out = append(out, existing)
		}
	}
	out = append(out, entry)
	SortExecutions(out)
	if len(out) > HistoryLimit {
		out = out[:HistoryLimit]
	}
	return out
}

// ReplaceExecutions installs a full history snapshot, sorted and bounded.
func ReplaceExecutions(list []models.ExecutionLog) []models.ExecutionLog {
	out := make([]models.ExecutionLog, len(list))
	copy(out, list)
	SortExecutions(out)
	if len(out) > HistoryLimit {
		out = out[:HistoryLimit]
	}
	return out
}

// SortCommands orders by case-insensitive name ascending, in place.
func SortCommands(list []models.CommandDefinition) {
	sort.SliceStable(list, func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
}

// SortExecutions orders by startedAt descending, in place.
func SortExecutions(list []models.ExecutionLog) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
}
