package reconcile_test

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/command-center/client-core/internal/models"
	"github.com/command-center/client-core/internal/reconcile"
)

func command(id, name string) models.CommandDefinition {
	now := time.Now().UTC()
	return models.CommandDefinition{
		ID:         id,
		Name:       name,
		Executable: "/bin/true",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func execution(id string, status models.ExecutionStatus, startedAt time.Time) models.ExecutionLog {
	return models.ExecutionLog{
		ID:          id,
		CommandID:   "c1",
		CommandName: "demo",
		Status:      status,
		StartedAt:   startedAt,
	}
}

func TestUpsertCommand_SortsCaseInsensitive(t *testing.T) {
	var list []models.CommandDefinition
	list = reconcile.UpsertCommand(list, command("c1", "zebra"))
	list = reconcile.UpsertCommand(list, command("c2", "Apple"))
	list = reconcile.UpsertCommand(list, command("c3", "mango"))

	want := []string{"Apple", "mango", "zebra"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, list[i].Name)
		}
	}
}

func TestUpsertCommand_ReplacesByID(t *testing.T) {
	var list []models.CommandDefinition
	list = reconcile.UpsertCommand(list, command("c1", "old name"))
	list = reconcile.UpsertCommand(list, command("c1", "new name"))

	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
	if list[0].Name != "new name" {
		t.Errorf("expected replacement, got %q", list[0].Name)
	}
}

func TestUpsertCommand_Idempotent(t *testing.T) {
	def := command("c1", "demo")

	once := reconcile.UpsertCommand(nil, def)
	twice := reconcile.UpsertCommand(once, def)

	if len(twice) != len(once) {
		t.Fatalf("expected %d entries after double apply, got %d", len(once), len(twice))
	}
	if !reflect.DeepEqual(twice, once) {
		t.Error("double apply changed the collection")
	}
}

func TestUpsertCommand_NeverDuplicatesIDs(t *testing.T) {
	var list []models.CommandDefinition
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("c%d", i%7)
		list = reconcile.UpsertCommand(list, command(id, fmt.Sprintf("cmd %d", i)))
	}

	seen := make(map[string]bool)
	for _, def := range list {
		if seen[def.ID] {
			t.Fatalf("duplicate id %s in collection", def.ID)
		}
		seen[def.ID] = true
	}
	if len(list) != 7 {
		t.Errorf("expected 7 distinct entries, got %d", len(list))
	}
}

func TestUpsertCommand_DoesNotMutateInput(t *testing.T) {
	original := []models.CommandDefinition{command("c1", "alpha"), command("c2", "beta")}
	snapshot := make([]models.CommandDefinition, len(original))
	copy(snapshot, original)

	reconcile.UpsertCommand(original, command("c1", "gamma"))

	if !reflect.DeepEqual(original, snapshot) {
		t.Fatal("input slice was mutated")
	}
}

func TestDeleteCommand(t *testing.T) {
	list := reconcile.UpsertCommand(nil, command("c1", "alpha"))
	list = reconcile.UpsertCommand(list, command("c2", "beta"))

	list = reconcile.DeleteCommand(list, "c1")
	if len(list) != 1 || list[0].ID != "c2" {
		t.Fatalf("unexpected collection after delete: %+v", list)
	}

	// Absent id is a no-op.
	list = reconcile.DeleteCommand(list, "missing")
	if len(list) != 1 {
		t.Errorf("delete of absent id changed the collection")
	}
}

func TestUpsertExecution_SortsByStartedAtDescending(t *testing.T) {
	base := time.Now().UTC()

	var list []models.ExecutionLog
	list = reconcile.UpsertExecution(list, execution("e1", models.StatusSuccess, base))
	list = reconcile.UpsertExecution(list, execution("e3", models.StatusPending, base.Add(2*time.Minute)))
	list = reconcile.UpsertExecution(list, execution("e2", models.StatusRunning, base.Add(time.Minute)))

	want := []string{"e3", "e2", "e1"}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}

func TestUpsertExecution_BoundedWindow(t *testing.T) {
	base := time.Now().UTC()

	var list []models.ExecutionLog
	for i := 0; i < reconcile.HistoryLimit+25; i++ {
		id := fmt.Sprintf("e%d", i)
		list = reconcile.UpsertExecution(list, execution(id, models.StatusSuccess, base.Add(time.Duration(i)*time.Second)))
	}

	if len(list) != reconcile.HistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", reconcile.HistoryLimit, len(list))
	}
	// The window holds the most recent entries.
	if list[0].ID != fmt.Sprintf("e%d", reconcile.HistoryLimit+24) {
		t.Errorf("newest entry missing, head is %s", list[0].ID)
	}
	if list[len(list)-1].ID != "e25" {
		t.Errorf("expected oldest surviving entry e25, got %s", list[len(list)-1].ID)
	}
}

func TestUpsertExecution_StatusProgressionCollapses(t *testing.T) {
	startedAt := time.Now().UTC()
	finishedAt := startedAt.Add(3 * time.Second)

	pending := execution("e1", models.StatusPending, startedAt)
	finished := execution("e1", models.StatusSuccess, startedAt)
	finished.FinishedAt = &finishedAt

	list := reconcile.UpsertExecution(nil, pending)
	list = reconcile.UpsertExecution(list, finished)

	if len(list) != 1 {
		t.Fatalf("expected exactly one entry for e1, got %d", len(list))
	}
	if list[0].Status != models.StatusSuccess {
		t.Errorf("expected terminal status success, got %s", list[0].Status)
	}
	if list[0].FinishedAt == nil || !list[0].FinishedAt.Equal(finishedAt) {
		t.Error("finishedAt not carried by the replacement")
	}
}

func TestUpsertExecution_Idempotent(t *testing.T) {
	entry := execution("e1", models.StatusRunning, time.Now().UTC())

	once := reconcile.UpsertExecution(nil, entry)
	twice := reconcile.UpsertExecution(once, entry)

	if len(twice) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(twice))
	}
	if twice[0].Status != models.StatusRunning {
		t.Errorf("double apply changed the entry: %+v", twice[0])
	}
}

func TestUpsertExecution_LateArrivalOverwrites(t *testing.T) {
	// Full-replacement semantics: an out-of-order older update wins if it
	// arrives last. Accepted weak-consistency property.
	startedAt := time.Now().UTC()
	finished := execution("e1", models.StatusSuccess, startedAt)
	running := execution("e1", models.StatusRunning, startedAt)

	list := reconcile.UpsertExecution(nil, finished)
	list = reconcile.UpsertExecution(list, running)

	if list[0].Status != models.StatusRunning {
		t.Errorf("expected last-writer-wins, got %s", list[0].Status)
	}
}

func TestReplaceCommands(t *testing.T) {
	prior := []models.CommandDefinition{command("old", "stale")}
	snapshot := []models.CommandDefinition{command("c2", "beta"), command("c1", "Alpha")}

	replaced := reconcile.ReplaceCommands(snapshot)
	if len(replaced) != 2 || replaced[0].Name != "Alpha" {
		t.Fatalf("unexpected replacement result: %+v", replaced)
	}
	// A full replace ignores prior contents entirely.
	for _, def := range replaced {
		if def.ID == prior[0].ID {
			t.Error("stale entry survived the replace")
		}
	}
}

func TestReplaceExecutions_Bounded(t *testing.T) {
	base := time.Now().UTC()
	var snapshot []models.ExecutionLog
	for i := 0; i < reconcile.HistoryLimit+10; i++ {
		snapshot = append(snapshot, execution(fmt.Sprintf("e%d", i), models.StatusSuccess, base.Add(time.Duration(i)*time.Second)))
	}

	replaced := reconcile.ReplaceExecutions(snapshot)
	if len(replaced) != reconcile.HistoryLimit {
		t.Fatalf("expected %d entries, got %d", reconcile.HistoryLimit, len(replaced))
	}
	if !replaced[0].StartedAt.After(replaced[len(replaced)-1].StartedAt) {
		t.Error("replacement not sorted descending")
	}
}
