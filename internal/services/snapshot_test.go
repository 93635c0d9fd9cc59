package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/command-center/client-core/internal/models"
	"github.com/command-center/client-core/internal/services"
)

func TestLoadSnapshot_PopulatesSorted(t *testing.T) {
	center, _, server := newTestCenter(t)
	server.SeedCommand(sampleCommand("c1", "zsh history", true))
	server.SeedCommand(sampleCommand("c2", "Apt update", true))
	server.SeedCommand(sampleCommand("c3", "disk usage", true))

	base := time.Now().UTC().Truncate(time.Second)
	server.SeedHistory(sampleExecution("e1", models.StatusSuccess, base.Add(-2*time.Minute)))
	server.SeedHistory(sampleExecution("e2", models.StatusError, base))
	server.SeedHistory(sampleExecution("e3", models.StatusSuccess, base.Add(-time.Minute)))

	mustLogin(t, center, server)
	if err := center.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	commands := center.Commands()
	wantNames := []string{"Apt update", "disk usage", "zsh history"}
	if len(commands) != len(wantNames) {
		t.Fatalf("expected %d commands, got %d", len(wantNames), len(commands))
	}
	for i, name := range wantNames {
		if commands[i].Name != name {
			t.Errorf("command %d: expected %q, got %q", i, name, commands[i].Name)
		}
	}

	history := center.History()
	wantIDs := []string{"e2", "e3", "e1"}
	if len(history) != len(wantIDs) {
		t.Fatalf("expected %d history entries, got %d", len(wantIDs), len(history))
	}
	for i, id := range wantIDs {
		if history[i].ID != id {
			t.Errorf("history %d: expected %s, got %s", i, id, history[i].ID)
		}
	}
}

func TestLoadSnapshot_PartialFailureLeavesPriorState(t *testing.T) {
	center, _, server := newTestCenter(t)
	server.SeedCommand(sampleCommand("c1", "Ping", true))

	mustLogin(t, center, server)
	if err := center.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("initial snapshot failed: %v", err)
	}

	// The catalog changes remotely, but the history pull now fails: the
	// partial result must not be merged.
	server.SeedCommand(sampleCommand("c2", "Uptime", true))
	server.SetFailHistory(true)

	err := center.LoadSnapshot(context.Background())
	if err == nil {
		t.Fatal("expected the snapshot to fail")
	}

	if commands := center.Commands(); len(commands) != 1 || commands[0].ID != "c1" {
		t.Errorf("partial failure must leave prior state, got %+v", commands)
	}

	// The snapshot is retryable: once the failure clears, it succeeds.
	server.SetFailHistory(false)
	if err := center.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if commands := center.Commands(); len(commands) != 2 {
		t.Errorf("expected 2 commands after retry, got %d", len(commands))
	}
}

func TestLoadSnapshot_NoSession(t *testing.T) {
	center, _, _ := newTestCenter(t)

	err := center.LoadSnapshot(context.Background())
	if !errors.Is(err, services.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestLoadSnapshot_AuthFailureTearsDownSession(t *testing.T) {
	center, store, server := newTestCenter(t)
	server.SeedCommand(sampleCommand("c1", "Ping", true))

	mustLogin(t, center, server)
	if err := center.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	// The authority invalidates the token: the next snapshot collapses
	// the session to logout.
	server.RevokeTokens()

	if err := center.LoadSnapshot(context.Background()); err == nil {
		t.Fatal("expected the snapshot to fail")
	}

	waitFor(t, 5*time.Second, "session teardown", func() bool {
		session := center.Session()
		return !session.Authenticated() && session.Status == models.StatusDisconnected
	})
	if len(center.Commands()) != 0 {
		t.Error("auth teardown must clear canonical state")
	}
	if _, ok, _ := store.Get("session"); ok {
		t.Error("auth teardown must remove the persisted session")
	}
}

func TestLoadSnapshot_BoundsHistory(t *testing.T) {
	center, _, server := newTestCenter(t)

	base := time.Now().UTC()
	for i := 0; i < 130; i++ {
		server.SeedHistory(sampleExecution(fmt.Sprintf("e%d", i), models.StatusSuccess, base.Add(time.Duration(i)*time.Second)))
	}

	mustLogin(t, center, server)
	if err := center.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if got := len(center.History()); got != 100 {
		t.Errorf("expected the history window capped at 100, got %d", got)
	}
}
