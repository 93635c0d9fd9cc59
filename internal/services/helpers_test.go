package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/command-center/client-core/internal/config"
	"github.com/command-center/client-core/internal/models"
	"github.com/command-center/client-core/internal/services"
	"github.com/command-center/client-core/internal/storage"
	"github.com/command-center/client-core/internal/testutil"
)

func testConfig() *config.Config {
	cfg, _ := config.Load("")
	cfg.Remote.RequestTimeout = "2s"
	cfg.Events.DialTimeout = "2s"
	cfg.Events.ReconnectMin = "20ms"
	cfg.Events.ReconnectMax = "100ms"
	return cfg
}

func newTestCenter(t *testing.T) (*services.Center, *storage.MemoryStore, *testutil.Server) {
	t.Helper()

	server := testutil.NewServer()
	t.Cleanup(server.Close)

	store := storage.NewMemory()
	center := services.New(testConfig(), store)
	t.Cleanup(center.Close)

	return center, store, server
}

func mustLogin(t *testing.T, center *services.Center, server *testutil.Server) models.Session {
	t.Helper()

	session, err := center.Login(context.Background(), server.URL(), testutil.DefaultUsername, testutil.DefaultPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return session
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForSubscriber(t *testing.T, server *testutil.Server) {
	t.Helper()
	waitFor(t, 5*time.Second, "event stream subscriber", func() bool {
		return server.ClientCount() > 0
	})
}

func sampleCommand(id, name string, allowArgs bool, args ...string) models.CommandDefinition {
	now := time.Now().UTC().Truncate(time.Second)
	return models.CommandDefinition{
		ID:             id,
		Name:           name,
		Executable:     "/bin/echo",
		Args:           args,
		Tags:           []string{"sample"},
		AllowArguments: allowArgs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func sampleExecution(id string, status models.ExecutionStatus, startedAt time.Time) models.ExecutionLog {
	return models.ExecutionLog{
		ID:          id,
		CommandID:   "c1",
		CommandName: "sample",
		RequestedBy: testutil.DefaultUsername,
		Status:      status,
		StartedAt:   startedAt,
	}
}
