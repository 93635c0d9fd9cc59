package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/command-center/client-core/internal/models"
	"github.com/command-center/client-core/internal/reconcile"
)

// LoadSnapshot bootstraps canonical state with two concurrent pulls. Both
// must succeed; on any failure the prior canonical state is left untouched
// and a single error is returned. The operation is idempotent and may be
// retried at will.
//
// A snapshot that validates a hydrated (connecting) session promotes it to
// connected and starts the event channel.
func (c *Center) LoadSnapshot(ctx context.Context) error {
	epoch, client, err := c.currentOp()
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		commands []models.CommandDefinition
		history  []models.ExecutionLog
		cmdErr   error
		histErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		commands, cmdErr = client.ListCommands(ctx)
	}()
	go func() {
		defer wg.Done()
		history, histErr = client.ListHistory(ctx)
	}()
	wg.Wait()

	if cmdErr != nil || histErr != nil {
		err := cmdErr
		if err == nil {
			err = histErr
		}
		c.checkRemoteError(epoch, err)
		return fmt.Errorf("snapshot load: %w", err)
	}

	var (
		promoted  bool
		eventsURL string
	)
	applied := c.commit(epoch, func() {
		c.commands = reconcile.ReplaceCommands(commands)
		c.history = reconcile.ReplaceExecutions(history)
		if c.session.Status == models.StatusConnecting {
			c.session.Status = models.StatusConnected
			promoted = true
			eventsURL = c.client.EventsURL()
		}
	})
	if !applied {
		return ErrSessionSuperseded
	}

	if promoted {
		c.startChannel(epoch, eventsURL)
	}
	return nil
}
