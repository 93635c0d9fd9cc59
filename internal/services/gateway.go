package services

import (
	"context"
	"strings"

	"github.com/command-center/client-core/internal/models"
	"github.com/command-center/client-core/internal/reconcile"
)

// ValidationError reports a local precondition failure. It is raised
// before any network call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SaveCommand creates (empty mutation ID) or updates a command definition.
// The authoritative result is routed through the reconciler before being
// returned; the event channel will typically deliver the same change
// again, which the idempotent upsert absorbs.
func (c *Center) SaveCommand(ctx context.Context, mutation models.CommandMutation) (models.CommandDefinition, error) {
	mutation.Name = strings.TrimSpace(mutation.Name)
	mutation.Executable = strings.TrimSpace(mutation.Executable)
	mutation.Description = strings.TrimSpace(mutation.Description)
	mutation.Args = cleanList(mutation.Args)
	mutation.Tags = cleanList(mutation.Tags)

	if mutation.Name == "" {
		return models.CommandDefinition{}, &ValidationError{Message: "command name is required"}
	}
	if mutation.Executable == "" {
		return models.CommandDefinition{}, &ValidationError{Message: "executable path is required"}
	}

	epoch, client, err := c.currentOp()
	if err != nil {
		return models.CommandDefinition{}, err
	}

	def, err := client.SaveCommand(ctx, mutation)
	if err != nil {
		c.checkRemoteError(epoch, err)
		return models.CommandDefinition{}, err
	}

	c.commit(epoch, func() {
		c.commands = reconcile.UpsertCommand(c.commands, def)
	})

	return def, nil
}

// DeleteCommand removes a command definition.
func (c *Center) DeleteCommand(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Message: "command id is required"}
	}

	epoch, client, err := c.currentOp()
	if err != nil {
		return err
	}

	if err := client.DeleteCommand(ctx, id); err != nil {
		c.checkRemoteError(epoch, err)
		return err
	}

	c.commit(epoch, func() {
		c.commands = reconcile.DeleteCommand(c.commands, id)
	})

	return nil
}

// Execute queues a remote run of the given command and returns the queued
// execution id. Parameters are guarded locally before any network call:
// a command with allowArguments=false only accepts its own default args.
// The pending log from the response enters the history immediately; the
// progression to a terminal status arrives over the event channel.
func (c *Center) Execute(ctx context.Context, commandID string, parameters []string) (string, error) {
	parameters = cleanList(parameters)

	epoch, client, err := c.currentOp()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	var target *models.CommandDefinition
	for i := range c.commands {
		if c.commands[i].ID == commandID {
			target = &c.commands[i]
			break
		}
	}
	if target == nil {
		c.mu.Unlock()
		return "", &ValidationError{Message: "unknown command"}
	}
	if len(parameters) > 0 && !target.AllowArguments && !equalArgs(parameters, target.Args) {
		name := target.Name
		c.mu.Unlock()
		return "", &ValidationError{Message: "command " + name + " does not allow custom parameters"}
	}
	c.mu.Unlock()

	entry, err := client.Execute(ctx, commandID, parameters)
	if err != nil {
		c.checkRemoteError(epoch, err)
		return "", err
	}

	c.commit(epoch, func() {
		c.history = reconcile.UpsertExecution(c.history, entry)
	})

	return entry.ID, nil
}

// cleanList trims entries and drops empties, preserving order.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func equalArgs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
