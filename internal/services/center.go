// Package services wires the session, snapshot, gateway and event-channel
// components around one shared Center. The Center is constructed at
// startup and passed to whatever front end consumes the core; there is no
// package-level singleton.
package services

import (
	"errors"
	"sync"

	"github.com/command-center/client-core/internal/api"
	"github.com/command-center/client-core/internal/config"
	"github.com/command-center/client-core/internal/models"
	"github.com/command-center/client-core/internal/reconcile"
	"github.com/command-center/client-core/internal/storage"
)

var (
	// ErrNoSession is returned by operations that need an authenticated
	// session when none is active.
	ErrNoSession = errors.New("no active session")
	// ErrSessionSuperseded is returned when an operation completed after
	// the session it belonged to ended; its result was discarded.
	ErrSessionSuperseded = errors.New("session superseded")
)

// Center owns the canonical collections and the current session. All
// mutation of canonical state funnels through the mutex-serialized apply
// path in this file; snapshot loads, streamed events and gateway responses
// all land here.
//
// Every remote operation captures the epoch at start. The epoch advances
// on login and logout, so a response that arrives after its session ended
// finds a moved epoch and is discarded instead of resurrecting state.
type Center struct {
	cfg   *config.Config
	store storage.Store

	mu       sync.Mutex
	epoch    uint64
	session  models.Session
	client   *api.Client
	commands []models.CommandDefinition
	history  []models.ExecutionLog
	channel  *eventChannel

	subsMu sync.RWMutex
	subs   []chan struct{}
}

// New creates a Center backed by the given persistence store.
func New(cfg *config.Config, store storage.Store) *Center {
	return &Center{cfg: cfg, store: store}
}

// Close tears down the event channel. It does not log out: a persisted
// session survives process restarts.
func (c *Center) Close() {
	c.mu.Lock()
	ch := c.channel
	c.channel = nil
	c.mu.Unlock()

	if ch != nil {
		ch.stop()
	}
}

// Session returns the current session.
func (c *Center) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Commands returns a copy of the canonical command collection.
func (c *Center) Commands() []models.CommandDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CommandDefinition, len(c.commands))
	copy(out, c.commands)
	return out
}

// History returns a copy of the canonical execution history.
func (c *Center) History() []models.ExecutionLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ExecutionLog, len(c.history))
	copy(out, c.history)
	return out
}

// Subscribe registers for change notifications. The channel receives a
// token whenever canonical state or the session changes; it is buffered
// and coalescing, so a slow consumer sees at least one notification for
// any burst of changes.
func (c *Center) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	c.subs = append(c.subs, ch)
	c.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (c *Center) Unsubscribe(ch chan struct{}) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for i, existing := range c.subs {
		if existing == ch {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			close(ch)
			break
		}
	}
}

func (c *Center) notify() {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// currentOp captures the epoch and client for an outgoing remote call.
func (c *Center) currentOp() (uint64, *api.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Authenticated() || c.client == nil {
		return 0, nil, ErrNoSession
	}
	return c.epoch, c.client, nil
}

// commit runs fn under the lock if the captured epoch is still current.
// It reports whether the mutation was applied.
func (c *Center) commit(epoch uint64, fn func()) bool {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	fn()
	c.mu.Unlock()

	c.notify()
	return true
}

// applyEvent routes one well-formed streamed event into the canonical
// collections. Events from a superseded session are discarded. The switch
// is exhaustive over the event types ParseEvent can produce.
func (c *Center) applyEvent(epoch uint64, ev models.Event) {
	c.commit(epoch, func() {
		switch ev.Type {
		case models.EventCommandCreated, models.EventCommandUpdated:
			c.commands = reconcile.UpsertCommand(c.commands, *ev.Command)
		case models.EventCommandDeleted:
			c.commands = reconcile.DeleteCommand(c.commands, ev.DeletedID)
		case models.EventExecutionStarted, models.EventExecutionUpdated, models.EventExecutionFinished:
			c.history = reconcile.UpsertExecution(c.history, *ev.Execution)
		}
	})
}
