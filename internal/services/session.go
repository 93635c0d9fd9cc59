package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/command-center/client-core/internal/api"
	"github.com/command-center/client-core/internal/models"
	"github.com/command-center/client-core/internal/storage"
)

// sessionRecord is the durable form of an authenticated session.
type sessionRecord struct {
	ExpiresAt time.Time `json:"expiresAt"`
	ServerURL string    `json:"serverUrl"`
	Token     string    `json:"token"`
}

// NormalizeServerURL canonicalizes a user-entered server address: adds
// https:// when no scheme is present and strips trailing slashes.
func NormalizeServerURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ValidationError{Message: "server address is required"}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	return strings.TrimRight(trimmed, "/"), nil
}

// Login authenticates against the authority at serverURL. On success the
// session is persisted, canonical state is reset for the new session and
// the event channel starts. The caller is expected to follow up with
// LoadSnapshot to populate canonical state.
func (c *Center) Login(ctx context.Context, serverURL, username, password string) (models.Session, error) {
	normalized, err := NormalizeServerURL(serverURL)
	if err != nil {
		return models.Session{}, err
	}

	client := api.New(normalized, "").WithTimeout(c.cfg.Remote.GetRequestTimeout())
	resp, err := client.Login(ctx, username, password)
	if err != nil {
		return models.Session{}, err
	}

	c.mu.Lock()
	// A login supersedes whatever session was active, including a
	// hydrated-but-unvalidated one.
	prior := c.channel
	c.channel = nil
	c.epoch++
	epoch := c.epoch
	c.session = models.Session{
		ServerURL: normalized,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		Status:    models.StatusConnected,
	}
	c.client = api.New(normalized, resp.Token).WithTimeout(c.cfg.Remote.GetRequestTimeout())
	c.commands = nil
	c.history = nil
	session := c.session
	eventsURL := c.client.EventsURL()
	c.mu.Unlock()

	if prior != nil {
		prior.stop()
	}

	c.persistSession(sessionRecord{ServerURL: normalized, Token: resp.Token, ExpiresAt: resp.ExpiresAt})
	c.startChannel(epoch, eventsURL)
	c.notify()

	return session, nil
}

// Logout ends the current session: the event channel is stopped and its
// transport released, canonical collections are cleared and the persisted
// session record is removed. Safe to call at any time, including while the
// channel is mid-reconnect or while remote calls are in flight; their late
// results are discarded by the epoch check.
func (c *Center) Logout() {
	c.mu.Lock()
	ch := c.channel
	c.channel = nil
	c.epoch++
	c.session = models.Session{
		ServerURL: c.session.ServerURL,
		Status:    models.StatusDisconnected,
	}
	c.client = nil
	c.commands = nil
	c.history = nil
	c.mu.Unlock()

	if ch != nil {
		ch.stop()
	}

	if err := c.store.Delete(storage.KeySession); err != nil {
		log.Printf("[Session] failed to remove persisted session: %v", err)
	}

	c.notify()
}

// SetServerURL records the endpoint address independent of auth state, so
// the address survives restarts even before any login.
func (c *Center) SetServerURL(raw string) (string, error) {
	normalized, err := NormalizeServerURL(raw)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if !c.session.Authenticated() {
		c.session.ServerURL = normalized
	}
	c.mu.Unlock()

	if err := c.store.Put(storage.KeyLastServerURL, normalized); err != nil {
		log.Printf("[Session] failed to persist server address: %v", err)
	}

	c.notify()
	return normalized, nil
}

// LastServerURL returns the persisted server address, if any.
func (c *Center) LastServerURL() string {
	value, ok, err := c.store.Get(storage.KeyLastServerURL)
	if err != nil {
		log.Printf("[Session] failed to read server address: %v", err)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

// Hydrate restores a previously persisted session. A restored session
// starts in the connecting state: it has not been validated against the
// authority, and the caller must run LoadSnapshot to validate it (which
// promotes the session and starts the event channel). Returns whether a
// usable record was found.
func (c *Center) Hydrate() (bool, error) {
	value, ok, err := c.store.Get(storage.KeySession)
	if err != nil {
		return false, err
	}
	if !ok {
		c.hydrateServerURL()
		return false, nil
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(value), &rec); err != nil || rec.ServerURL == "" || rec.Token == "" {
		log.Printf("[Session] discarding unreadable session record")
		if err := c.store.Delete(storage.KeySession); err != nil {
			log.Printf("[Session] failed to remove session record: %v", err)
		}
		c.hydrateServerURL()
		return false, nil
	}

	restored := models.Session{
		ServerURL: rec.ServerURL,
		Token:     rec.Token,
		ExpiresAt: rec.ExpiresAt,
	}
	if restored.Expired() {
		log.Printf("[Session] persisted session expired, removing")
		if err := c.store.Delete(storage.KeySession); err != nil {
			log.Printf("[Session] failed to remove session record: %v", err)
		}
		c.hydrateServerURL()
		return false, nil
	}

	restored.Status = models.StatusConnecting

	c.mu.Lock()
	c.epoch++
	c.session = restored
	c.client = api.New(rec.ServerURL, rec.Token).WithTimeout(c.cfg.Remote.GetRequestTimeout())
	c.commands = nil
	c.history = nil
	c.mu.Unlock()

	c.notify()
	return true, nil
}

// hydrateServerURL pre-fills the endpoint address from the secondary
// record when no session record exists.
func (c *Center) hydrateServerURL() {
	if url := c.LastServerURL(); url != "" {
		c.mu.Lock()
		if !c.session.Authenticated() {
			c.session.ServerURL = url
		}
		c.mu.Unlock()
	}
}

func (c *Center) persistSession(rec sessionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[Session] failed to encode session record: %v", err)
		return
	}
	if err := c.store.Put(storage.KeySession, string(data)); err != nil {
		log.Printf("[Session] failed to persist session: %v", err)
	}
	if err := c.store.Put(storage.KeyLastServerURL, rec.ServerURL); err != nil {
		log.Printf("[Session] failed to persist server address: %v", err)
	}
}

// authFailure handles an AuthError surfaced by any remote call belonging
// to the given epoch: the session is torn down. Errors from superseded
// sessions are ignored.
func (c *Center) authFailure(epoch uint64, err error) {
	c.mu.Lock()
	current := epoch == c.epoch
	c.mu.Unlock()
	if !current {
		return
	}

	log.Printf("[Session] authentication failure, tearing down session: %v", err)
	c.Logout()
}

// checkRemoteError inspects an error from a gateway or snapshot call and
// collapses the session when the credential was rejected.
func (c *Center) checkRemoteError(epoch uint64, err error) {
	var authErr *api.AuthError
	if errors.As(err, &authErr) {
		c.authFailure(epoch, err)
	}
}
