package services

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/command-center/client-core/internal/api"
	"github.com/command-center/client-core/internal/models"
)

// ChannelState classifies the streaming transport, independent of the
// session-level connection status: the session can be authenticated while
// the socket is mid-reconnect.
type ChannelState string

const (
	// ChannelIdle means no channel is running (no session, or torn down).
	ChannelIdle ChannelState = "idle"
	// ChannelConnecting means a dial is in progress.
	ChannelConnecting ChannelState = "connecting"
	// ChannelOpen means the transport is established and streaming.
	ChannelOpen ChannelState = "open"
	// ChannelClosed means the transport dropped; one reconnect is
	// scheduled.
	ChannelClosed ChannelState = "closed"
)

// eventChannel owns one streaming connection to the authority. It never
// mutates canonical state itself; well-formed events are forwarded
// verbatim, in delivery order, to the Center's apply path.
type eventChannel struct {
	center *Center
	cancel context.CancelFunc
	done   chan struct{}
	url    string
	epoch  uint64

	mu    sync.Mutex
	state ChannelState
}

// ChannelState reports the socket-level state of the live event channel.
func (c *Center) ChannelState() ChannelState {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()

	if ch == nil {
		return ChannelIdle
	}
	return ch.currentState()
}

// startChannel launches the event channel for the given epoch. It ensures
// at most one channel is live: a prior channel must already have been
// stopped (Login and Logout do this) and the start is skipped entirely if
// the epoch moved in the meantime.
func (c *Center) startChannel(epoch uint64, eventsURL string) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &eventChannel{
		center: c,
		cancel: cancel,
		done:   make(chan struct{}),
		url:    eventsURL,
		epoch:  epoch,
		state:  ChannelConnecting,
	}

	c.mu.Lock()
	if epoch != c.epoch || c.channel != nil {
		c.mu.Unlock()
		cancel()
		close(ch.done)
		return
	}
	c.channel = ch
	c.mu.Unlock()

	go ch.run(ctx)
}

// stop cancels the channel and waits until its transport is released.
func (ec *eventChannel) stop() {
	ec.cancel()
	<-ec.done
}

func (ec *eventChannel) currentState() ChannelState {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.state
}

func (ec *eventChannel) setState(state ChannelState) {
	ec.mu.Lock()
	changed := ec.state != state
	ec.state = state
	ec.mu.Unlock()

	if changed {
		ec.center.notify()
	}
}

// run drives the Connecting -> Open -> Closed -> Connecting loop until the
// context ends. Each Closed transition schedules exactly one reconnect,
// with exponential backoff between the configured bounds; a successful
// open resets the backoff.
func (ec *eventChannel) run(ctx context.Context) {
	defer close(ec.done)

	cfg := &ec.center.cfg.Events
	minBackoff := cfg.GetReconnectMin()
	maxBackoff := cfg.GetReconnectMax()
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	backoff := minBackoff

	for {
		if ctx.Err() != nil {
			ec.setState(ChannelIdle)
			return
		}

		ec.setState(ChannelConnecting)
		dialer := websocket.Dialer{HandshakeTimeout: cfg.GetDialTimeout()}
		conn, resp, err := dialer.DialContext(ctx, ec.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				ec.setState(ChannelIdle)
				return
			}
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				log.Printf("[Events] stream rejected the session token")
				ec.setState(ChannelIdle)
				go ec.center.authFailure(ec.epoch, &api.AuthError{Message: "event stream rejected token"})
				return
			}

			log.Printf("[Events] connect failed: %v (retrying in %s)", err, backoff)
			ec.setState(ChannelClosed)
			if !sleepContext(ctx, backoff) {
				ec.setState(ChannelIdle)
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		log.Printf("[Events] connected to %s", ec.center.Session().ServerURL)
		ec.setState(ChannelOpen)
		backoff = minBackoff

		ec.readLoop(ctx, conn)

		if ctx.Err() != nil {
			ec.setState(ChannelIdle)
			return
		}

		log.Printf("[Events] connection lost (reconnecting in %s)", backoff)
		ec.setState(ChannelClosed)
		if !sleepContext(ctx, backoff) {
			ec.setState(ChannelIdle)
			return
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// readLoop consumes frames until the transport errors or the context
// ends. The connection is closed on every exit path.
func (ec *eventChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	// Unblock the read when the channel is being torn down.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-connDone:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Events] read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := models.ParseEvent(data)
		if err != nil {
			// Malformed payloads are dropped; the connection stays up.
			log.Printf("[Events] dropping payload: %v", err)
			continue
		}

		ec.center.applyEvent(ec.epoch, ev)
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}

// sleepContext waits for the duration, reporting false if the context
// ended first.
func sleepContext(ctx context.Context, wait time.Duration) bool {
	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
