package notifyclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sunpeak/console-api/pkg/retry"
)

// DefaultPageSize is the history page loaded on session start.
const DefaultPageSize = 50

// Controller binds the notification feed to the user's session. Starting it
// runs the catch-up fetches and keeps the push channel open, reconnecting
// with backoff when it drops; stopping it tears everything down. Start and
// Stop are safe to call repeatedly and from any goroutine.
type Controller struct {
	transport *Transport
	store     *Store
	backoff   retry.Backoff
	log       zerolog.Logger

	mu      sync.Mutex
	running bool
	userID  int64
	gen     uint64
	cancel  context.CancelFunc
}

func NewController(transport *Transport, store *Store, log zerolog.Logger) *Controller {
	return &Controller{
		transport: transport,
		store:     store,
		backoff:   retry.ExpoJitter{Base: 500 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		log:       log,
	}
}

// Start brings the feed up for the given user. Calling it again for the
// same user while running is a no-op; a different user tears the previous
// session down first.
func (c *Controller) Start(ctx context.Context, userID int64) {
	c.mu.Lock()
	if c.running && c.userID == userID {
		c.mu.Unlock()
		return
	}
	if c.running {
		c.stopLocked()
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.userID = userID
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()

	// Catch-up fetches run concurrently and best-effort; a failure leaves
	// the store as-is and is surfaced through the error hook.
	go func() {
		if err := c.transport.FetchList(runCtx, 1, DefaultPageSize); err != nil {
			c.log.Warn().Err(err).Msg("initial notification fetch failed")
		}
	}()
	go func() {
		if err := c.transport.FetchUnreadCount(runCtx); err != nil {
			c.log.Warn().Err(err).Msg("initial unread count fetch failed")
		}
	}()

	go c.supervise(runCtx, gen)
}

// Stop tears the session down: cancels supervision, closes the push
// channel and clears the store. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.running = false
	c.userID = 0
	// Bumping the generation orphans the departing supervisor: its exit
	// cleanup must not touch whatever session comes next.
	c.gen++
	// Disconnect runs unconditionally so a half-open connection can never
	// outlive the session.
	c.transport.Disconnect()
	c.store.Clear()
}

// sessionEnded is the exiting supervisor's cleanup. It releases the session
// state only when that supervisor still owns it; after Stop or a takeover
// by another user the state belongs to the newer session.
func (c *Controller) sessionEnded(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.running = false
	c.userID = 0
	c.transport.Disconnect()
	c.store.Clear()
}

// Running reports whether a session is active and, if so, for which user.
func (c *Controller) Running() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.running
}

// supervise keeps exactly one live connection for the session. Each failed
// or dropped connection waits out a backoff delay before redialing; a
// successful connection resets the attempt counter. However it exits, the
// controller is left restartable.
func (c *Controller) supervise(ctx context.Context, gen uint64) {
	defer c.sessionEnded(gen)

	attempt := 0
	for ctx.Err() == nil {
		done, err := c.transport.Connect(ctx)
		if err != nil {
			if errors.Is(err, ErrNoToken) {
				// No session token means nothing to reconnect for.
				return
			}
			if !c.sleep(ctx, attempt) {
				return
			}
			attempt++
			continue
		}
		attempt = 0

		select {
		case <-ctx.Done():
			return
		case <-done:
			c.log.Debug().Msg("push channel closed, scheduling reconnect")
			if !c.sleep(ctx, attempt) {
				return
			}
			attempt++
		}
	}
}

func (c *Controller) sleep(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(c.backoff.Next(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
