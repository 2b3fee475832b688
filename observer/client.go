// Package observer implements the dashboard-session side of the event
// stream: a reconnecting client that applies incremental cache updates and
// re-queries current state whenever it may have missed a message.
package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ConnectionState is the observer's transport state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrRetriesExhausted is returned by Run once the reconnect attempt cap is
// reached; automatic retry stops and the caller decides what to do next.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// Message is the wire envelope as received from the transport. Data stays
// raw until the cache decodes it by topic.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Stream is one ordered observer connection.
type Stream interface {
	Recv() (Message, error)
	Close() error
}

// Dialer establishes observer connections.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Fetcher re-queries authoritative state for reconciliation. The broadcaster
// never replays history, so this is the only recovery path after a miss.
type Fetcher interface {
	FetchDevices(ctx context.Context) ([]DeviceState, error)
}

type Config struct {
	// BackoffBase is the first reconnect delay; it doubles per attempt.
	BackoffBase time.Duration
	// MaxAttempts caps consecutive failed reconnects before Run gives up.
	MaxAttempts int
}

func (c *Config) applyDefaults() {
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
}

type Client struct {
	dialer  Dialer
	fetcher Fetcher
	cfg     Config
	cache   *Cache

	stateCh chan ConnectionState
}

func NewClient(dialer Dialer, fetcher Fetcher, cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		dialer:  dialer,
		fetcher: fetcher,
		cfg:     cfg,
		cache:   NewCache(),
		stateCh: make(chan ConnectionState, 16),
	}
}

// Cache returns the client's local view of dashboard state.
func (c *Client) Cache() *Cache { return c.cache }

// States exposes connection state changes, mainly for tests and status
// indicators. Stale values are dropped, never blocking the client.
func (c *Client) States() <-chan ConnectionState { return c.stateCh }

// Run drives the connection state machine until ctx is cancelled or the
// retry cap is hit. Each backoff timer is owned by this loop and stops
// deterministically on cancellation; there are no nested timers.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	for {
		c.setState(StateConnecting)
		stream, err := c.dialer.Dial(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			if ctx.Err() != nil {
				return nil
			}
			attempts++
			if attempts >= c.cfg.MaxAttempts {
				slog.Error("Observer giving up after repeated connect failures",
					"attempts", attempts,
					"error", err)
				return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, err)
			}
			if err := c.sleep(ctx, backoffDelay(c.cfg.BackoffBase, attempts)); err != nil {
				return nil
			}
			continue
		}

		attempts = 0
		c.setState(StateConnected)

		// The stream carries no backlog, so anything published while we
		// were away is gone: re-query current state before consuming.
		c.reconcile(ctx)

		err = c.consume(ctx, stream)
		_ = stream.Close()
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("Observer connection lost, reconnecting", "error", err)

		attempts++
		if err := c.sleep(ctx, backoffDelay(c.cfg.BackoffBase, attempts)); err != nil {
			return nil
		}
	}
}

func (c *Client) consume(ctx context.Context, stream Stream) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := stream.Recv()
		if err != nil {
			return err
		}

		suspectedMiss, err := c.cache.Apply(msg)
		if err != nil {
			slog.Warn("Observer failed to apply event",
				"type", msg.Type,
				"error", err)
			continue
		}
		if suspectedMiss {
			c.reconcile(ctx)
		}
	}
}

// reconcile replaces the device snapshot from the authoritative store and
// drops every scoped cache entry, forcing re-fetch on next read.
func (c *Client) reconcile(ctx context.Context) {
	if c.fetcher == nil {
		c.cache.InvalidateAll()
		return
	}
	devices, err := c.fetcher.FetchDevices(ctx)
	if err != nil {
		slog.Warn("Observer reconciliation failed", "error", err)
		c.cache.InvalidateAll()
		return
	}
	c.cache.ReplaceDevices(devices)
	c.cache.InvalidateScoped()
}

func (c *Client) setState(s ConnectionState) {
	select {
	case c.stateCh <- s:
	default:
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffDelay doubles the base per completed attempt: base, 2*base, 4*base...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
