// Package client assembles the notification client: one service
// object per authenticated session, constructed explicitly and torn
// down explicitly on logout.
package client

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/driftwood-labs/beacon/internal/conn"
	"github.com/driftwood-labs/beacon/internal/protocol"
	"github.com/driftwood-labs/beacon/internal/store"
	"github.com/driftwood-labs/beacon/internal/title"
)

var ErrMissingDependency = errors.New("client: missing dependency")

// Config aggregates the per-session settings.
type Config struct {
	Conn  conn.Config
	Title title.Config
}

// Deps carries the injected ports. Every field is required except
// Notifier, which defaults to a LogNotifier.
type Deps struct {
	Dialer     conn.Dialer
	Resolver   conn.CredentialResolver
	KV         store.KV
	TitleSink  title.TitleSink
	IconSink   title.IconSink
	Render     title.RenderFunc
	Permission PermissionPort
	Notifier   Notifier
	Logger     zerolog.Logger
}

// Client is the consumer API surface. All methods are safe for
// concurrent use.
type Client struct {
	manager  *conn.Manager
	store    *store.Store
	composer *title.Composer
	notifier Notifier
	log      zerolog.Logger

	active        atomic.Bool
	notifyAllowed bool
	closeOnce     sync.Once
}

// New wires the session: resolver into the connection manager, the
// manager's messages into the store, the store's changes into the
// title/badge composer. The connection starts immediately.
func New(cfg Config, deps Deps) (*Client, error) {
	if deps.Dialer == nil || deps.Resolver == nil || deps.KV == nil ||
		deps.TitleSink == nil || deps.IconSink == nil || deps.Render == nil ||
		deps.Permission == nil {
		return nil, ErrMissingDependency
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Log: deps.Logger}
	}

	c := &Client{
		notifier: deps.Notifier,
		log:      deps.Logger,
	}
	c.active.Store(true)

	c.store = store.New(cfg.Conn.UserID, deps.KV, deps.Logger)
	c.composer = title.NewComposer(cfg.Title, deps.TitleSink, deps.IconSink, deps.Render, deps.Logger)

	manager, err := conn.NewManager(cfg.Conn, deps.Dialer, deps.Resolver, c, deps.Logger)
	if err != nil {
		return nil, err
	}
	c.manager = manager

	c.store.SetOnChange(func() {
		c.composer.Update(c.active.Load(), c.store.UnreadCount())
	})

	state := deps.Permission.State()
	if state == PermissionDefault {
		state = deps.Permission.Request()
	}
	c.notifyAllowed = state == PermissionGranted

	// First paint uses the persisted best-effort count; the socket's
	// initial_data resyncs it shortly after.
	c.composer.Update(true, c.store.UnreadCount())

	c.manager.SetAuthenticated(true)
	c.manager.Connect()
	return c, nil
}

// OnMessage implements conn.Events.
func (c *Client) OnMessage(msg protocol.Message) {
	c.store.Apply(msg)
	if push, ok := msg.(protocol.NewNotification); ok && c.notifyAllowed {
		if err := c.notifier.Notify(push.Notification.Title, push.Notification.Message); err != nil {
			c.log.Warn().Err(err).Msg("system notification failed")
		}
	}
}

// OnStatusChange implements conn.Events.
func (c *Client) OnStatusChange(status conn.Status) {
	c.log.Info().Str("status", string(status)).Msg("connection status changed")
}

func (c *Client) Notifications() []protocol.Notification {
	return c.store.Notifications()
}

func (c *Client) UnreadCount() int {
	return c.store.UnreadCount()
}

func (c *Client) IsConnected() bool {
	return c.manager.IsConnected()
}

func (c *Client) ConnectionStatus() conn.Status {
	return c.manager.Status()
}

// MarkAsRead asks the service to mark one notification read. Local
// state changes only when the read receipt echoes back.
func (c *Client) MarkAsRead(id int64) error {
	return c.manager.Send(protocol.MarkRead{NotificationID: id})
}

func (c *Client) MarkAllAsRead() error {
	return c.manager.Send(protocol.MarkAllRead{})
}

// Reconnect clears any permanent failure and starts a fresh cycle.
func (c *Client) Reconnect() {
	c.manager.Reconnect()
}

// Close tears the session down: disconnects, purges the durable
// per-user state, and restores the title and icon. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.active.Store(false)
		c.manager.SetAuthenticated(false)
		c.store.Logout()
		c.composer.Close()
		c.log.Info().Msg("session closed")
	})
}
