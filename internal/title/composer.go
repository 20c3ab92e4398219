// Package title mirrors the unread counter into the window title and
// the favicon. It only reads the counter; the title string and the
// icon are the two artifacts it owns, and both are restored to their
// pre-subscription values on teardown.
package title

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// TitleSink publishes the composed title string.
type TitleSink interface {
	Current() string
	Set(title string) error
}

// IconSink publishes the rendered icon. Set swaps the artifact in
// place; implementations must not delete and recreate it.
type IconSink interface {
	Current() []byte
	Set(data []byte) error
}

// RenderFunc produces the encoded icon for an unread count.
type RenderFunc func(count int) ([]byte, error)

// Config holds the static title decorations.
type Config struct {
	BaseTitle string
	Prefix    string
	Suffix    string
}

// Composer applies unread-count changes to the title and icon sinks.
type Composer struct {
	cfg    Config
	titles TitleSink
	icons  IconSink
	render RenderFunc
	log    zerolog.Logger

	mu            sync.Mutex
	started       bool
	originalTitle string
	originalIcon  []byte
}

func NewComposer(cfg Config, titles TitleSink, icons IconSink, render RenderFunc, logger zerolog.Logger) *Composer {
	return &Composer{
		cfg:    cfg,
		titles: titles,
		icons:  icons,
		render: render,
		log:    logger,
	}
}

// Compose builds the title string for the given state.
func (c *Composer) Compose(authenticated bool, unread int) string {
	if authenticated && unread > 0 {
		return fmt.Sprintf("(%d) %s", unread, c.cfg.BaseTitle)
	}
	return c.cfg.Prefix + c.cfg.BaseTitle + c.cfg.Suffix
}

// Update pushes the current state into both sinks. The first call
// snapshots the pre-subscription artifacts for later restoration.
func (c *Composer) Update(authenticated bool, unread int) {
	c.mu.Lock()
	if !c.started {
		c.started = true
		c.originalTitle = c.titles.Current()
		c.originalIcon = c.icons.Current()
	}
	c.mu.Unlock()

	if err := c.titles.Set(c.Compose(authenticated, unread)); err != nil {
		c.log.Warn().Err(err).Msg("title update failed")
	}
	data, err := c.render(unread)
	if err != nil {
		c.log.Warn().Err(err).Msg("badge render failed")
		return
	}
	if err := c.icons.Set(data); err != nil {
		c.log.Warn().Err(err).Msg("icon update failed")
	}
}

// Close restores the original title and icon exactly. Safe to call
// without a prior Update.
func (c *Composer) Close() {
	c.mu.Lock()
	started := c.started
	originalTitle := c.originalTitle
	originalIcon := c.originalIcon
	c.started = false
	c.mu.Unlock()
	if !started {
		return
	}
	if err := c.titles.Set(originalTitle); err != nil {
		c.log.Warn().Err(err).Msg("title restore failed")
	}
	if originalIcon != nil {
		if err := c.icons.Set(originalIcon); err != nil {
			c.log.Warn().Err(err).Msg("icon restore failed")
		}
	}
}
