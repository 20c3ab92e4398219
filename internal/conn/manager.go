package conn

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/driftwood-labs/beacon/internal/observability"
	"github.com/driftwood-labs/beacon/internal/protocol"
)

var (
	ErrServiceURLRequired = errors.New("conn: service url required")
	ErrUserIDRequired     = errors.New("conn: user id required")
	ErrNotConnected       = errors.New("conn: not connected")
)

// Status is the externally visible connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// CredentialResolver locates the bearer credential for the dial URI.
type CredentialResolver interface {
	Resolve() (string, error)
}

// Events receives decoded protocol messages and status transitions.
// OnStatusChange is delivered asynchronously; OnMessage is called from
// the read loop in transport delivery order.
type Events interface {
	OnMessage(msg protocol.Message)
	OnStatusChange(status Status)
}

// Config defines connection policy. Zero fields take reference
// defaults via WithDefaults.
type Config struct {
	// ServiceURL is the notification service base URL. http/https
	// schemes are mapped to ws/wss.
	ServiceURL string
	UserID     string

	ConnectTimeout       time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	// ResumeDelay is the short pause between an explicit Reconnect and
	// the fresh connect cycle.
	ResumeDelay time.Duration
}

func (c Config) WithDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = 5 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 3
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = 250 * time.Millisecond
	}
	return c
}

// Manager drives the connection state machine. It exclusively owns the
// socket handle and all timers.
type Manager struct {
	cfg      Config
	base     *url.URL
	dialer   Dialer
	resolver CredentialResolver
	events   Events
	log      zerolog.Logger

	mu             sync.Mutex
	status         Status
	transport      Transport
	gen            uint64
	attempts       int
	attemptID      string
	permanentFail  bool
	authenticated  bool
	reconnectTimer *time.Timer

	statusMu     sync.Mutex
	statusQueue  []Status
	statusSignal chan struct{}
}

func NewManager(cfg Config, dialer Dialer, resolver CredentialResolver, events Events, logger zerolog.Logger) (*Manager, error) {
	if strings.TrimSpace(cfg.ServiceURL) == "" {
		return nil, ErrServiceURLRequired
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	base, err := url.Parse(cfg.ServiceURL)
	if err != nil {
		return nil, err
	}
	if base.Host == "" {
		return nil, ErrServiceURLRequired
	}
	m := &Manager{
		cfg:          cfg.WithDefaults(),
		base:         base,
		dialer:       dialer,
		resolver:     resolver,
		events:       events,
		log:          logger.With().Str("user", cfg.UserID).Logger(),
		status:       StatusDisconnected,
		statusSignal: make(chan struct{}, 1),
	}
	if events != nil {
		go m.dispatchStatus()
	}
	return m, nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// SetAuthenticated marks whether a session is active. Dropping
// authentication tears the connection down.
func (m *Manager) SetAuthenticated(v bool) {
	m.mu.Lock()
	m.authenticated = v
	m.mu.Unlock()
	if !v {
		m.Disconnect()
	}
}

// Connect starts a fresh connect cycle. It is a no-op unless the
// session is authenticated, a credential resolves, and the manager is
// not permanently failed.
func (m *Manager) Connect() {
	m.mu.Lock()
	if !m.authenticated {
		m.log.Debug().Msg("connect skipped: not authenticated")
		m.mu.Unlock()
		return
	}
	if m.permanentFail {
		m.log.Debug().Msg("connect skipped: permanently failed, awaiting explicit reconnect")
		m.mu.Unlock()
		return
	}
	m.stopReconnectTimerLocked()
	// Supersede and close any previous socket first so its close
	// handler cannot trigger a second reconnect cycle.
	m.closeTransportLocked(CloseNormal, reasonReconnecting)
	m.gen++
	gen := m.gen
	attemptID := uuid.NewString()
	m.attemptID = attemptID
	m.mu.Unlock()

	credential, err := m.resolver.Resolve()
	if err != nil {
		observability.RecordConnectAttempt("no_credential", attemptID)
		m.log.Warn().Str("attempt_id", attemptID).Err(err).Msg("connect aborted: no credential")
		m.mu.Lock()
		if gen == m.gen {
			m.permanentFail = true
			m.setStatusLocked(StatusError)
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.setStatusLocked(StatusConnecting)
	m.mu.Unlock()

	go m.dial(gen, attemptID, m.dialURI(credential))
}

func (m *Manager) dial(gen uint64, attemptID string, uri string) {
	log := m.log.With().Str("attempt_id", attemptID).Logger()
	log.Debug().Msg("dialing notification service")

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()
	tr, err := m.dialer.Dial(ctx, uri)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if tr != nil {
			_ = tr.Close(CloseNormal, reasonStale)
		}
		return
	}
	if err != nil {
		observability.RecordConnectAttempt("error", attemptID)
		log.Warn().Err(err).Msg("connect failed")
		m.setStatusLocked(StatusError)
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		return
	}
	m.transport = tr
	m.attempts = 0
	m.setStatusLocked(StatusConnected)
	m.mu.Unlock()

	observability.RecordConnectAttempt("ok", attemptID)
	log.Info().Msg("connected")
	go m.readLoop(gen, tr)
}

func (m *Manager) readLoop(gen uint64, tr Transport) {
	for {
		data, err := tr.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		m.handleMessage(gen, data)
	}
}

func (m *Manager) handleMessage(gen uint64, data []byte) {
	m.mu.Lock()
	stale := gen != m.gen
	m.mu.Unlock()
	if stale {
		return
	}

	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownType) {
			observability.RecordMessage("unknown")
			m.log.Debug().Err(err).Msg("ignoring unknown message type")
		} else {
			observability.RecordMessage("malformed")
			m.log.Warn().Err(err).Msg("ignoring malformed message")
		}
		return
	}
	observability.RecordMessage(msg.MessageType())
	if se, ok := msg.(protocol.ServerError); ok {
		m.log.Warn().Str("message", se.Message).Msg("service reported error")
		return
	}
	m.events.OnMessage(msg)
}

func (m *Manager) handleClose(gen uint64, err error) {
	code := CloseCode(err)
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.transport = nil
	m.setStatusLocked(StatusDisconnected)
	if code == CloseNormal {
		m.log.Info().Msg("connection closed")
		return
	}
	m.log.Warn().Str("attempt_id", m.attemptID).Int("code", code).Err(err).Msg("connection lost")
	if !m.authenticated || m.permanentFail {
		return
	}
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.permanentFail = true
		m.setStatusLocked(StatusError)
		m.log.Error().Int("attempts", m.attempts).Msg("reconnect budget exhausted")
		return
	}
	m.attempts++
	delay := ReconnectDelay(m.cfg.ReconnectBaseDelay, m.attempts)
	observability.RecordReconnectScheduled()
	m.log.Info().Int("attempt", m.attempts).Dur("delay", delay).Msg("reconnect scheduled")
	m.reconnectTimer = time.AfterFunc(delay, m.Connect)
}

// Send serializes and transmits one command. Commands issued while not
// connected are dropped with a warning.
func (m *Manager) Send(cmd protocol.Command) error {
	m.mu.Lock()
	tr := m.transport
	status := m.status
	m.mu.Unlock()
	if status != StatusConnected || tr == nil {
		m.log.Warn().Str("command", cmd.CommandType()).Str("status", string(status)).Msg("send dropped: not connected")
		return ErrNotConnected
	}
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return tr.WriteMessage(data)
}

// Disconnect tears the connection down with the manual sentinel code
// and cancels any pending reconnect. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopReconnectTimerLocked()
	m.gen++
	m.closeTransportLocked(CloseNormal, reasonClientClose)
	m.attempts = 0
	m.setStatusLocked(StatusDisconnected)
}

// Reconnect clears the permanent-failure flag and attempt counter,
// then starts a fresh connect cycle after a short delay.
func (m *Manager) Reconnect() {
	m.Disconnect()
	m.mu.Lock()
	m.permanentFail = false
	m.attempts = 0
	m.reconnectTimer = time.AfterFunc(m.cfg.ResumeDelay, m.Connect)
	m.mu.Unlock()
}

func (m *Manager) setStatusLocked(status Status) {
	if m.status == status {
		return
	}
	m.status = status
	m.log.Debug().Str("status", string(status)).Msg("connection status")
	if m.events == nil {
		return
	}
	m.statusMu.Lock()
	m.statusQueue = append(m.statusQueue, status)
	m.statusMu.Unlock()
	select {
	case m.statusSignal <- struct{}{}:
	default:
	}
}

// dispatchStatus delivers status transitions to the consumer off the
// manager lock, preserving transition order.
func (m *Manager) dispatchStatus() {
	for range m.statusSignal {
		for {
			m.statusMu.Lock()
			if len(m.statusQueue) == 0 {
				m.statusMu.Unlock()
				break
			}
			status := m.statusQueue[0]
			m.statusQueue = m.statusQueue[1:]
			m.statusMu.Unlock()
			m.events.OnStatusChange(status)
		}
	}
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) closeTransportLocked(code int, reason string) {
	if m.transport == nil {
		return
	}
	tr := m.transport
	m.transport = nil
	_ = tr.Close(code, reason)
}

func (m *Manager) dialURI(credential string) string {
	u := url.URL{
		Scheme: wsScheme(m.base.Scheme),
		Host:   m.base.Host,
		Path:   "/notifications",
	}
	q := url.Values{}
	q.Set("token", credential)
	q.Set("user_id", m.cfg.UserID)
	u.RawQuery = q.Encode()
	return u.String()
}

func wsScheme(scheme string) string {
	switch scheme {
	case "https", "wss":
		return "wss"
	case "http", "ws":
		return "ws"
	default:
		return "wss"
	}
}
