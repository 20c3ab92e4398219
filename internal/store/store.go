// Package store holds the in-memory notification list and unread
// counter, mirrored to durable per-user storage so a fresh process can
// show a best-effort count before the socket resyncs it.
package store

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwood-labs/beacon/internal/observability"
	"github.com/driftwood-labs/beacon/internal/protocol"
)

// UnreadKeyPrefix namespaces the durable per-user counter entries.
const UnreadKeyPrefix = "notification_unread_count_"

// KV is the durable key-value port the store mirrors the counter into.
type KV interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
	DeletePrefix(prefix string) error
}

// Store owns the notification list and the unread counter. It applies
// protocol messages verbatim; commands are never reflected locally
// until the service echoes them back.
type Store struct {
	userID string
	kv     KV
	log    zerolog.Logger

	mu            sync.Mutex
	notifications []protocol.Notification
	unread        int
	onChange      func()
}

func New(userID string, kv KV, logger zerolog.Logger) *Store {
	s := &Store{
		userID: userID,
		kv:     kv,
		log:    logger.With().Str("user", userID).Logger(),
	}
	s.loadPersistedUnread()
	return s
}

// SetOnChange registers a callback fired after every state mutation.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Notifications returns a copy of the current list, newest first.
func (s *Store) Notifications() []protocol.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Apply mutates state from one decoded protocol message. Message types
// the store does not track are ignored.
func (s *Store) Apply(msg protocol.Message) {
	s.mu.Lock()
	switch m := msg.(type) {
	case protocol.InitialData:
		s.applyInitialDataLocked(m)
	case protocol.NewNotification:
		s.applyNewNotificationLocked(m)
	case protocol.NotificationRead:
		s.applyNotificationReadLocked(m)
	case protocol.BulkRead:
		s.applyBulkReadLocked(m)
	default:
		s.mu.Unlock()
		return
	}
	s.persistUnreadLocked()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// applyInitialDataLocked replaces state wholesale; the service is
// authoritative and resync overwrites rather than merges.
func (s *Store) applyInitialDataLocked(m protocol.InitialData) {
	s.notifications = append([]protocol.Notification(nil), m.Notifications...)
	s.unread = m.UnreadCount
	if s.unread < 0 {
		s.unread = 0
	}
	s.log.Debug().Int("count", len(s.notifications)).Int("unread", s.unread).Msg("state resynced")
}

func (s *Store) applyNewNotificationLocked(m protocol.NewNotification) {
	s.notifications = append([]protocol.Notification{m.Notification}, s.notifications...)
	s.unread++
	s.log.Debug().Int64("id", m.Notification.ID).Int("unread", s.unread).Msg("notification received")
}

// applyNotificationReadLocked decrements the counter even when the id
// is not held locally: the service owns the counter, and a missing id
// usually means the receipt raced a resync that truncated the list.
func (s *Store) applyNotificationReadLocked(m protocol.NotificationRead) {
	readAt := m.ReadAt
	if readAt == nil {
		now := time.Now().UTC()
		readAt = &now
	}
	for i := range s.notifications {
		if s.notifications[i].ID == m.NotificationID {
			s.notifications[i].Status = protocol.StatusRead
			s.notifications[i].ReadAt = readAt
			break
		}
	}
	if s.unread > 0 {
		s.unread--
	}
	s.log.Debug().Int64("id", m.NotificationID).Int("unread", s.unread).Msg("notification read")
}

func (s *Store) applyBulkReadLocked(m protocol.BulkRead) {
	readAt := m.ReadAt
	if readAt == nil {
		now := time.Now().UTC()
		readAt = &now
	}
	for i := range s.notifications {
		s.notifications[i].Status = protocol.StatusRead
		s.notifications[i].ReadAt = readAt
	}
	s.unread = 0
	s.log.Debug().Int("count", len(s.notifications)).Msg("all notifications read")
}

// Logout resets the in-memory counter and purges every durable entry
// matching the per-user key pattern.
func (s *Store) Logout() {
	s.mu.Lock()
	s.notifications = nil
	s.unread = 0
	fn := s.onChange
	s.mu.Unlock()
	observability.SetUnreadCount(0)
	if err := s.kv.DeletePrefix(UnreadKeyPrefix); err != nil {
		s.log.Warn().Err(err).Msg("unread state purge failed")
	}
	if fn != nil {
		fn()
	}
}

func (s *Store) unreadKey() string {
	return UnreadKeyPrefix + s.userID
}

// loadPersistedUnread seeds the counter from the durable mirror so a
// reload shows the last known value before the socket resyncs it.
func (s *Store) loadPersistedUnread() {
	raw, ok, err := s.kv.Get(s.unreadKey())
	if err != nil || !ok {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.log.Warn().Str("value", raw).Msg("discarding invalid persisted unread count")
		return
	}
	s.unread = n
	observability.SetUnreadCount(n)
	s.log.Debug().Int("unread", n).Msg("restored persisted unread count")
}

// Persistence is best-effort: a failed write never propagates.
func (s *Store) persistUnreadLocked() {
	observability.SetUnreadCount(s.unread)
	if err := s.kv.Put(s.unreadKey(), strconv.Itoa(s.unread)); err != nil {
		s.log.Warn().Err(err).Msg("unread state write failed")
	}
}
