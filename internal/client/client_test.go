package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftwood-labs/beacon/internal/conn"
	"github.com/driftwood-labs/beacon/internal/testutil/testlog"
	"github.com/driftwood-labs/beacon/internal/title"
)

type readResult struct {
	data []byte
	err  error
}

type fakeTransport struct {
	mu     sync.Mutex
	reads  chan readResult
	sent   []string
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{reads: make(chan readResult, 16)}
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	r := <-t.reads
	return r.data, r.err
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, string(data))
	return nil
}

func (t *fakeTransport) Close(code int, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	select {
	case t.reads <- readResult{err: &conn.CloseError{Code: code, Reason: reason}}:
	default:
	}
	return nil
}

func (t *fakeTransport) push(payload string) {
	t.reads <- readResult{data: []byte(payload)}
}

func (t *fakeTransport) sentMessages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

type fakeDialer struct {
	mu  sync.Mutex
	trs []*fakeTransport
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (conn.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.trs) == 0 {
		return nil, fmt.Errorf("fake dialer: no transport queued")
	}
	tr := d.trs[0]
	d.trs = d.trs[1:]
	return tr, nil
}

type staticResolver struct{ token string }

func (r staticResolver) Resolve() (string, error) { return r.token, nil }

type memKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemKV() *memKV { return &memKV{values: make(map[string]string)} }

func (kv *memKV) Get(key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.values[key]
	return v, ok, nil
}

func (kv *memKV) Put(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
	return nil
}

func (kv *memKV) DeletePrefix(prefix string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for k := range kv.values {
		if strings.HasPrefix(k, prefix) {
			delete(kv.values, k)
		}
	}
	return nil
}

func (kv *memKV) has(key string) bool {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	_, ok := kv.values[key]
	return ok
}

func (kv *memKV) get(key string) string {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.values[key]
}

func (kv *memKV) put(key, value string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = value
}

type memTitleSink struct {
	mu    sync.Mutex
	value string
}

func (s *memTitleSink) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *memTitleSink) Set(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = title
	return nil
}

type memIconSink struct {
	mu    sync.Mutex
	value []byte
}

func (s *memIconSink) Current() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *memIconSink) Set(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = append([]byte(nil), data...)
	return nil
}

type fakePermission struct {
	mu       sync.Mutex
	state    PermissionState
	grant    bool
	requests int
}

func (p *fakePermission) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePermission) Request() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	if p.grant {
		p.state = PermissionGranted
	} else {
		p.state = PermissionDenied
	}
	return p.state
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

type fixture struct {
	client     *Client
	transport  *fakeTransport
	kv         *memKV
	titles     *memTitleSink
	icons      *memIconSink
	permission *fakePermission
	notifier   *recordingNotifier
}

func newFixture(t *testing.T, permission *fakePermission) *fixture {
	t.Helper()
	f := &fixture{
		transport:  newFakeTransport(),
		kv:         newMemKV(),
		titles:     &memTitleSink{value: "shell"},
		icons:      &memIconSink{value: []byte("original icon")},
		permission: permission,
		notifier:   &recordingNotifier{},
	}
	cfg := Config{
		Conn: conn.Config{
			ServiceURL:           "https://push.example.test",
			UserID:               "u1",
			ConnectTimeout:       200 * time.Millisecond,
			ReconnectBaseDelay:   2 * time.Millisecond,
			MaxReconnectAttempts: 3,
			ResumeDelay:          2 * time.Millisecond,
		},
		Title: title.Config{BaseTitle: "Beacon"},
	}
	deps := Deps{
		Dialer:     &fakeDialer{trs: []*fakeTransport{f.transport}},
		Resolver:   staticResolver{token: "tok"},
		KV:         f.kv,
		TitleSink:  f.titles,
		IconSink:   f.icons,
		Render:     func(count int) ([]byte, error) { return []byte(fmt.Sprintf("icon-%d", count)), nil },
		Permission: permission,
		Notifier:   f.notifier,
		Logger:     zerolog.Nop(),
	}
	c, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(c.Close)
	f.client = c
	return f
}

func TestSessionScenario(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, &fakePermission{state: PermissionDefault, grant: true})
	waitFor(t, "connected", f.client.IsConnected)

	f.transport.push(`{"type":"initial_data","unread_count":4,"notifications":[
		{"id":4,"type":"reminder","title":"n4","message":"m","status":"sent","created_at":"2026-02-01T09:00:00Z"},
		{"id":3,"type":"reminder","title":"n3","message":"m","status":"sent","created_at":"2026-02-01T08:00:00Z"}
	]}`)
	waitFor(t, "initial sync", func() bool { return f.client.UnreadCount() == 4 })
	if got := f.titles.Current(); got != "(4) Beacon" {
		t.Fatalf("title=%q", got)
	}

	f.transport.push(`{"type":"new_notification","notification":{"id":5,"type":"alert","title":"n5","message":"m","status":"sent","created_at":"2026-02-01T10:00:00Z"}}`)
	waitFor(t, "push applied", func() bool { return f.client.UnreadCount() == 5 })
	if got := f.titles.Current(); got != "(5) Beacon" {
		t.Fatalf("title=%q", got)
	}
	if string(f.icons.Current()) != "icon-5" {
		t.Fatalf("icon=%q", f.icons.Current())
	}
	waitFor(t, "system notification", func() bool { return f.notifier.count() == 1 })
	if list := f.client.Notifications(); list[0].ID != 5 {
		t.Fatalf("newest first expected, got %+v", list[0])
	}

	if err := f.client.MarkAllAsRead(); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	waitFor(t, "command sent", func() bool {
		sent := f.transport.sentMessages()
		return len(sent) == 1 && sent[0] == `{"type":"mark_all_read"}`
	})

	f.transport.push(`{"type":"notifications_bulk_read","read_at":"2026-02-01T11:00:00Z"}`)
	waitFor(t, "bulk read applied", func() bool { return f.client.UnreadCount() == 0 })
	if got := f.titles.Current(); got != "Beacon" {
		t.Fatalf("title must revert, got %q", got)
	}
	if got := f.kv.get("notification_unread_count_u1"); got != "0" {
		t.Fatalf("persisted=%q", got)
	}
}

func TestCommandsAreNotOptimistic(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, &fakePermission{state: PermissionGranted})
	waitFor(t, "connected", f.client.IsConnected)

	f.transport.push(`{"type":"initial_data","unread_count":2,"notifications":[
		{"id":2,"type":"reminder","title":"n2","message":"m","status":"sent","created_at":"2026-02-01T09:00:00Z"}
	]}`)
	waitFor(t, "initial sync", func() bool { return f.client.UnreadCount() == 2 })

	if err := f.client.MarkAsRead(2); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// The command alone must not change local state.
	time.Sleep(20 * time.Millisecond)
	if got := f.client.UnreadCount(); got != 2 {
		t.Fatalf("state mutated before the echo, unread=%d", got)
	}
	f.transport.push(`{"type":"notification_read","notificationId":2,"read_at":"2026-02-01T11:00:00Z"}`)
	waitFor(t, "echo applied", func() bool { return f.client.UnreadCount() == 1 })
}

func TestCloseRestoresAndPurges(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, &fakePermission{state: PermissionGranted})
	waitFor(t, "connected", f.client.IsConnected)

	f.transport.push(`{"type":"initial_data","unread_count":3,"notifications":[]}`)
	waitFor(t, "initial sync", func() bool { return f.client.UnreadCount() == 3 })

	f.client.Close()
	if f.client.ConnectionStatus() != conn.StatusDisconnected {
		t.Fatalf("status=%s", f.client.ConnectionStatus())
	}
	if f.titles.Current() != "shell" {
		t.Fatalf("title must be restored, got %q", f.titles.Current())
	}
	if string(f.icons.Current()) != "original icon" {
		t.Fatalf("icon must be restored, got %q", f.icons.Current())
	}
	if f.kv.has("notification_unread_count_u1") {
		t.Fatalf("durable unread key must be purged on logout")
	}
	// Idempotent.
	f.client.Close()
}

func TestPermissionDeniedDisablesNotifications(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, &fakePermission{state: PermissionDefault, grant: false})
	waitFor(t, "connected", f.client.IsConnected)

	f.transport.push(`{"type":"new_notification","notification":{"id":1,"type":"alert","title":"n1","message":"m","status":"sent","created_at":"2026-02-01T10:00:00Z"}}`)
	waitFor(t, "push applied", func() bool { return f.client.UnreadCount() >= 1 })
	if f.notifier.count() != 0 {
		t.Fatalf("denied permission must suppress system notifications")
	}
	if !f.client.IsConnected() {
		t.Fatalf("permission denial must not affect the socket")
	}
}

func TestPermissionRequestedOnlyWhenDefault(t *testing.T) {
	testlog.Start(t)
	granted := &fakePermission{state: PermissionGranted}
	f := newFixture(t, granted)
	waitFor(t, "connected", f.client.IsConnected)
	if granted.requests != 0 {
		t.Fatalf("already-decided permission must not be re-requested")
	}

	asked := &fakePermission{state: PermissionDefault, grant: true}
	g := newFixture(t, asked)
	waitFor(t, "connected", g.client.IsConnected)
	if asked.requests != 1 {
		t.Fatalf("default permission must be requested exactly once, got %d", asked.requests)
	}
}

func TestRestoredCountPaintsBeforeResync(t *testing.T) {
	testlog.Start(t)
	f := &fixture{
		transport:  newFakeTransport(),
		kv:         newMemKV(),
		titles:     &memTitleSink{value: "shell"},
		icons:      &memIconSink{},
		permission: &fakePermission{state: PermissionGranted},
		notifier:   &recordingNotifier{},
	}
	f.kv.put("notification_unread_count_u1", "7")
	cfg := Config{
		Conn: conn.Config{
			ServiceURL: "https://push.example.test",
			UserID:     "u1",
		},
		Title: title.Config{BaseTitle: "Beacon"},
	}
	deps := Deps{
		Dialer:     &fakeDialer{trs: []*fakeTransport{f.transport}},
		Resolver:   staticResolver{token: "tok"},
		KV:         f.kv,
		TitleSink:  f.titles,
		IconSink:   f.icons,
		Render:     func(count int) ([]byte, error) { return []byte(fmt.Sprintf("icon-%d", count)), nil },
		Permission: f.permission,
		Notifier:   f.notifier,
		Logger:     zerolog.Nop(),
	}
	c, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(c.Close)
	if got := c.UnreadCount(); got != 7 {
		t.Fatalf("persisted count must seed the store, unread=%d", got)
	}
	if got := f.titles.Current(); got != "(7) Beacon" {
		t.Fatalf("first paint must show the persisted count, title=%q", got)
	}
}

func TestStoredPermissionRoundTrip(t *testing.T) {
	testlog.Start(t)
	kv := newMemKV()
	p := &StoredPermission{KV: kv, Allow: true, Log: zerolog.Nop()}
	if p.State() != PermissionDefault {
		t.Fatalf("fresh state=%s", p.State())
	}
	if got := p.Request(); got != PermissionGranted {
		t.Fatalf("request=%s", got)
	}
	if p.State() != PermissionGranted {
		t.Fatalf("decision must persist, state=%s", p.State())
	}
	denyKV := newMemKV()
	deny := &StoredPermission{KV: denyKV, Allow: false, Log: zerolog.Nop()}
	if got := deny.Request(); got != PermissionDenied {
		t.Fatalf("request=%s", got)
	}
}
