package client

import "github.com/rs/zerolog"

// PermissionState mirrors the three-valued push-permission model.
type PermissionState string

const (
	PermissionDefault PermissionState = "default"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// PermissionPort reports and requests system-notification permission.
// A request is only ever issued while the state is still default, so
// the user is asked at most once; the port remembers the decision.
type PermissionPort interface {
	State() PermissionState
	Request() PermissionState
}

// PermissionKV is the subset of durable storage the stored port needs.
type PermissionKV interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

const permissionKey = "notification_permission"

// StoredPermission persists the permission decision so later processes
// never re-ask. The decision itself comes from the Allow policy knob.
type StoredPermission struct {
	KV    PermissionKV
	Allow bool
	Log   zerolog.Logger
}

func (p *StoredPermission) State() PermissionState {
	raw, ok, err := p.KV.Get(permissionKey)
	if err != nil || !ok {
		return PermissionDefault
	}
	switch PermissionState(raw) {
	case PermissionGranted, PermissionDenied:
		return PermissionState(raw)
	default:
		return PermissionDefault
	}
}

func (p *StoredPermission) Request() PermissionState {
	state := PermissionDenied
	if p.Allow {
		state = PermissionGranted
	}
	if err := p.KV.Put(permissionKey, string(state)); err != nil {
		p.Log.Warn().Err(err).Msg("permission state write failed")
	}
	p.Log.Debug().Str("state", string(state)).Msg("notification permission recorded")
	return state
}

// Notifier surfaces one local system notification.
type Notifier interface {
	Notify(title, message string) error
}

// LogNotifier renders system notifications into the structured log.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(title, message string) error {
	n.Log.Info().Str("title", title).Str("message", message).Msg("notification")
	return nil
}
