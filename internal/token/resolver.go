// Package token locates the bearer credential used to authenticate the
// notification socket.
//
// Resolution walks a fixed, ordered chain of client-side storage
// locations; the first non-empty match wins. No structural validation
// of the token happens here, that belongs to the auth subsystem.
package token

import (
	"errors"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("token: no credential found")

// Source yields a credential from one storage location. An empty
// string with a nil error means the location holds nothing.
type Source interface {
	Name() string
	Token() (string, error)
}

// SourceFunc adapts a function into a named Source.
type SourceFunc struct {
	SourceName string
	Fn         func() (string, error)
}

func (s SourceFunc) Name() string { return s.SourceName }

func (s SourceFunc) Token() (string, error) {
	return s.Fn()
}

// Resolver walks its sources in order.
type Resolver struct {
	sources []Source
	log     zerolog.Logger
}

func NewResolver(logger zerolog.Logger, sources ...Source) *Resolver {
	return &Resolver{sources: sources, log: logger}
}

// Resolve returns the first non-empty credential in source order.
// Individual source failures are logged and skipped; the chain is
// exhaustive, so one broken store never masks a later one.
func (r *Resolver) Resolve() (string, error) {
	for _, src := range r.sources {
		value, err := src.Token()
		if err != nil {
			r.log.Debug().Str("source", src.Name()).Err(err).Msg("credential source failed")
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			r.log.Trace().Str("source", src.Name()).Msg("credential source empty")
			continue
		}
		r.log.Debug().Str("source", src.Name()).Msg("credential resolved")
		return value, nil
	}
	return "", ErrNotFound
}

// EnvSource reads a credential from a process environment variable.
type EnvSource struct {
	Key string
}

func (s EnvSource) Name() string { return "env:" + s.Key }

func (s EnvSource) Token() (string, error) {
	return os.Getenv(s.Key), nil
}

// FileSource reads a credential from a plain token file.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Token() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// StaticSource returns a credential carried on already-resolved
// configuration, such as a token attached to the user record.
type StaticSource struct {
	SourceName string
	Value      string
}

func (s StaticSource) Name() string { return s.SourceName }

func (s StaticSource) Token() (string, error) {
	return s.Value, nil
}
