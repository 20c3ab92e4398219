package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// beaconctl config.toml key mapping to client runtime settings.
type fileConfig struct {
	ServiceURL               string `toml:"service_url"`
	UserID                   string `toml:"user_id"`
	Token                    string `toml:"token"`
	BaseTitle                string `toml:"base_title"`
	TitlePrefix              string `toml:"title_prefix"`
	TitleSuffix              string `toml:"title_suffix"`
	StateDir                 string `toml:"state_dir"`
	IconPath                 string `toml:"icon_path"`
	IconOutputPath           string `toml:"icon_output_path"`
	ConnectTimeout           string `toml:"connect_timeout"`
	ReconnectBaseDelay       string `toml:"reconnect_base_delay"`
	MaxReconnectAttempts     int    `toml:"max_reconnect_attempts"`
	AllowSystemNotifications bool   `toml:"allow_system_notifications"`
	MetricsListenAddr        string `toml:"metrics_listen_addr"`
}

type appConfig struct {
	ServiceURL               string
	UserID                   string
	Token                    string
	BaseTitle                string
	TitlePrefix              string
	TitleSuffix              string
	StateDir                 string
	IconPath                 string
	IconOutputPath           string
	ConnectTimeout           time.Duration
	ReconnectBaseDelay       time.Duration
	MaxReconnectAttempts     int
	AllowSystemNotifications bool
	MetricsListenAddr        string
}

func defaultAppConfig() appConfig {
	return appConfig{
		BaseTitle:                "Beacon",
		StateDir:                 ".beacon",
		AllowSystemNotifications: true,
	}
}

// beaconctl loader for TOML config with default overlay.
func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load beacon config: %w", err)
	}

	if meta.IsDefined("service_url") {
		cfg.ServiceURL = strings.TrimSpace(raw.ServiceURL)
	}
	if meta.IsDefined("user_id") {
		cfg.UserID = strings.TrimSpace(raw.UserID)
	}
	if meta.IsDefined("token") {
		cfg.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("base_title") {
		cfg.BaseTitle = strings.TrimSpace(raw.BaseTitle)
	}
	if meta.IsDefined("title_prefix") {
		cfg.TitlePrefix = raw.TitlePrefix
	}
	if meta.IsDefined("title_suffix") {
		cfg.TitleSuffix = raw.TitleSuffix
	}
	if meta.IsDefined("state_dir") {
		cfg.StateDir = strings.TrimSpace(raw.StateDir)
	}
	if meta.IsDefined("icon_path") {
		cfg.IconPath = strings.TrimSpace(raw.IconPath)
	}
	if meta.IsDefined("icon_output_path") {
		cfg.IconOutputPath = strings.TrimSpace(raw.IconOutputPath)
	}
	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}
	if meta.IsDefined("reconnect_base_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReconnectBaseDelay))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse reconnect_base_delay: %w", err)
		}
		cfg.ReconnectBaseDelay = d
	}
	if meta.IsDefined("max_reconnect_attempts") {
		cfg.MaxReconnectAttempts = raw.MaxReconnectAttempts
	}
	if meta.IsDefined("allow_system_notifications") {
		cfg.AllowSystemNotifications = raw.AllowSystemNotifications
	}
	if meta.IsDefined("metrics_listen_addr") {
		cfg.MetricsListenAddr = strings.TrimSpace(raw.MetricsListenAddr)
	}

	if cfg.ServiceURL == "" {
		return appConfig{}, fmt.Errorf("load beacon config: service_url is required")
	}
	if cfg.UserID == "" {
		return appConfig{}, fmt.Errorf("load beacon config: user_id is required")
	}
	// The badged artifact is written apart from the base asset so a
	// crash mid-session never leaves a badged icon as the next run's
	// base.
	if cfg.IconOutputPath == "" {
		cfg.IconOutputPath = filepath.Join(cfg.StateDir, "icon.png")
	}
	if cfg.IconOutputPath == cfg.IconPath {
		return appConfig{}, fmt.Errorf("load beacon config: icon_output_path must differ from icon_path")
	}
	return cfg, nil
}
