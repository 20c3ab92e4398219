package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/driftwood-labs/beacon/internal/badge"
	"github.com/driftwood-labs/beacon/internal/client"
	"github.com/driftwood-labs/beacon/internal/conn"
	"github.com/driftwood-labs/beacon/internal/logging"
	"github.com/driftwood-labs/beacon/internal/observability"
	"github.com/driftwood-labs/beacon/internal/persist"
	"github.com/driftwood-labs/beacon/internal/title"
	"github.com/driftwood-labs/beacon/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "beaconctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.toml", "path to beaconctl config.toml")
	flag.Parse()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		return err
	}

	logging.ConfigureRuntime()
	log := observability.InitLogger("beaconctl")
	observability.RegisterMetrics()

	kv, err := persist.NewStore(cfg.StateDir, log)
	if err != nil {
		return err
	}

	resolver := token.NewResolver(log, token.DefaultChain(cfg.StateDir, cfg.UserID, cfg.Token)...)
	renderer := badge.NewRenderer(cfg.IconPath, log)

	c, err := client.New(
		client.Config{
			Conn: conn.Config{
				ServiceURL:           cfg.ServiceURL,
				UserID:               cfg.UserID,
				ConnectTimeout:       cfg.ConnectTimeout,
				ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
				MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			},
			Title: title.Config{
				BaseTitle: cfg.BaseTitle,
				Prefix:    cfg.TitlePrefix,
				Suffix:    cfg.TitleSuffix,
			},
		},
		client.Deps{
			Dialer:     conn.WebsocketDialer{},
			Resolver:   resolver,
			KV:         kv,
			TitleSink:  title.NewTerminalTitleSink(os.Stdout, cfg.BaseTitle),
			IconSink:   title.NewFileIconSink(cfg.IconOutputPath),
			Render:     renderer.Render,
			Permission: &client.StoredPermission{KV: kv, Allow: cfg.AllowSystemNotifications, Log: log},
			Logger:     log,
		},
	)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.MetricsListenAddr != "" {
		go serveMetrics(cfg.MetricsListenAddr, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Info().Str("service_url", cfg.ServiceURL).Str("user", cfg.UserID).Msg("beaconctl running")
	<-ctx.Done()
	log.Info().Msg("beaconctl shutting down")
	return nil
}

func serveMetrics(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn().Err(err).Msg("metrics listener stopped")
	}
}
