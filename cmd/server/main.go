package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/auroralive/player-telemetry/internal/config"
	"github.com/auroralive/player-telemetry/internal/frontend"
	"github.com/auroralive/player-telemetry/internal/mock"
	"github.com/auroralive/player-telemetry/internal/monitor"
	"github.com/auroralive/player-telemetry/internal/notify"
	"github.com/auroralive/player-telemetry/internal/observability"
	"github.com/auroralive/player-telemetry/internal/player"
	"github.com/auroralive/player-telemetry/internal/ws"
)

type options struct {
	configPath string
	port       int
	logLevel   string
	playbackID string
	autoplay   bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "player-telemetry",
		Short:        "Serve live playback telemetry for a simulated WebRTC player",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	flags.IntVar(&opts.port, "port", 0, "Override server port")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log level")
	flags.StringVar(&opts.playbackID, "playback-id", "", "Override the playback id")
	flags.BoolVar(&opts.autoplay, "autoplay", false, "Start playing on launch")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.playbackID != "" {
		cfg.Player.PlaybackID = opts.playbackID
	}
	if cmd.Flags().Changed("autoplay") {
		cfg.Player.Autoplay = opts.autoplay
	}

	if err := observability.SetupLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	dispatcher := player.NewDispatcher(mock.NewEngine(cfg.Mock, nil), nil)
	dispatcher.SetObserver(metrics)
	defer dispatcher.Close()

	broadcaster := ws.NewBroadcaster(dispatcher, nil,
		cfg.Broadcast.SnapshotInterval, cfg.Broadcast.ClientBuffer, cfg.Broadcast.MaxClients)
	defer broadcaster.Stop()

	notifier := notify.New(notify.Config{
		LayerErrorDuration: cfg.Notify.LayerErrorDuration,
		Position:           cfg.Notify.Position,
	}, nil, dispatcher, notify.NewLogPresenter(), broadcaster)
	notifier.Attach(dispatcher)
	defer notifier.Detach()

	mon := monitor.NewMonitor(nil, dispatcher, cfg.Player.StatsInterval, cfg.Player.StallAfter)
	mon.SetHealthHook(func(s monitor.Status) {
		metrics.SetStalled(s == monitor.Stalled)
		broadcaster.HealthChanged(s)
	})
	go mon.Start(ctx)

	if cfg.Player.Autoplay {
		dispatcher.Play(player.NewPlayRequest(cfg.Player.PlaybackID, cfg.Player.Token))
	}

	server := ws.NewServer(cfg.Server, dispatcher, broadcaster,
		promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	server.SetStatic(frontend.Handler())

	err = ws.ListenAndServe(ctx, cfg.Server.Host, cfg.Server.Port, server.Handler())
	logrus.Info("shutting down")
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("exiting")
		stop()
		os.Exit(1)
	}
}
