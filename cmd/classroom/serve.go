package main

import (
	"code-mentor/channel"
	"code-mentor/execution"
	"code-mentor/internal"
	"code-mentor/observability"
	"code-mentor/runtime/workers"
	"code-mentor/services"
	"code-mentor/transport"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve dashboards over HTTP and websockets",
		Long: `Start the classroom server.

Endpoints:
  GET  /ws?room=ROOM&role=student|facilitator&user=ID   dashboard session
  POST /execute                                        mock code execution
  GET  /health                                         backend connectivity
  GET  /metrics                                        Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadServerConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), config)
		},
	}
}

func serve(ctx context.Context, config internal.Config) error {
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, config, log)
	if err != nil {
		return err
	}
	defer b.close()

	moderator, err := newModerator(config, log)
	if err != nil {
		return err
	}

	sup := workers.NewSupervisor(log, config.RestartInterval)
	if remoteChannel, ok := b.channel.(*channel.RemoteChannel); ok {
		sup.Add(workers.NewStoreHealthWorker(log, b.store, config.HealthInterval, remoteChannel.SetHealthy))
	}

	engine := execution.NewEngine(log, execution.WithDelay(config.ExecutionDelay))
	metrics := observability.NewMetrics()
	handler := transport.NewServer(transport.ServerDeps{
		Log:     log,
		Backend: config.ChatBackend,
		Channel: b.channel,
		Engine:  engine,
		Metrics: metrics,
		Sessions: services.SessionDeps{
			Log:                  log,
			Channel:              b.channel,
			Engine:               engine,
			Moderator:            moderator,
			Metrics:              metrics,
			NotificationInterval: config.NotificationInterval,
			SeedNotifications:    config.SeedNotifications,
		},
		AllowedOrigins: config.Origins(),
	})
	sup.Add(workers.NewHTTPServerWorker(log, config.Address(), handler))

	log.Info("Classroom server starting", "address", config.Address(), "backend", config.ChatBackend)
	sup.Run(ctx)
	log.Info("Classroom server stopped")
	return nil
}
