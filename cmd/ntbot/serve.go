package main

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/haikerapples/ntbot/internal/channelruntime/ntchat"
	"github.com/haikerapples/ntbot/internal/healthcheck"
	"github.com/haikerapples/ntbot/internal/logutil"
	"github.com/haikerapples/ntbot/internal/ntclient"
	"github.com/haikerapples/ntbot/paint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot against the desktop automation sidecar",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			api := ntclient.New(nil, flagOrViperString(cmd, "ntchat-base-url", "ntchat.base_url"))

			paintCfg := paint.Config{
				BaseURL:          viper.GetString("paint.base_url"),
				APIKey:           viper.GetString("paint.api_key"),
				Mode:             paint.TaskMode(strings.ToLower(viper.GetString("paint.mode"))),
				AutoTranslate:    viper.GetBool("paint.auto_translate"),
				ImgProxy:         viper.GetBool("paint.img_proxy"),
				MaxTasksPerOwner: viper.GetInt("paint.max_tasks_per_user"),
				MaxTasks:         viper.GetInt("paint.max_tasks"),
				TaskTTL:          viper.GetDuration("paint.task_ttl"),
				PollInterval:     flagOrViperDuration(cmd, "paint-poll-interval", "paint.poll_interval"),
				TriggerPrefix:    viper.GetString("paint.trigger_prefix"),
			}
			svc, err := paint.NewService(paint.ServiceOptions{
				Config:      paintCfg,
				Delivery:    ntchat.NewDelivery(api, logger),
				Logger:      logger,
				PollContext: ctx,
			})
			if err != nil {
				return err
			}

			if listen := healthcheck.NormalizeListen(viper.GetString("health.listen")); listen != "" {
				srv, err := healthcheck.StartServer(ctx, logger, listen, "ntchat")
				if err != nil {
					logger.Warn("health_server_start_error", "addr", listen, "error", err.Error())
				} else {
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						_ = srv.Shutdown(shutdownCtx)
						cancel()
					}()
				}
			}

			plugin := ntchat.NewPaintPlugin(svc, paintCfg.TriggerPrefix, logger)
			return ntchat.Run(ctx, ntchat.Options{
				Logger:         logger,
				API:            api,
				Plugin:         plugin,
				MaxConcurrency: flagOrViperInt(cmd, "ntchat-max-concurrency", "ntchat.max_concurrency"),
				QueueSize:      viper.GetInt("ntchat.queue_size"),
			})
		},
	}

	cmd.Flags().String("ntchat-base-url", "", "Base URL of the chat automation sidecar.")
	cmd.Flags().Int("ntchat-max-concurrency", 0, "Max concurrently handled conversations.")
	cmd.Flags().Duration("paint-poll-interval", 0, "Interval between remote task status checks.")
	return cmd
}
