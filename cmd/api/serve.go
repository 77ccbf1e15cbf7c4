package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/handler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := build(ctx)
			if err != nil {
				return err
			}
			defer c.close()

			app := handler.NewApp(handler.RouterConfig{
				Tokens:             c.tokens,
				InternalJobSecret:  c.cfg.InternalJobSecret,
				CORSOrigins:        c.cfg.AllowedOrigins(),
				RateLimitPerMinute: c.cfg.RateLimitPerMinute,
				RequestLogging:     true,
				Events:             c.events,
				Sessions:           c.sessions,
				Uploads:            c.uploads,
				Media:              c.media,
				Facets:             c.facets,
				Jobs:               c.jobs,
				Logger:             c.logger,
			})

			if c.cfg.Jobs.Enabled {
				c.scheduler.Start(ctx)
				defer c.scheduler.Stop()
			}

			errCh := make(chan error, 1)
			go func() {
				c.logger.Info("listening", zap.String("port", c.cfg.Port))
				errCh <- app.Listen(":" + c.cfg.Port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			c.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		},
	}
}
