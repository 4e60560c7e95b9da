package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/eden-shim/handler"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the auth and REST endpoints over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			h := handler.CORS(handler.New(c, a.logger.Named("http")), a.cfg.Server.AllowedOrigins)
			srv := &http.Server{Addr: a.cfg.Server.Addr(), Handler: h}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdown)
			}()

			a.logger.Info("Eden local backend starting",
				zap.String("addr", srv.Addr),
				zap.String("mode", string(c.Mode())),
				zap.String("store", a.cfg.Store.Backend),
				zap.String("data", a.cfg.Store.DataDir))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
