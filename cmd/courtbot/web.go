package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbot/pkg/log"
	"courtbot/pkg/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func webCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Serve checks and bookings over HTTP with streamed stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink, err := newSink(loaded)
			if err != nil {
				return err
			}
			server := web.NewServer(ctx, newOrchestrator(loaded, sink))
			httpServer := &http.Server{Addr: loaded.Web.Address, Handler: server.Handler()}

			go func() {
				<-ctx.Done()
				shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = httpServer.Shutdown(shutdownContext)
			}()

			log.L().Info("server_start", zap.String("addr", loaded.Web.Address))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.L().Error("server_exit", zap.Error(err))
				return err
			}
			server.Wait()
			return nil
		},
	}
}
