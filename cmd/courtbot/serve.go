package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"courtbot/pkg/chat"
	"courtbot/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot on the console transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink, err := newSink(loaded)
			if err != nil {
				return err
			}
			store, err := openStore(loaded)
			if err != nil {
				return err
			}
			defer store.Close()
			alerted, closeAlerts := newAlertSet(ctx, loaded)
			defer closeAlerts()

			orchestrator := newOrchestrator(loaded, sink)
			transport := chat.NewConsoleTransport(os.Stdin, os.Stdout)
			trigger := chat.NewTrigger(orchestrator, store, alerted, transport, sink)
			bot := chat.NewBot(chat.Config{
				PlayersNeeded: loaded.Chat.PlayersNeeded,
				Capacity:      loaded.Chat.Capacity,
				DefaultCourt:  loaded.Chat.DefaultCourt,
				Location:      loaded.Location(),
			}, transport, orchestrator, store, trigger)

			log.L().Info("chat_start", zap.String("group", loaded.Chat.Group))
			if err := bot.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
