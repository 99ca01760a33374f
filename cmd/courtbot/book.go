package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"courtbot/pkg/games"
	"courtbot/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func bookCmd() *cobra.Command {
	var court string

	cmd := &cobra.Command{
		Use:     "book M/D RANGE",
		Short:   "Reserve the first hour of a range",
		Example: "  courtbot book 2/24 9-11p --court \"Court 2\"",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := newSink(loaded)
			if err != nil {
				return err
			}
			store, err := openStore(loaded)
			if err != nil {
				return err
			}
			defer store.Close()

			if court == "" {
				court = loaded.Chat.DefaultCourt
			}
			timeText := strings.Join(args[1:], " ")
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			outcome := newOrchestrator(loaded, sink).Book(ctx, args[0], timeText, court)
			if !outcome.ParseFailed() {
				record := games.BookingRecord{
					Date: outcome.Date, TimeRange: timeText, Court: court,
					Success: outcome.Success, Message: outcome.Message,
				}
				if len(outcome.Diagnostics) > 0 {
					record.Diagnostic = outcome.Diagnostics[0].Location
				}
				if _, err := store.RecordBooking(ctx, record); err != nil {
					log.L().Warn("booking_record_failed", zap.Error(err))
				}
			}

			if outputJSON {
				if err := printJSON(outcome); err != nil {
					return err
				}
			} else {
				fmt.Println(outcome.Message)
				for _, handle := range outcome.Diagnostics {
					fmt.Printf("  screenshot: %s\n", handle.Location)
				}
			}
			if !outcome.Success && !outcome.AlreadyBooked {
				return fmt.Errorf("booking did not complete")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&court, "court", "", "Court name to prefer (default chat.defaultCourt)")
	return cmd
}
