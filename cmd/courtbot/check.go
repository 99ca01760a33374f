package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"courtbot/pkg/booking"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "check M/D RANGE",
		Short:   "Report whether the first hour of a range is free",
		Example: "  courtbot check 2/24 9-11p",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := newSink(loaded)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			outcome := newOrchestrator(loaded, sink).Check(ctx, args[0], strings.Join(args[1:], " "))
			if outputJSON {
				if err := printJSON(outcome); err != nil {
					return err
				}
			} else {
				fmt.Println(outcome.Message)
			}
			if outcome.Status == booking.AvailabilityError {
				return fmt.Errorf("check failed: %s", outcome.Kind)
			}
			return nil
		},
	}
}
