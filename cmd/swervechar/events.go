package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robostack/swervechar/pkg/events"
)

func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "events",
		Short:   "Stream daemon events to the terminal",
		GroupID: gAdvanced,
		Long: `Stream daemon events to the terminal.

Prints test state transitions and lifecycle actions as they happen. Useful for watching a characterization pass from another shell. Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigc
				cancel()
			}()

			evCh := apiClient.SubscribeEvents(ctx)

			for ev := range evCh {
				switch ev.Name {
				case events.TestState:
					payload, err := events.DecodeAs[events.TestStateEvent](ev)
					if err != nil {
						logrus.WithError(err).Error("failed to decode test.state event")
						continue
					}
					cmd.Printf("%s  %s = %s\n",
						time.Unix(payload.Ts, 0).Format(time.TimeOnly),
						payload.Key, payload.State)
				case events.TestAction:
					payload, err := events.DecodeAs[events.TestActionEvent](ev)
					if err != nil {
						logrus.WithError(err).Error("failed to decode test.action event")
						continue
					}
					cmd.Printf("%s  [%s] %s\n",
						time.Unix(payload.Ts, 0).Format(time.TimeOnly),
						payload.Action, payload.Message)
				default:
					cmd.Printf("%s  %s\n", ev.Name, string(ev.Data))
				}
			}

			return nil
		},
	}
}
