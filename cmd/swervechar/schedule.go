package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Manage automatic characterization passes",
		GroupID: gAdvanced,
		Long: `Manage automatic characterization passes.

A scheduled pass runs the full four-test sequence (quasistatic forward/reverse, dynamic forward/reverse) on the active routine at the configured cron times. The daemon refuses to start a pass while a manually scheduled test is running.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the configured cron expression",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cron, err := apiClient.GetSchedule()
				if err != nil {
					return fmt.Errorf("failed to get schedule: %w", err)
				}
				if cron == "" {
					cmd.Println("No schedule configured.")
				} else {
					cmd.Println(cron)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <cron expression>",
			Short: "Schedule characterization passes with a cron expression",
			Long: `Schedule characterization passes with a cron expression, e.g. "0 3 * * 6" for every Saturday at 3 AM. Descriptors like "@daily" also work.`,
			Args: cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cron := strings.Join(args, " ")
				next, err := apiClient.SetSchedule(cron)
				if err != nil {
					return fmt.Errorf("failed to set schedule: %w", err)
				}

				logrus.Infof("successfully scheduled characterization passes: %s", cron)
				if len(next) > 0 {
					cmd.Println("Next passes:")
					for _, t := range next {
						cmd.Printf("  %s\n", t.Format(time.DateTime))
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Disable automatic characterization passes",
			RunE: func(_ *cobra.Command, _ []string) error {
				if _, err := apiClient.SetSchedule(""); err != nil {
					return fmt.Errorf("failed to disable schedule: %w", err)
				}
				logrus.Infof("successfully disabled automatic characterization passes")
				return nil
			},
		},
	)

	return cmd
}
