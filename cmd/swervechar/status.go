package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/robostack/swervechar/pkg/client"
)

var apiClient = client.NewClient("/var/run/swervechar.sock")

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of swervechar",
		Long:    `Get the active routine, running tests, last drivetrain request, and schedule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			cmd.Println(bold("Characterization status:"))
			cmd.Printf("  Active routine: %s\n", bold("%s", st.ActiveRoutine))
			if len(st.Running) > 0 {
				cmd.Println("  Running tests: " + bool2Text(true))
				for _, name := range st.Running {
					cmd.Printf("    %s\n", color.GreenString(name))
				}
			} else {
				cmd.Println("  Running tests: " + bool2Text(false))
				cmd.Println("    The drivetrain is idle.")
			}
			cmd.Printf("  Last drivetrain request: %s\n", bold("%s", st.LastRequest))
			cmd.Printf("  Chassis velocity: %s\n", bold("%.3f m/s", st.VelocityMPS))
			cmd.Printf("  Yaw rate: %s\n", bold("%.3f rad/s", st.YawRateRadPerSec))
			cmd.Printf("  Control period: %s\n", bold("%d ms", st.ControlPeriodMS))

			cmd.Println()

			cmd.Println(bold("Schedule:"))
			if st.Cron == "" {
				cmd.Println("  Automatic characterization passes: " + bool2Text(false))
			} else {
				cmd.Println("  Automatic characterization passes: " + bool2Text(true))
				cmd.Printf("  Cron: %s\n", bold("%s", st.Cron))
				if !st.ScheduledAt.IsZero() {
					cmd.Printf("  Next pass: %s (in %s)\n",
						bold("%s", st.ScheduledAt.Format(time.DateTime)),
						time.Until(st.ScheduledAt).Round(time.Second))
				}
			}

			return nil
		},
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
