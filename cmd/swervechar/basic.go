package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robostack/swervechar/pkg/swerve"
	"github.com/robostack/swervechar/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewRoutineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "routine [kind]",
		Short:   "Get or set the active characterization routine",
		GroupID: gBasic,
		Long: `Get or set the active characterization routine.

With no argument, prints the active routine. With an argument, selects the routine that subsequent quasistatic and dynamic tests will exercise. Valid kinds: ` + strings.Join(routineKindNames(), ", ") + `.

A routine already running is not affected; the new selection applies to tests started afterwards.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				kind, err := apiClient.GetRoutine()
				if err != nil {
					return fmt.Errorf("failed to get active routine: %w", err)
				}
				cmd.Println(string(kind))
				return nil
			}

			kind, err := swerve.ParseRoutineKind(args[0])
			if err != nil {
				return err
			}

			ret, err := apiClient.SetRoutine(kind)
			if err != nil {
				return fmt.Errorf("failed to set active routine: %w", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set active routine to %s", kind)

			return nil
		},
	}

	return cmd
}

func NewTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "test",
		Aliases: []string{"run"},
		Short:   "Start a characterization test on the active routine",
		GroupID: gBasic,
		Long: `Start a characterization test on the active routine.

A quasistatic test ramps the drive signal slowly so acceleration stays near zero; a dynamic test steps the signal to capture acceleration response. Run all four (quasistatic forward/reverse, dynamic forward/reverse) to collect a full dataset for gain fitting.

Scheduling a test while another one is running interrupts the running one.`,
	}

	cmd.AddCommand(
		newTestSubCommand("quasistatic", "Ramp the drive signal at a constant rate"),
		newTestSubCommand("dynamic", "Step the drive signal to a constant magnitude"),
	)

	return cmd
}

func newTestSubCommand(test, short string) *cobra.Command {
	return &cobra.Command{
		Use:       test + " <forward|reverse>",
		Short:     short,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"forward", "reverse"},
		RunE: func(_ *cobra.Command, args []string) error {
			dir := args[0]
			if dir != "forward" && dir != "reverse" {
				return fmt.Errorf("invalid direction %q (want forward or reverse)", dir)
			}

			ret, err := apiClient.StartTest(test, dir)
			if err != nil {
				return fmt.Errorf("failed to start %s test: %w", test, err)
			}

			logrus.Infof("daemon scheduled: %s", ret)

			return nil
		},
	}
}

func NewCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "cancel",
		Short:   "Cancel all running tests",
		GroupID: gBasic,
		Long: `Cancel all running tests.

The drivetrain output is zeroed and cancelled tests record a final "none" state label.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ret, err := apiClient.Cancel()
			if err != nil {
				return fmt.Errorf("failed to cancel tests: %w", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}

func routineKindNames() []string {
	kinds := swerve.RoutineKinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return names
}
