package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/robostack/swervechar/pkg/events"
	"github.com/robostack/swervechar/pkg/swerve"
	"github.com/robostack/swervechar/pkg/sysid"
	"github.com/robostack/swervechar/pkg/version"
)

// testRequest is the POST /tests payload.
type testRequest struct {
	Test      string `json:"test"`      // "quasistatic" or "dynamic"
	Direction string `json:"direction"` // "forward" or "reverse"
}

func getRoutine(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, string(char.ActiveRoutine()))
}

func setRoutine(c *gin.Context) {
	var s string
	if err := c.BindJSON(&s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	kind, err := swerve.ParseRoutineKind(s)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := char.SetActiveRoutine(kind); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	conf.SetDefaultRoutine(string(kind))
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set active routine to %s", kind)
	hub.Publish(events.TestAction, events.TestActionEvent{
		Action:  "routine",
		Message: fmt.Sprintf("Active routine set to %s", kind),
		Ts:      time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("active routine set to %s", kind))
}

func startTest(c *gin.Context) {
	var req testRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var dir sysid.Direction
	switch req.Direction {
	case "forward":
		dir = sysid.Forward
	case "reverse":
		dir = sysid.Reverse
	default:
		err := fmt.Errorf("unknown direction %q (want forward or reverse)", req.Direction)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	var test *sysid.Test
	switch req.Test {
	case "quasistatic":
		test = char.Quasistatic(dir)
	case "dynamic":
		test = char.Dynamic(dir)
	default:
		err := fmt.Errorf("unknown test %q (want quasistatic or dynamic)", req.Test)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if _, err := sched.Schedule(test); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.WithField("test", test.Name()).Info("test scheduled")
	hub.Publish(events.TestAction, events.TestActionEvent{
		Action:  "start",
		Message: fmt.Sprintf("Scheduled %s", test.Name()),
		Ts:      time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusCreated, test.Name())
}

func cancelTests(c *gin.Context) {
	running := sched.Running()
	sched.CancelAll()

	if len(running) > 0 {
		logrus.WithField("cancelled", running).Info("tests cancelled")
		hub.Publish(events.TestAction, events.TestActionEvent{
			Action:  "cancel",
			Message: fmt.Sprintf("Cancelled %v", running),
			Ts:      time.Now().Unix(),
		})
	}

	c.IndentedJSON(http.StatusOK, fmt.Sprintf("cancelled %d test(s)", len(running)))
}

func getStatus(c *gin.Context) {
	next, running := runner.Status()
	if !running {
		next = time.Time{}
	}

	velocity, yawRate := drive.Speeds()
	c.IndentedJSON(http.StatusOK, swerve.Status{
		ActiveRoutine:    char.ActiveRoutine(),
		Running:          sched.Running(),
		LastRequest:      drive.Describe(),
		VelocityMPS:      velocity,
		YawRateRadPerSec: yawRate,
		ControlPeriodMS:  int(conf.ControlPeriod() / time.Millisecond),
		ScheduledAt:      next,
		Cron:             conf.Cron(),
	})
}

func getSchedule(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, conf.Cron())
}

func setSchedule(c *gin.Context) {
	var cronExpr string
	if err := c.BindJSON(&cronExpr); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if cronExpr == "" {
		prev := conf.Cron()
		conf.SetCron("")
		if err := conf.Save(); err != nil {
			logrus.Errorf("saveConfig failed: %v", err)
			c.IndentedJSON(http.StatusInternalServerError, err.Error())
			_ = c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		if prev != "" {
			runner.Stop()
			hub.Publish(events.TestAction, events.TestActionEvent{
				Action:  "schedule-disable",
				Message: "Characterization schedule disabled",
				Ts:      time.Now().Unix(),
			})
		}
		c.IndentedJSON(http.StatusOK, []time.Time{})
		return
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sch, err := parser.Parse(cronExpr)
	if err != nil {
		err = fmt.Errorf("invalid cron expression: %w", err)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetCron(cronExpr)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if err := runner.Schedule(cronExpr); err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	runner.Start()

	// generate three next run times for the response
	nextRuns := []time.Time{}
	now := time.Now()
	for i := 0; i < 3; i++ {
		next := sch.Next(now)
		nextRuns = append(nextRuns, next)
		now = next
	}

	hub.Publish(events.TestAction, events.TestActionEvent{
		Action:  "schedule",
		Message: fmt.Sprintf("Characterization pass scheduled at %s", nextRuns[0].Format(time.DateTime)),
		Ts:      time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusOK, nextRuns)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
