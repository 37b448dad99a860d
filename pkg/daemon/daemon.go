// Package daemon runs the characterization control loop and its HTTP API.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/robostack/swervechar/pkg/config"
	"github.com/robostack/swervechar/pkg/events"
	"github.com/robostack/swervechar/pkg/scheduler"
	"github.com/robostack/swervechar/pkg/swerve"
	"github.com/robostack/swervechar/pkg/telemetry"
)

var (
	conf   config.Config
	char   *swerve.Characterization
	drive  *swerve.SimDrivetrain
	sched  *scheduler.Scheduler
	hub    *events.EventHub
	runner *Runner
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/routine", getRoutine)
	router.PUT("/routine", setRoutine)
	router.POST("/tests", startTest)
	router.POST("/cancel", cancelTests)
	router.GET("/status", getStatus)
	router.GET("/schedule", getSchedule)
	router.PUT("/schedule", setSchedule)
	router.GET("/events", streamEvents)
	router.GET("/ws", wsEvents)
	router.GET("/version", getVersion)

	return router
}

// Run starts the daemon: config, telemetry, characterization, control loop,
// and the HTTP API on a unix socket. It blocks until SIGINT/SIGTERM.
func Run(configPath string, unixSocketPath string) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := conf.Load(); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	hub = events.NewEventHub()
	drive = swerve.NewSimDrivetrain()
	sched = scheduler.New()

	sink := telemetry.MultiSink{
		telemetry.NewLogrusSink(logrus.StandardLogger()),
		hubSink{hub: hub},
	}
	var mqttSink *telemetry.MQTTSink
	if broker := conf.MQTTBroker(); broker != "" {
		mqttSink, err = telemetry.NewMQTTSink(broker, "swervechar-daemon", conf.MQTTTopicPrefix())
		if err != nil {
			// Telemetry is fire-and-forget by contract; a dead broker must
			// not keep the robot from characterizing.
			logrus.WithError(err).Error("failed to connect MQTT telemetry, continuing without it")
		} else {
			sink = append(sink, mqttSink)
		}
	}

	char, err = swerve.NewCharacterization(drive.Apply, drive, swerve.Options{
		TranslationStepVolts: conf.TranslationStepVolts(),
		SteerStepVolts:       conf.SteerStepVolts(),
		Sink:                 sink,
	})
	if err != nil {
		logrus.Fatalf("failed to construct characterization: %v", err)
	}

	if kind, err := swerve.ParseRoutineKind(conf.DefaultRoutine()); err != nil {
		logrus.WithError(err).Warn("invalid default routine in config, keeping translation")
	} else if err := char.SetActiveRoutine(kind); err != nil {
		logrus.WithError(err).Warn("failed to set default routine")
	}

	runner = NewRunner(runCharacterizationPass, precheckIdle, notifyUpcoming, notifyError)
	if cronExpr := conf.Cron(); cronExpr != "" {
		if err := runner.Schedule(cronExpr); err != nil {
			logrus.WithError(err).Error("invalid cron expression in config, schedule disabled")
		} else {
			runner.Start()
		}
	}

	srv := &http.Server{
		Handler: router,
	}

	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	go func() {
		logrus.Debugln("control loop starts")
		sched.Run(loopCtx, conf.ControlPeriod())
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("stopping schedule runner")
	runner.Stop()

	// Stopping the loop cancels every running test; each test zeroes its
	// mechanism output in End. The explicit Idle afterwards is the belt for
	// the case where no test was running.
	logrus.Info("stopping control loop")
	stopLoop()
	sched.CancelAll()
	drive.Apply(swerve.Idle{})

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	if mqttSink != nil {
		logrus.Info("closing mqtt telemetry")
		mqttSink.Close()
	}

	logrus.Info("exiting")
	return nil
}

// hubSink mirrors state-label telemetry onto the event hub so SSE and
// websocket subscribers see transitions live.
type hubSink struct {
	hub *events.EventHub
}

func (s hubSink) WriteString(key, value string) {
	s.hub.Publish(events.TestState, events.TestStateEvent{
		Key:   key,
		State: value,
		Ts:    time.Now().Unix(),
	})
}

func (s hubSink) WriteDouble(string, float64) {}
