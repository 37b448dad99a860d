package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/robostack/swervechar/pkg/events"
	"github.com/robostack/swervechar/pkg/sysid"
)

const (
	// upcomingLead is how long before a scheduled pass subscribers are
	// warned, so a pit crew can clear the area.
	upcomingLead = time.Minute

	preCheckMaxAttempts = 12
	preCheckInterval    = time.Second * 5

	// settleDelay separates consecutive tests in an automatic pass so the
	// mechanism comes to rest between excitations.
	settleDelay = 2 * time.Second
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Runner executes a task on a cron schedule. Before each run it warns
// subscribers, then retries a pre-check until the task may safely start.
type Runner struct {
	OnUpcoming NotifyFunc // called before running the task
	OnError    NotifyFunc // called on task error
	Task       TaskFunc   // task callback
	PreCheck   TaskFunc   // safety check callback

	parser cron.Parser

	schedule cron.Schedule
	nextRun  time.Time

	mu      sync.Mutex
	running bool

	controlCh chan controlMsg
	stopCh    chan struct{}
}

// internal control kinds (not user visible events)
type controlKind int

const (
	ctrlRecalculate controlKind = iota // timer needs recalculation due to schedule change
	ctrlSkip                           // next run skipped
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewRunner(task, preCheck TaskFunc, onUpcoming, onError NotifyFunc) *Runner {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Runner{
		OnUpcoming: onUpcoming,
		OnError:    onError,
		Task:       task,
		PreCheck:   preCheck,
		parser:     cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh:  make(chan controlMsg, 4),
		stopCh:     make(chan struct{}),
	}
}

func (r *Runner) Stop() {
	select {
	case <-r.stopCh: // already closed
	default:
		close(r.stopCh)
	}
}

func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	select {
	case <-r.stopCh: // restarting after Stop
		r.stopCh = make(chan struct{})
	default:
	}
	r.running = true
	go r.runScheduled(r.stopCh)
}

func (r *Runner) Schedule(cronExpr string) error {
	sh, err := r.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	r.mu.Lock()
	running := r.running
	if !running {
		r.schedule = sh
		r.nextRun = sh.Next(time.Now())
	}
	r.mu.Unlock()

	if running {
		r.trySendControl(ctrlRecalculate, sh)
	}
	return nil
}

// Skip skips the next scheduled run.
func (r *Runner) Skip() error {
	r.mu.Lock()
	if r.schedule == nil || r.nextRun.IsZero() {
		r.mu.Unlock()
		return fmt.Errorf("no active schedule to skip")
	}
	next := r.schedule.Next(r.nextRun)
	r.nextRun = next
	running := r.running
	r.mu.Unlock()

	if running {
		r.trySendControl(ctrlSkip, nil)
	}
	return nil
}

func (r *Runner) Status() (nextRun time.Time, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	nextRun = r.nextRun
	running = r.running
	return
}

func (r *Runner) runScheduled(stopCh <-chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		logrus.Debug("schedule runner stopped")
	}()

	logrus.Debug("schedule runner started")

	for {
		leading := true
		attempts := 0
		var precheckErr error

		schedule, nextRun := r.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun) - upcomingLead
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		for {
			select {
			case <-timer.C:
				if schedule == nil || nextRun.IsZero() {
					break
				}

				if leading {
					logrus.Debugf("upcoming scheduled pass at %s", nextRun.Format(time.DateTime))
					leading = false
					runWait := time.Until(nextRun)
					if runWait < 0 {
						runWait = 0
					}
					timer.Reset(runWait)
					r.sendNotify(nextRun)
					continue
				}

				logrus.Debugf("running scheduled pass at %s", nextRun.Format(time.DateTime))

				if r.PreCheck != nil {
					if err := r.PreCheck(); err != nil {
						if precheckErr == nil || err.Error() != precheckErr.Error() {
							precheckErr = err
							r.sendError(fmt.Errorf("precheck failed: %v", err))
						}

						attempts++
						if attempts <= preCheckMaxAttempts {
							logrus.Debugf("precheck failed (%d/%d): %v; retrying in %s", attempts, preCheckMaxAttempts, err, preCheckInterval)
							timer.Reset(preCheckInterval)
							continue
						}

						timer.Stop()
						r.advanceNextRun()
						break
					}
				}

				timer.Stop()

				go func() {
					if err := r.Task(); err != nil {
						r.sendError(fmt.Errorf("pass failed: %v", err))
					}
				}()
				r.advanceNextRun()
			case <-stopCh:
				timer.Stop()
				r.mu.Lock()
				r.running = false
				r.mu.Unlock()
				return
			case msg := <-r.controlCh: // internal control messages
				logrus.WithFields(logrus.Fields{
					"kind": msg.kind,
					"data": msg.data,
				}).Debug("received control msg")

				switch msg.kind {
				case ctrlRecalculate:
					timer.Stop()
					sh := msg.data.(cron.Schedule)
					r.mu.Lock()
					r.schedule = sh
					r.nextRun = sh.Next(time.Now())
					r.mu.Unlock()
				case ctrlSkip:
					timer.Stop()
				}
			}

			break
		}
	}
}

func (r *Runner) snapshot() (cron.Schedule, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedule, r.nextRun
}

func (r *Runner) advanceNextRun() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schedule == nil {
		return
	}
	r.nextRun = r.schedule.Next(r.nextRun)
}

func (r *Runner) sendNotify(runAt time.Time) {
	if r.OnUpcoming == nil {
		return
	}
	go r.OnUpcoming(runAt)
}

func (r *Runner) sendError(err error) {
	if r.OnError == nil {
		return
	}
	go r.OnError(err)
}

func (r *Runner) trySendControl(kind controlKind, data any) {
	select {
	case r.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}

// runCharacterizationPass runs the four standard tests of the active routine
// back to back: quasistatic forward/reverse, then dynamic forward/reverse.
func runCharacterizationPass() error {
	kind := char.ActiveRoutine()
	timeout := char.Routine(kind).Timeout()

	logrus.WithField("routine", kind).Info("starting scheduled characterization pass")
	hub.Publish(events.TestAction, events.TestActionEvent{
		Action:  "pass-start",
		Message: fmt.Sprintf("Scheduled characterization pass on %s routine", kind),
		Ts:      time.Now().Unix(),
	})

	tests := []*sysid.Test{
		char.Quasistatic(sysid.Forward),
		char.Quasistatic(sysid.Reverse),
		char.Dynamic(sysid.Forward),
		char.Dynamic(sysid.Reverse),
	}

	for _, t := range tests {
		done, err := sched.Schedule(t)
		if err != nil {
			return err
		}
		select {
		case <-done:
		case <-time.After(timeout + 5*time.Second):
			// Tests end themselves at the routine timeout; reaching this
			// means the control loop is wedged.
			sched.Cancel(t)
			return fmt.Errorf("test %s did not finish within %s", t.Name(), timeout+5*time.Second)
		}
		time.Sleep(settleDelay)
	}

	hub.Publish(events.TestAction, events.TestActionEvent{
		Action:  "pass-complete",
		Message: fmt.Sprintf("Characterization pass on %s routine complete", kind),
		Ts:      time.Now().Unix(),
	})
	logrus.WithField("routine", kind).Info("scheduled characterization pass complete")
	return nil
}

// precheckIdle refuses to start an automatic pass while anything is driving
// the drivetrain.
func precheckIdle() error {
	if running := sched.Running(); len(running) > 0 {
		return fmt.Errorf("tests still running: %v", running)
	}
	return nil
}

func notifyUpcoming(data any) {
	runAt, _ := data.(time.Time)
	hub.Publish(events.TestAction, events.TestActionEvent{
		Action:  "pass-upcoming",
		Message: fmt.Sprintf("Characterization pass scheduled at %s", runAt.Format(time.DateTime)),
		Ts:      time.Now().Unix(),
	})
}

func notifyError(data any) {
	err, ok := data.(error)
	if !ok {
		return
	}
	logrus.WithError(err).Error("scheduled characterization pass")
	hub.Publish(events.TestAction, events.TestActionEvent{
		Action:  "pass-error",
		Message: err.Error(),
		Ts:      time.Now().Unix(),
	})
}
