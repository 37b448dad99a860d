// Package scheduler runs tick-driven commands with per-resource exclusivity.
//
// Commands declare the resource they own; at most one command holding a given
// resource runs at a time. Scheduling a command whose resource is already
// held interrupts the running holder. All command callbacks run on the tick
// goroutine; the internal mutex only serializes Schedule/Cancel calls coming
// from other goroutines (HTTP handlers, cron tasks) against the tick.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Command is a cooperative, tick-driven unit of work.
//
// The scheduler calls Init once when the command starts, Execute once per
// tick, IsFinished after every Execute, and End exactly once when the
// command completes (interrupted=false) or is cancelled (interrupted=true).
type Command interface {
	Name() string
	// Resource is the mutual-exclusion handle the command owns while
	// scheduled. It must be comparable and non-nil.
	Resource() any
	Init(now time.Time)
	Execute(now time.Time)
	IsFinished(now time.Time) bool
	End(interrupted bool)
}

var (
	ErrNilCommand  = errors.New("scheduler: command is nil")
	ErrNilResource = errors.New("scheduler: command resource is nil")
)

type entry struct {
	cmd  Command
	done chan struct{}
}

// Scheduler owns the set of running commands. The zero value is not usable;
// call New.
type Scheduler struct {
	mu      sync.Mutex
	now     func() time.Time
	running map[any]*entry
	order   []*entry
}

// New returns an empty scheduler using the wall clock.
func New() *Scheduler {
	return &Scheduler{
		now:     time.Now,
		running: make(map[any]*entry),
	}
}

// SetClock replaces the scheduler's clock. Intended for tests; must be
// called before any command is scheduled.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Schedule starts a command. If another command holds the same resource it
// is interrupted first. The returned channel closes when the command ends,
// whether it completed or was cancelled.
func (s *Scheduler) Schedule(cmd Command) (<-chan struct{}, error) {
	if cmd == nil {
		return nil, ErrNilCommand
	}
	if cmd.Resource() == nil {
		return nil, ErrNilResource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.running[cmd.Resource()]; ok {
		logrus.WithFields(logrus.Fields{
			"running":   prev.cmd.Name(),
			"scheduled": cmd.Name(),
		}).Info("interrupting command holding the same resource")
		s.remove(prev, true)
	}

	e := &entry{cmd: cmd, done: make(chan struct{})}
	s.running[cmd.Resource()] = e
	s.order = append(s.order, e)
	cmd.Init(s.now())
	logrus.WithField("command", cmd.Name()).Debug("command scheduled")
	return e.done, nil
}

// Cancel interrupts a specific command. Commands not currently scheduled are
// ignored.
func (s *Scheduler) Cancel(cmd Command) {
	if cmd == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.running[cmd.Resource()]; ok && e.cmd == cmd {
		s.remove(e, true)
	}
}

// CancelAll interrupts every running command.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range append([]*entry(nil), s.order...) {
		s.remove(e, true)
	}
}

// Tick advances every running command by one control period.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, e := range append([]*entry(nil), s.order...) {
		e.cmd.Execute(now)
		if e.cmd.IsFinished(now) {
			s.remove(e, false)
		}
	}
}

// Running returns the names of the currently scheduled commands in schedule
// order.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.order))
	for _, e := range s.order {
		names = append(names, e.cmd.Name())
	}
	return names
}

// Run ticks the scheduler at the given period until the context is
// cancelled, then cancels all commands so actuators are left in a safe
// state.
func (s *Scheduler) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	logrus.WithField("period", period).Debug("control loop started")
	for {
		select {
		case <-ctx.Done():
			s.CancelAll()
			logrus.Debug("control loop stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// remove must be called with the mutex held.
func (s *Scheduler) remove(e *entry, interrupted bool) {
	e.cmd.End(interrupted)
	close(e.done)
	delete(s.running, e.cmd.Resource())
	for i, o := range s.order {
		if o == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if interrupted {
		logrus.WithField("command", e.cmd.Name()).Debug("command cancelled")
	} else {
		logrus.WithField("command", e.cmd.Name()).Debug("command completed")
	}
}
