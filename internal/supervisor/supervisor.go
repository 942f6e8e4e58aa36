package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/secfunded/stackd/internal/metrics"
	"github.com/secfunded/stackd/internal/probe"
	"github.com/secfunded/stackd/internal/service"
	"github.com/secfunded/stackd/internal/store"
)

// Fatal outcomes of a run. The CLI maps any non-nil error to exit code 1.
var (
	ErrBackendSpawn     = errors.New("backend could not be spawned")
	ErrBackendUnready   = errors.New("backend never became ready")
	ErrBackendExhausted = errors.New("backend restart budget exhausted")
)

// Runner abstracts one managed slot so tests can inject fakes in place of
// real child processes.
type Runner interface {
	Name() string
	Launch(mergedEnv []string) error
	Alive() bool
	Stop(wait time.Duration) error
	IncRestarts() int
	Restarts() int
	Snapshot() service.Status
}

// Waiter blocks until a readiness probe concludes. probe.Probe satisfies it.
type Waiter interface {
	Wait(ctx context.Context) probe.Result
}

// Slot binds a runner to its readiness probe and restart budget.
type Slot struct {
	Runner      Runner
	Probe       Waiter
	MaxRestarts int
	Env         []string // merged environment for launches
}

// Config wires a supervisor. Backend is essential: its readiness failure or
// restart-budget exhaustion shuts the whole stack down. Frontend is not:
// its exhaustion degrades to backend-only monitoring. This asymmetry is the
// documented policy choice.
type Config struct {
	Backend  Slot
	Frontend Slot
	Tick     time.Duration // monitor loop interval; default 10s
	StopWait time.Duration // grace before SIGKILL escalation; default 5s
	Logger   *slog.Logger
	Journal  store.Journal // optional lifecycle journal
}

// Supervisor owns the lifecycle of exactly two managed services with a
// strict start-order dependency. A single goroutine drives all transitions;
// the slots' own reapers never initiate lifecycle changes.
type Supervisor struct {
	cfg Config
	log *slog.Logger

	mu                sync.Mutex
	state             State
	frontendAbandoned bool

	cleanupOnce sync.Once
}

func New(cfg Config) *Supervisor {
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Second
	}
	if cfg.StopWait <= 0 {
		cfg.StopWait = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{cfg: cfg, log: log, state: StateInit}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FrontendAbandoned reports whether the frontend's restart budget has been
// exhausted and the supervisor degraded to backend-only monitoring.
func (s *Supervisor) FrontendAbandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frontendAbandoned
}

// StackStatus is the snapshot served by the admin endpoint.
type StackStatus struct {
	State             State          `json:"state"`
	Backend           service.Status `json:"backend"`
	Frontend          service.Status `json:"frontend"`
	FrontendAbandoned bool           `json:"frontend_abandoned"`
}

func (s *Supervisor) Status() StackStatus {
	return StackStatus{
		State:             s.State(),
		Backend:           s.cfg.Backend.Runner.Snapshot(),
		Frontend:          s.cfg.Frontend.Runner.Snapshot(),
		FrontendAbandoned: s.FrontendAbandoned(),
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	for _, c := range allStates {
		metrics.SetSupervisorState(c.String(), c == st)
	}
	s.log.Debug("state transition", "state", st.String())
}

func (s *Supervisor) journal(evt store.Event) {
	if s.cfg.Journal == nil {
		return
	}
	evt.OccurredAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cfg.Journal.Append(ctx, evt); err != nil {
		s.log.Warn("journal append failed", "err", err)
	}
}

// Run drives the full lifecycle until a signal (ctx cancellation) or a
// fatal backend failure. It returns nil on graceful shutdown. Cleanup runs
// on every exit path and is idempotent.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.cleanup()

	be := s.cfg.Backend
	fe := s.cfg.Frontend

	// Backend first; nothing starts without it.
	s.setState(StateStartingBackend)
	if err := be.Runner.Launch(be.Env); err != nil {
		s.log.Error("backend spawn failed", "err", err)
		return fmt.Errorf("%w: %v", ErrBackendSpawn, err)
	}
	metrics.IncLaunch(be.Runner.Name())
	s.journal(store.Event{Service: be.Runner.Name(), Type: store.EventLaunch, PID: be.Runner.Snapshot().PID})
	s.log.Info("backend launched", "pid", be.Runner.Snapshot().PID)

	s.setState(StateWaitingBackendReady)
	res := be.Probe.Wait(ctx)
	metrics.AddProbeAttempts(be.Runner.Name(), res.Attempts)
	if !res.Ready {
		if ctx.Err() != nil {
			s.log.Info("interrupted while waiting for backend")
			s.journal(store.Event{Service: be.Runner.Name(), Type: store.EventShutdown, Detail: "signal during readiness wait"})
			return nil
		}
		metrics.IncProbeFailure(be.Runner.Name())
		s.journal(store.Event{Service: be.Runner.Name(), Type: store.EventNotReady, Detail: fmt.Sprintf("%d attempts", res.Attempts)})
		s.log.Error("backend never became ready", "attempts", res.Attempts)
		return ErrBackendUnready
	}
	s.journal(store.Event{Service: be.Runner.Name(), Type: store.EventReady, PID: be.Runner.Snapshot().PID, Detail: fmt.Sprintf("attempt %d", res.Attempts)})
	s.log.Info("backend ready", "attempts", res.Attempts)

	// Frontend is gated on backend readiness, but its own failures are soft.
	s.setState(StateStartingFrontend)
	if err := fe.Runner.Launch(fe.Env); err != nil {
		s.log.Warn("frontend spawn failed; will retry from monitor loop", "err", err)
	} else {
		metrics.IncLaunch(fe.Runner.Name())
		s.journal(store.Event{Service: fe.Runner.Name(), Type: store.EventLaunch, PID: fe.Runner.Snapshot().PID})
		s.log.Info("frontend launched", "pid", fe.Runner.Snapshot().PID)

		s.setState(StateWaitingFrontendReady)
		fres := fe.Probe.Wait(ctx)
		metrics.AddProbeAttempts(fe.Runner.Name(), fres.Attempts)
		if fres.Ready {
			s.journal(store.Event{Service: fe.Runner.Name(), Type: store.EventReady, PID: fe.Runner.Snapshot().PID, Detail: fmt.Sprintf("attempt %d", fres.Attempts)})
			s.log.Info("frontend ready", "attempts", fres.Attempts)
		} else if ctx.Err() == nil {
			// Non-fatal: the dashboard being down does not block the API.
			metrics.IncProbeFailure(fe.Runner.Name())
			s.journal(store.Event{Service: fe.Runner.Name(), Type: store.EventNotReady, Detail: fmt.Sprintf("%d attempts", fres.Attempts)})
			s.log.Warn("frontend not ready; monitoring anyway", "attempts", fres.Attempts)
		}
	}

	return s.monitor(ctx)
}

// monitor is the steady-state poll loop. Each tick checks both slots'
// liveness and applies the asymmetric restart policy.
func (s *Supervisor) monitor(ctx context.Context) error {
	s.setState(StateMonitoring)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("shutdown signal received")
			s.journal(store.Event{Type: store.EventShutdown, Detail: "signal"})
			return nil
		case <-ticker.C:
		}

		beAlive := s.cfg.Backend.Runner.Alive()
		metrics.SetServiceUp(s.cfg.Backend.Runner.Name(), beAlive)
		if !beAlive {
			if err := s.recoverBackend(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					s.journal(store.Event{Type: store.EventShutdown, Detail: "signal during backend recovery"})
					return nil
				}
				return err
			}
		}

		if !s.FrontendAbandoned() {
			feAlive := s.cfg.Frontend.Runner.Alive()
			metrics.SetServiceUp(s.cfg.Frontend.Runner.Name(), feAlive)
			if !feAlive {
				s.recoverFrontend()
			}
		}
	}
}

// recoverBackend relaunches the essential service, consuming one unit of
// restart budget per attempt. A relaunch that fails readiness counts as
// another death and immediately consumes the next unit, so a permanently
// broken backend exhausts the budget without waiting out monitor ticks.
func (s *Supervisor) recoverBackend(ctx context.Context) error {
	be := s.cfg.Backend
	name := be.Runner.Name()
	metrics.IncUnexpectedExit(name)
	s.journal(store.Event{Service: name, Type: store.EventExit, PID: be.Runner.Snapshot().PID})
	s.log.Warn("backend died unexpectedly")

	for {
		if ctx.Err() != nil {
			return context.Canceled
		}
		if be.Runner.Restarts() >= be.MaxRestarts {
			s.journal(store.Event{Service: name, Type: store.EventGiveUp, Detail: fmt.Sprintf("%d restarts", be.Runner.Restarts())})
			s.log.Error("backend restart budget exhausted; shutting down", "restarts", be.Runner.Restarts())
			return ErrBackendExhausted
		}
		n := be.Runner.IncRestarts()
		metrics.IncRestart(name)
		s.journal(store.Event{Service: name, Type: store.EventRestart, Detail: fmt.Sprintf("attempt %d/%d", n, be.MaxRestarts)})
		s.log.Info("restarting backend", "attempt", n, "budget", be.MaxRestarts)

		if err := be.Runner.Launch(be.Env); err != nil {
			// Spawn failure is fatal for the essential service.
			s.log.Error("backend respawn failed", "err", err)
			s.journal(store.Event{Service: name, Type: store.EventGiveUp, Detail: "respawn failed: " + err.Error()})
			return fmt.Errorf("%w: %v", ErrBackendSpawn, err)
		}
		metrics.IncLaunch(name)
		s.journal(store.Event{Service: name, Type: store.EventLaunch, PID: be.Runner.Snapshot().PID})

		res := be.Probe.Wait(ctx)
		metrics.AddProbeAttempts(name, res.Attempts)
		if res.Ready {
			s.journal(store.Event{Service: name, Type: store.EventReady, PID: be.Runner.Snapshot().PID, Detail: fmt.Sprintf("attempt %d", res.Attempts)})
			s.log.Info("backend recovered", "restarts", n)
			metrics.SetServiceUp(name, true)
			return nil
		}
		if ctx.Err() != nil {
			return context.Canceled
		}
		metrics.IncProbeFailure(name)
		s.journal(store.Event{Service: name, Type: store.EventNotReady, Detail: fmt.Sprintf("%d attempts", res.Attempts)})
		s.log.Warn("restarted backend failed readiness", "attempt", n)
	}
}

// recoverFrontend relaunches the non-essential service. Budget exhaustion
// degrades to backend-only monitoring instead of shutting down.
func (s *Supervisor) recoverFrontend() {
	fe := s.cfg.Frontend
	name := fe.Runner.Name()
	metrics.IncUnexpectedExit(name)
	s.journal(store.Event{Service: name, Type: store.EventExit, PID: fe.Runner.Snapshot().PID})
	s.log.Warn("frontend died unexpectedly")

	if fe.Runner.Restarts() >= fe.MaxRestarts {
		s.mu.Lock()
		s.frontendAbandoned = true
		s.mu.Unlock()
		s.journal(store.Event{Service: name, Type: store.EventDegraded, Detail: fmt.Sprintf("%d restarts", fe.Runner.Restarts())})
		s.log.Warn("frontend restart budget exhausted; continuing with backend only", "restarts", fe.Runner.Restarts())
		return
	}
	n := fe.Runner.IncRestarts()
	metrics.IncRestart(name)
	s.journal(store.Event{Service: name, Type: store.EventRestart, Detail: fmt.Sprintf("attempt %d/%d", n, fe.MaxRestarts)})
	s.log.Info("restarting frontend", "attempt", n, "budget", fe.MaxRestarts)

	if err := fe.Runner.Launch(fe.Env); err != nil {
		// Next tick sees the slot dead again and consumes more budget.
		s.log.Warn("frontend respawn failed", "err", err)
		return
	}
	metrics.IncLaunch(name)
	s.journal(store.Event{Service: name, Type: store.EventLaunch, PID: fe.Runner.Snapshot().PID})
}

// cleanup stops both services and removes their pid files. It is safe to
// invoke from multiple exit paths; only the first call acts.
func (s *Supervisor) cleanup() {
	s.cleanupOnce.Do(func() {
		s.setState(StateShuttingDown)
		if err := s.cfg.Frontend.Runner.Stop(s.cfg.StopWait); err != nil {
			s.log.Warn("frontend stop", "err", err)
		}
		if err := s.cfg.Backend.Runner.Stop(s.cfg.StopWait); err != nil {
			s.log.Warn("backend stop", "err", err)
		}
		metrics.SetServiceUp(s.cfg.Backend.Runner.Name(), false)
		metrics.SetServiceUp(s.cfg.Frontend.Runner.Name(), false)
		s.setState(StateStopped)
		s.log.Info("stack stopped")
	})
}
