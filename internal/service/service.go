//go:build !windows

package service

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/secfunded/stackd/internal/detector"
)

// Service is the runtime record for one managed slot. At most one live
// instance exists per Service; the supervisor is the only writer.
type Service struct {
	spec     Spec
	mu       sync.Mutex
	cmd      *exec.Cmd
	out      io.WriteCloser
	waitDone chan struct{} // closed by the reaper when cmd.Wait returns
	restarts int
	status   Status
}

func New(spec Spec) *Service { return &Service{spec: spec} }

func (s *Service) Name() string { return s.spec.Name }

func (s *Service) Spec() Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Launch starts the service as a detached child in its own process group,
// redirects its combined stdout/stderr to the configured log, records the
// PID to the pidfile, and installs a reaper so the child never lingers as
// a zombie. A spawn failure leaves the slot unchanged.
func (s *Service) Launch(mergedEnv []string) error {
	s.mu.Lock()
	spec := s.spec
	s.mu.Unlock()

	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(mergedEnv) > 0 {
		cmd.Env = mergedEnv
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	out, err := spec.Log.Writer(spec.Name)
	if err != nil {
		return fmt.Errorf("open log for %s: %w", spec.Name, err)
	}
	if out != nil {
		cmd.Stdout = out
		cmd.Stderr = out
	} else {
		null, _ := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		cmd.Stdout = null
		cmd.Stderr = null
	}

	if err := cmd.Start(); err != nil {
		if out != nil {
			_ = out.Close()
		}
		return fmt.Errorf("spawn %s: %w", spec.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.out = out
	s.waitDone = make(chan struct{})
	s.status = Status{
		Name:      spec.Name,
		Running:   true,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
		Restarts:  s.restarts,
	}
	wd := s.waitDone
	s.mu.Unlock()

	// Pidfile synchronously, so liveness checks work immediately after Launch.
	if err := WritePIDFile(spec.PIDFile, cmd.Process.Pid); err != nil {
		return fmt.Errorf("write pidfile for %s: %w", spec.Name, err)
	}

	go s.reap(cmd, wd)
	return nil
}

// reap waits on the child so it cannot become a zombie, then records exit
// state and closes the log writer.
func (s *Service) reap(cmd *exec.Cmd, wd chan struct{}) {
	err := cmd.Wait()
	s.mu.Lock()
	if s.cmd == cmd {
		s.status.Running = false
		s.status.StoppedAt = time.Now()
		s.status.ExitErr = err
		if s.out != nil {
			_ = s.out.Close()
			s.out = nil
		}
	}
	s.mu.Unlock()
	close(wd)
}

// Alive reports liveness strictly through the pidfile: an absent file means
// not alive regardless of any real process state, and a present file is
// double-checked against the kernel (the PID may be stale or recycled).
func (s *Service) Alive() bool {
	s.mu.Lock()
	pidFile := s.spec.PIDFile
	s.mu.Unlock()
	if pidFile == "" {
		return false
	}
	d := detector.PIDFileDetector{PIDFile: pidFile}
	alive, err := d.Alive()
	if err != nil {
		return false
	}
	return alive
}

// Stop terminates the service if it is alive and removes the pidfile
// unconditionally. Calling Stop on an already-stopped service is a no-op
// beyond the file removal. SIGTERM goes to the whole process group;
// escalation to SIGKILL happens after wait.
func (s *Service) Stop(wait time.Duration) error {
	defer s.removePIDFile()

	if !s.Alive() {
		return nil
	}

	s.mu.Lock()
	cmd := s.cmd
	wd := s.waitDone
	pidFile := s.spec.PIDFile
	s.mu.Unlock()

	var pid int
	switch {
	case cmd != nil && cmd.Process != nil:
		pid = cmd.Process.Pid
	default:
		// Adopted pidfile from a previous supervisor run: signal the pid it names.
		var err error
		pid, err = ReadPIDFile(pidFile)
		if err != nil {
			return nil
		}
		wd = nil
	}

	_ = syscall.Kill(-pid, syscall.SIGTERM)
	if wd != nil {
		select {
		case <-wd:
			return nil
		case <-time.After(wait):
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			select {
			case <-wd:
			case <-time.After(200 * time.Millisecond):
				// best-effort
			}
		}
		return nil
	}
	// No reaper for an adopted pid; poll the kernel instead.
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); err != nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	return nil
}

func (s *Service) removePIDFile() {
	s.mu.Lock()
	pidFile := s.spec.PIDFile
	s.mu.Unlock()
	if pidFile == "" {
		return
	}
	_ = os.Remove(pidFile)
}

// IncRestarts bumps the per-run restart counter and returns the new value.
func (s *Service) IncRestarts() int {
	s.mu.Lock()
	s.restarts++
	v := s.restarts
	s.status.Restarts = v
	s.mu.Unlock()
	return v
}

func (s *Service) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Snapshot returns a copy of the current status.
func (s *Service) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
