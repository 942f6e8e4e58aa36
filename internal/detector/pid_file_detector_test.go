//go:build !windows

package detector

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestPIDFileDetectorMissingFile(t *testing.T) {
	d := PIDFileDetector{PIDFile: filepath.Join(t.TempDir(), "absent.pid")}
	alive, err := d.Alive()
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if alive {
		t.Fatalf("expected not alive for missing pidfile")
	}
}

func TestPIDFileDetectorInvalidContent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(p, []byte("not-a-pid\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	d := PIDFileDetector{PIDFile: p}
	if _, err := d.Alive(); err == nil {
		t.Fatalf("expected error for invalid pid content")
	}
}

func TestPIDFileDetectorLiveProcess(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = cmd.Process.Kill(); _, _ = cmd.Process.Wait() }()

	p := filepath.Join(t.TempDir(), "live.pid")
	meta := fmt.Sprintf("%d\n{\"start_unix\":%d}\n", cmd.Process.Pid, ProcStartUnix(cmd.Process.Pid))
	if err := os.WriteFile(p, []byte(meta), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	d := PIDFileDetector{PIDFile: p}
	alive, err := d.Alive()
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if !alive {
		t.Fatalf("expected alive for running process")
	}
}

func TestPIDFileDetectorStartTimeMismatch(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = cmd.Process.Kill(); _, _ = cmd.Process.Wait() }()

	p := filepath.Join(t.TempDir(), "stale.pid")
	// Meta claiming a start time far in the past simulates a recycled PID.
	content := fmt.Sprintf("%d\n{\"start_unix\":1}\n", cmd.Process.Pid)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	d := PIDFileDetector{PIDFile: p}
	alive, err := d.Alive()
	if err != nil {
		t.Fatalf("Alive: %v", err)
	}
	if alive {
		t.Fatalf("expected not alive when start-time meta mismatches")
	}
}

func TestPIDDetector(t *testing.T) {
	d := PIDDetector{PID: os.Getpid()}
	alive, err := d.Alive()
	if err != nil || !alive {
		t.Fatalf("expected own pid alive, got %v err=%v", alive, err)
	}
	dead := PIDDetector{PID: -1}
	alive, _ = dead.Alive()
	if alive {
		t.Fatalf("expected pid -1 not alive")
	}
}
