package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/secfunded/stackd/internal/detector"
)

type pidMeta struct {
	StartUnix int64 `json:"start_unix"`
}

// WritePIDFile records pid plus a start-time meta line at path. The meta
// lets a later liveness check reject a recycled PID.
func WritePIDFile(path string, pid int) error {
	if path == "" || pid <= 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(pid))
	b.WriteByte('\n')
	if start := detector.ProcStartUnix(pid); start > 0 {
		meta, _ := json.Marshal(pidMeta{StartUnix: start})
		b.Write(meta)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

// ReadPIDFile reads a PID file written by WritePIDFile. Legacy files
// containing only the PID are accepted.
func ReadPIDFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidLine, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	return pid, nil
}
