package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/secfunded/stackd/internal/config"
	"github.com/secfunded/stackd/internal/detector"
	"github.com/secfunded/stackd/internal/service"
	"github.com/secfunded/stackd/internal/store/sqlite"
)

// printStatus inspects the stack from outside a running supervisor: pid
// files tell liveness, the journal tells history. It works whether or not
// `stackd run` is currently up, which is the point of persisting both.
func printStatus(cmd *cobra.Command, globalFlags *GlobalFlags, statusFlags *StatusFlags) error {
	fc, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	out := cmd.OutOrStdout()

	for _, name := range []string{"backend", "frontend"} {
		spec := fc.Spec(name)
		printServiceLine(out, spec)
	}

	if statusFlags.Events > 0 {
		db, err := sqlite.New(fc.Store.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = db.Close() }()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		events, err := db.Recent(ctx, statusFlags.Events)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		fmt.Fprintln(out)
		for _, evt := range events {
			detail := evt.Detail
			if detail != "" {
				detail = " (" + detail + ")"
			}
			fmt.Fprintf(out, "%s  %-9s %-10s pid=%d%s\n",
				evt.OccurredAt.Local().Format(time.RFC3339), evt.Type, evt.Service, evt.PID, detail)
		}
	}
	return nil
}

func printServiceLine(out io.Writer, spec service.Spec) {
	state := "stopped"
	pid := 0
	if _, err := os.Stat(spec.PIDFile); err == nil {
		pid, _ = service.ReadPIDFile(spec.PIDFile)
		d := detector.PIDFileDetector{PIDFile: spec.PIDFile}
		if alive, _ := d.Alive(); alive {
			state = "running"
		} else {
			state = "dead (stale pidfile)"
		}
	}
	if pid > 0 {
		fmt.Fprintf(out, "%-10s %-20s pid=%d\n", spec.Name, state, pid)
		return
	}
	fmt.Fprintf(out, "%-10s %-20s\n", spec.Name, state)
}
