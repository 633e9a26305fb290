// Package schedule runs periodic background jobs for the server.
package schedule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"taskflow/internal/ics"
	appLog "taskflow/internal/log"
	"taskflow/internal/model"
)

// TaskSource lists every stored task.
type TaskSource interface {
	All(ctx context.Context) ([]model.Task, error)
}

// Exporter writes an iCalendar snapshot of all tasks to a file on a cron
// schedule.
type Exporter struct {
	src  TaskSource
	spec string
	path string
	loc  *time.Location
	now  func() time.Time
}

// NewExporter validates spec (standard 5-field cron or an @descriptor) and
// returns an Exporter writing to path. Schedules are evaluated in loc.
func NewExporter(src TaskSource, spec, path string, loc *time.Location) (*Exporter, error) {
	if src == nil {
		return nil, errors.New("export: task source is nil")
	}
	if path == "" {
		return nil, errors.New("export: path is empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("export: schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{src: src, spec: spec, path: path, loc: loc, now: time.Now}, nil
}

// Run exports on every tick of the schedule until ctx is canceled, then
// waits for a running export to finish.
func (e *Exporter) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(e.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(e.spec, func() {
		if err := e.ExportOnce(ctx); err != nil {
			appLog.Error("scheduled export failed", err, "path", e.path)
		}
	}); err != nil {
		return fmt.Errorf("export: schedule %q: %w", e.spec, err)
	}

	appLog.Info("export scheduler started", "cron", e.spec, "path", e.path)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("export scheduler stopped")
	return nil
}

// ExportOnce writes the snapshot now.
func (e *Exporter) ExportOnce(ctx context.Context) error {
	tasks, err := e.src.All(ctx)
	if err != nil {
		return fmt.Errorf("export: list tasks: %w", err)
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, tasks, ics.EncodeOptions{Name: "taskflow", Stamp: e.now()}); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	if err := writeFileAtomic(e.path, buf.Bytes()); err != nil {
		return fmt.Errorf("export: write %s: %w", e.path, err)
	}

	appLog.Info("export written", "path", e.path, "tasks", len(tasks), "bytes", buf.Len())
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".taskflow-export-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
