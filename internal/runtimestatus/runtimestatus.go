package runtimestatus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/filelock"
	"example.com/portaria/internal/models"
)

// Sink is what the pipeline reports its progress to.
type Sink interface {
	Report(action string, status models.RuntimeStatus, stage string, details interface{})
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(string, models.RuntimeStatus, string, interface{}) {}

// writeMu serializes writers inside the process; the file lock covers other processes.
var writeMu sync.Mutex

// Reporter appends RuntimeEvents to a JSONL file and keeps the last one as a snapshot.
type Reporter struct {
	eventsPath   string
	snapshotPath string
	locker       *filelock.Locker
	now          func() time.Time
}

// NewReporter creates a reporter writing to the given files.
func NewReporter(eventsPath, snapshotPath string, locker *filelock.Locker) *Reporter {
	if locker == nil {
		locker = filelock.NewLocker(0, 0)
	}
	return &Reporter{
		eventsPath:   eventsPath,
		snapshotPath: snapshotPath,
		locker:       locker,
		now:          time.Now,
	}
}

// WithClock replaces the clock used for timestamps.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// Report records one event. Failures are logged and never returned: status
// reporting must not break the flow it describes.
func (r *Reporter) Report(action string, status models.RuntimeStatus, stage string, details interface{}) {
	event := models.RuntimeEvent{
		Timestamp: r.now().Format(time.RFC3339Nano),
		Action:    action,
		Status:    status,
		Stage:     stage,
		Details:   serializableDetails(details),
	}

	logEvent(event)

	if err := r.write(event); err != nil {
		log.Error().Err(err).Str("action", action).Str("stage", stage).Msg("Failed to write runtime status")
	}
}

func (r *Reporter) write(event models.RuntimeEvent) error {
	line, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal runtime event")
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.eventsPath), 0o755); err != nil {
		return errors.Wrap(err, "failed to create logs directory")
	}

	return r.locker.With(context.Background(), r.eventsPath, func() error {
		f, err := os.OpenFile(r.eventsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrap(err, "failed to open runtime events file")
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			return errors.Wrap(err, "failed to append runtime event")
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "failed to close runtime events file")
		}

		snapshot, err := json.MarshalIndent(event, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal runtime snapshot")
		}
		if err := os.MkdirAll(filepath.Dir(r.snapshotPath), 0o755); err != nil {
			return errors.Wrap(err, "failed to create snapshot directory")
		}
		return errors.Wrap(atomic.WriteFile(r.snapshotPath, bytes.NewReader(snapshot)), "failed to replace runtime snapshot")
	})
}

// LastStatus returns the last reported event, or an empty one when nothing was reported yet.
func (r *Reporter) LastStatus() (models.RuntimeEvent, error) {
	var event models.RuntimeEvent
	data, err := os.ReadFile(r.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return event, nil
		}
		return event, errors.Wrap(err, "failed to read runtime snapshot")
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return models.RuntimeEvent{}, errors.Wrap(err, "failed to decode runtime snapshot")
	}
	return event, nil
}

// serializableDetails returns details unchanged when they marshal, else their string form.
func serializableDetails(details interface{}) interface{} {
	if details == nil {
		return nil
	}
	if err, ok := details.(error); ok {
		return err.Error()
	}
	if _, err := json.Marshal(details); err != nil {
		return fmt.Sprintf("%v", details)
	}
	return details
}

func logEvent(event models.RuntimeEvent) {
	var e *zerolog.Event
	switch event.Status {
	case models.RuntimeError:
		e = log.Error()
	case models.RuntimeWarning:
		e = log.Warn()
	default:
		e = log.Debug()
	}
	e.Str("action", event.Action).
		Str("status", string(event.Status)).
		Str("stage", event.Stage).
		Interface("details", event.Details).
		Msg("Runtime status")
}
