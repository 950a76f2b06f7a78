package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
)

// ErrSpooled means the init-store was busy. The raw line was kept in the
// store's spool and reaches the init-store on the next Reprocess.
var ErrSpooled = errors.New("ingest: init-store busy, line spooled")

var initDestinations = []models.Destination{
	models.DestinationAccess,
	models.DestinationParcel,
	models.DestinationOrientation,
	models.DestinationObservation,
	models.DestinationReview,
}

// SpoolPath returns the spool of an init-store: JSON lines of ingress rows
// still waiting for an id.
func SpoolPath(initPath string) string {
	return initPath + ".spool"
}

// spool appends entry to the spool of initPath. The spool has its own lock,
// held only for the append, so it stays available while the init-store is busy.
func (s *Service) spool(ctx context.Context, initPath string, entry models.IngressEvent) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to encode spooled entry")
	}
	path := SpoolPath(initPath)

	return s.locker.With(ctx, path, func() error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", path)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			return errors.Wrapf(err, "failed to write %s", path)
		}
		return errors.Wrapf(f.Close(), "failed to close %s", path)
	})
}

// drainSpool moves the spooled rows of initPath into the init-store, giving
// each the next free id. It returns how many rows were moved.
func (s *Service) drainSpool(ctx context.Context, initPath string) (int, error) {
	path := SpoolPath(initPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, nil
	}

	drained := 0
	err := s.locker.With(ctx, initPath, func() error {
		return s.locker.With(ctx, path, func() error {
			data, err := os.ReadFile(path)
			if os.IsNotExist(err) {
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "failed to read %s", path)
			}

			rows, err := jsonstore.Records[models.IngressEvent](s.store, initPath)
			if err != nil {
				return err
			}
			next := jsonstore.NextID(rows)
			var unreadable [][]byte
			for _, line := range bytes.Split(data, []byte("\n")) {
				line = bytes.TrimSpace(line)
				if len(line) == 0 {
					continue
				}
				var entry models.IngressEvent
				if err := json.Unmarshal(line, &entry); err != nil {
					log.Error().Err(err).Str("path", path).Str("line", string(line)).Msg("Keeping unreadable spool line")
					unreadable = append(unreadable, line)
					continue
				}
				entry.ID = next
				next++
				rows = append(rows, entry)
				drained++
			}

			if drained > 0 {
				if err := jsonstore.SaveRecords(s.store, initPath, rows); err != nil {
					return err
				}
			}
			if len(unreadable) > 0 {
				rest := append(bytes.Join(unreadable, []byte("\n")), '\n')
				return errors.Wrapf(os.WriteFile(path, rest, 0o644), "failed to rewrite %s", path)
			}
			return errors.Wrapf(os.Remove(path), "failed to remove %s", path)
		})
	})
	if err != nil {
		return 0, err
	}

	if drained > 0 {
		log.Info().Str("path", initPath).Int("rows", drained).Msg("Spooled lines moved to init-store")
	}
	return drained, nil
}
