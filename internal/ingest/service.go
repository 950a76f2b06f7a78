package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/classifier"
	"example.com/portaria/internal/filelock"
	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
	"example.com/portaria/internal/runtimestatus"
	"example.com/portaria/internal/textparse"
)

// ErrLockNotAcquired means the end-store was busy; the line stays pending in its init-store.
var ErrLockNotAcquired = errors.New("ingest: end-store lock not acquired")

const action = "ingest"

// CommitHook runs after a record reached its end-store.
type CommitHook func(ctx context.Context, res Result)

// Options wires a Service.
type Options struct {
	Paths      Paths
	Store      *jsonstore.Store
	Locker     *filelock.Locker
	Classifier *classifier.Classifier
	Reporter   runtimestatus.Sink
	Extractor  Extractor
	OnCommit   CommitHook
	Now        func() time.Time
}

// Result describes one ingested line.
type Result struct {
	Entry       models.IngressEvent
	Destination models.Destination
	Access      *models.AccessEvent
	Parcel      *models.ParcelEvent
	Added       bool
}

// Identity returns the identity of the access record, or "".
func (r Result) Identity() string {
	if r.Access == nil {
		return ""
	}
	return r.Access.Identity()
}

// ReprocessSummary counts the outcome of a pending-row replay.
type ReprocessSummary struct {
	Recovered int
	Pending   int
	Processed int
	Failed    int
}

// Service turns operator lines into stored records.
type Service struct {
	paths      Paths
	store      *jsonstore.Store
	locker     *filelock.Locker
	classifier *classifier.Classifier
	reporter   runtimestatus.Sink
	extractor  Extractor
	onCommit   CommitHook
	now        func() time.Time
}

// NewService creates an ingestion service
func NewService(opts Options) *Service {
	s := &Service{
		paths:      opts.Paths,
		store:      opts.Store,
		locker:     opts.Locker,
		classifier: opts.Classifier,
		reporter:   opts.Reporter,
		extractor:  opts.Extractor,
		onCommit:   opts.OnCommit,
		now:        opts.Now,
	}
	if s.store == nil {
		s.store = jsonstore.New(jsonstore.Options{Reporter: opts.Reporter})
	}
	if s.locker == nil {
		s.locker = filelock.NewLocker(0, 0)
	}
	if s.classifier == nil {
		s.classifier = classifier.New(nil)
	}
	if s.reporter == nil {
		s.reporter = runtimestatus.Discard
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SaveText ingests one operator line with no window hint.
func (s *Service) SaveText(ctx context.Context, text string) (*Result, error) {
	return s.SaveTextAs(ctx, text, "")
}

// SaveTextAs ingests one operator line typed in the window of base. The raw
// line is always written to an init-store first; structured destinations are
// then committed to their end-store and the init row is marked processed.
func (s *Service) SaveTextAs(ctx context.Context, text string, base models.Destination) (*Result, error) {
	correlationID := uuid.New().String()
	s.reporter.Report(action, models.RuntimeStarted, "save_text", map[string]interface{}{
		"correlation_id": correlationID,
	})

	parsed := textparse.Extract(text)
	decision := s.classifier.Classify(text, &parsed, base)

	entry := models.IngressEvent{
		Texto:         text,
		Processado:    decision.Destino == models.DestinationOrientation || decision.Destino == models.DestinationObservation,
		DataHora:      models.FormatDataHora(s.now()),
		Destino:       decision.Destino,
		Classificacao: &decision,
		CorrelationID: correlationID,
	}

	initPath := s.paths.Init(decision.Destino)
	err := s.locker.With(ctx, initPath, func() error {
		var err error
		entry, err = jsonstore.Append(s.store, initPath, entry)
		return err
	})
	if errors.Is(err, filelock.ErrNotAcquired) {
		return nil, s.spoolBusy(ctx, initPath, entry, err)
	}
	if err != nil {
		return nil, s.fail(err, "init_append", entry)
	}

	log.Info().
		Int("entry_id", entry.ID).
		Str("destino", string(entry.Destino)).
		Str("motivo", decision.Motivo).
		Str("correlation_id", correlationID).
		Msg("Line saved to init-store")

	if !decision.Destino.Structured() {
		s.reporter.Report(action, models.RuntimeOK, "init_only", map[string]interface{}{
			"entry_id":       entry.ID,
			"destino":        entry.Destino,
			"correlation_id": correlationID,
		})
		return &Result{Entry: entry, Destination: entry.Destino}, nil
	}

	return s.process(ctx, decision.Destino, entry)
}

// Reprocess first moves spooled lines into their init-stores, then replays
// every access and parcel init row still marked processado=false. Replays
// are idempotent: the end-store keeps one record per entry id.
func (s *Service) Reprocess(ctx context.Context) (ReprocessSummary, error) {
	var summary ReprocessSummary
	for _, dest := range initDestinations {
		n, err := s.drainSpool(ctx, s.paths.Init(dest))
		summary.Recovered += n
		if err != nil {
			if errors.Is(err, filelock.ErrNotAcquired) {
				return summary, errors.Wrap(ErrLockNotAcquired, err.Error())
			}
			return summary, errors.Wrapf(err, "failed to drain %s spool", dest)
		}
	}

	for _, dest := range []models.Destination{models.DestinationAccess, models.DestinationParcel} {
		rows, err := jsonstore.Records[models.IngressEvent](s.store, s.paths.Init(dest))
		if err != nil {
			return summary, errors.Wrapf(err, "failed to read %s init-store", dest)
		}
		for _, row := range rows {
			if row.Processado {
				continue
			}
			summary.Pending++
			if _, err := s.process(ctx, dest, row); err != nil {
				summary.Failed++
				if errors.Is(err, ErrLockNotAcquired) {
					// The store is busy; the remaining rows would time out too.
					return summary, err
				}
				continue
			}
			summary.Processed++
		}
	}

	if summary.Pending > 0 || summary.Recovered > 0 {
		s.reporter.Report(action, models.RuntimeOK, "reprocess", summary)
	}
	return summary, nil
}

// ReprocessEntry replays one init row regardless of its processado flag.
func (s *Service) ReprocessEntry(ctx context.Context, dest models.Destination, id int) (*Result, error) {
	if !dest.Structured() {
		return nil, errors.Errorf("destination %q has no end-store", dest)
	}
	rows, err := jsonstore.Records[models.IngressEvent](s.store, s.paths.Init(dest))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s init-store", dest)
	}
	for _, row := range rows {
		if row.ID == id {
			return s.process(ctx, dest, row)
		}
	}
	return nil, errors.Errorf("entry %d not found in %s init-store", id, dest)
}

// Pending lists the access and parcel init rows not yet committed.
func (s *Service) Pending() (map[models.Destination][]models.IngressEvent, error) {
	out := map[models.Destination][]models.IngressEvent{}
	for _, dest := range []models.Destination{models.DestinationAccess, models.DestinationParcel} {
		rows, err := jsonstore.Records[models.IngressEvent](s.store, s.paths.Init(dest))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s init-store", dest)
		}
		for _, row := range rows {
			if !row.Processado {
				out[dest] = append(out[dest], row)
			}
		}
	}
	return out, nil
}

// process commits entry to the end-store of dest and flips its processado flag.
func (s *Service) process(ctx context.Context, dest models.Destination, entry models.IngressEvent) (*Result, error) {
	res := Result{Entry: entry, Destination: dest}
	endPath := s.paths.End(dest)

	err := s.locker.With(ctx, endPath, func() error {
		switch dest {
		case models.DestinationAccess:
			rec, err := s.buildAccess(ctx, entry)
			if err != nil {
				return err
			}
			rec, res.Added, err = jsonstore.UpsertByEntryID(s.store, endPath, rec)
			res.Access = &rec
			return err
		default:
			rec, err := s.buildParcel(ctx, entry)
			if err != nil {
				return err
			}
			rec, res.Added, err = jsonstore.UpsertByEntryID(s.store, endPath, rec)
			res.Parcel = &rec
			return err
		}
	})
	if err != nil {
		return nil, s.fail(err, "end_commit", entry)
	}

	initPath := s.paths.Init(dest)
	err = s.locker.With(ctx, initPath, func() error {
		_, err := jsonstore.Update(s.store, initPath, entry.ID, func(e *models.IngressEvent) {
			e.Processado = true
		})
		return err
	})
	if err != nil {
		// The record is committed; a later replay only rewrites it in place.
		log.Warn().Err(err).Int("entry_id", entry.ID).Msg("Failed to mark init row as processed")
	} else {
		res.Entry.Processado = true
	}

	s.reporter.Report(action, models.RuntimeOK, "commit", map[string]interface{}{
		"entry_id":       entry.ID,
		"destino":        dest,
		"added":          res.Added,
		"identity":       res.Identity(),
		"correlation_id": entry.CorrelationID,
	})
	log.Info().
		Int("entry_id", entry.ID).
		Str("destino", string(dest)).
		Bool("added", res.Added).
		Str("identity", res.Identity()).
		Msg("Record committed")

	if s.onCommit != nil {
		s.onCommit(ctx, res)
	}
	return &res, nil
}

func (s *Service) buildAccess(ctx context.Context, entry models.IngressEvent) (models.AccessEvent, error) {
	rec := textparse.Extract(entry.Texto).AccessEvent(entry.ID, entry.DataHora)
	if s.extractor != nil {
		ext, err := s.extractor.ExtractAccess(ctx, entry.Texto)
		if err != nil {
			s.llmFailed(err, entry)
		} else if merged := mergeAccess(rec, ext); models.ValidateStruct(merged) == nil {
			rec = merged
		} else {
			log.Warn().Int("entry_id", entry.ID).Msg("Extractor output failed validation, keeping parsed fields")
		}
	}
	if err := models.ValidateStruct(rec); err != nil {
		return rec, errors.Wrap(err, "invalid access record")
	}
	return rec, nil
}

func (s *Service) buildParcel(ctx context.Context, entry models.IngressEvent) (models.ParcelEvent, error) {
	rec := textparse.ExtractParcel(entry.Texto).ParcelEvent(entry.ID, entry.DataHora)
	if s.extractor != nil {
		ext, err := s.extractor.ExtractParcel(ctx, entry.Texto)
		if err != nil {
			s.llmFailed(err, entry)
		} else if merged := mergeParcel(rec, ext); models.ValidateStruct(merged) == nil {
			rec = merged
		} else {
			log.Warn().Int("entry_id", entry.ID).Msg("Extractor output failed validation, keeping parsed fields")
		}
	}
	if err := models.ValidateStruct(rec); err != nil {
		return rec, errors.Wrap(err, "invalid parcel record")
	}
	return rec, nil
}

// spoolBusy keeps the raw line when its init-store stayed locked.
func (s *Service) spoolBusy(ctx context.Context, initPath string, entry models.IngressEvent, cause error) error {
	if err := s.spool(ctx, initPath, entry); err != nil {
		return s.fail(errors.Wrap(err, cause.Error()), "init_spool", entry)
	}
	log.Warn().
		Str("path", initPath).
		Str("correlation_id", entry.CorrelationID).
		Msg("Init-store busy, line spooled")
	s.reporter.Report(action, models.RuntimeWarning, "init_spooled", map[string]interface{}{
		"destino":        entry.Destino,
		"spool":          SpoolPath(initPath),
		"correlation_id": entry.CorrelationID,
	})
	return errors.Wrap(ErrSpooled, cause.Error())
}

func (s *Service) llmFailed(err error, entry models.IngressEvent) {
	log.Error().Err(err).Int("entry_id", entry.ID).Msg("Extractor failed, using parsed fields")
	s.reporter.Report(action, models.RuntimeError, "llm_call_failed", map[string]interface{}{
		"entry_id":       entry.ID,
		"error":          err.Error(),
		"correlation_id": entry.CorrelationID,
	})
}

// fail reports err. A lock timeout on the end-store maps to ErrLockNotAcquired.
func (s *Service) fail(err error, stage string, entry models.IngressEvent) error {
	details := map[string]interface{}{
		"entry_id":       entry.ID,
		"destino":        entry.Destino,
		"correlation_id": entry.CorrelationID,
		"error":          err.Error(),
	}
	if stage == "end_commit" && errors.Is(err, filelock.ErrNotAcquired) {
		details["stage"] = stage
		s.reporter.Report(action, models.RuntimeWarning, "lock_not_acquired", details)
		return errors.Wrap(ErrLockNotAcquired, err.Error())
	}
	s.reporter.Report(action, models.RuntimeError, stage, details)
	return errors.Wrapf(err, "ingest %s failed", stage)
}
