package cmd

import (
	"context"

	"github.com/rs/zerolog/log"

	"example.com/portaria/config"
	"example.com/portaria/internal/alerts"
	"example.com/portaria/internal/analysis"
	"example.com/portaria/internal/classifier"
	"example.com/portaria/internal/filelock"
	"example.com/portaria/internal/ingest"
	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
	"example.com/portaria/internal/projections"
	"example.com/portaria/internal/runtimestatus"
	"example.com/portaria/internal/watcher"
)

// application holds the components shared by the commands.
type application struct {
	cfg       config.Config
	store     *jsonstore.Store
	locker    *filelock.Locker
	reporter  *runtimestatus.Reporter
	ingest    *ingest.Service
	analysis  *analysis.Builder
	alerts    *alerts.Builder
	rebuilder *projections.Rebuilder
}

func newApplication(cfg config.Config) *application {
	locker := filelock.NewLocker(cfg.Lock.Timeout, cfg.Lock.RetryInterval)
	reporter := runtimestatus.NewReporter(
		cfg.LogPath(cfg.Files.RuntimeEvents),
		cfg.LogPath(cfg.Files.RuntimeLastStatus),
		locker,
	)
	store := jsonstore.New(jsonstore.Options{
		LoadRetries:  cfg.Store.LoadRetries,
		RetryBackoff: cfg.Store.RetryBackoff,
		Reporter:     reporter,
	})

	scorer := alerts.Scorer(alerts.WeightedRatio)
	if cfg.Alerts.ModelMatcher == config.MatcherPrefix {
		scorer = nil
	}

	a := &application{
		cfg:      cfg,
		store:    store,
		locker:   locker,
		reporter: reporter,
		analysis: analysis.NewBuilder(store, locker, analysis.Paths{
			AccessEnd:  cfg.Path(cfg.Files.AccessEnd),
			ParcelsEnd: cfg.Path(cfg.Files.ParcelsEnd),
			Analyses:   cfg.Path(cfg.Files.Analyses),
		}, cfg.Analysis.MinGroupSize),
		alerts: alerts.NewBuilder(alerts.Options{
			Path:      cfg.Path(cfg.Files.Alerts),
			Store:     store,
			Locker:    locker,
			Threshold: cfg.Alerts.ModelSimilarityThreshold,
			Scorer:    scorer,
		}),
	}
	a.rebuilder = projections.NewRebuilder(a.analysis, a.alerts, reporter)

	var onCommit ingest.CommitHook
	if cfg.Ingest.SyncRebuild {
		onCommit = a.rebuildAfterCommit
	}
	a.ingest = ingest.NewService(ingest.Options{
		Paths:      a.ingestPaths(),
		Store:      store,
		Locker:     locker,
		Classifier: classifier.New(classifier.DefaultRules()),
		Reporter:   reporter,
		OnCommit:   onCommit,
	})
	return a
}

func (a *application) ingestPaths() ingest.Paths {
	return ingest.Paths{
		AccessInit:   a.cfg.Path(a.cfg.Files.AccessInit),
		AccessEnd:    a.cfg.Path(a.cfg.Files.AccessEnd),
		ParcelsInit:  a.cfg.Path(a.cfg.Files.ParcelsInit),
		ParcelsEnd:   a.cfg.Path(a.cfg.Files.ParcelsEnd),
		Orientations: a.cfg.Path(a.cfg.Files.Orientations),
		Observations: a.cfg.Path(a.cfg.Files.Observations),
		Review:       a.cfg.Path(a.cfg.Files.Review),
	}
}

func (a *application) newWatcher() *watcher.Watcher {
	return watcher.New(watcher.Options{
		AccessPath:   a.cfg.Path(a.cfg.Files.AccessEnd),
		ParcelsPath:  a.cfg.Path(a.cfg.Files.ParcelsEnd),
		PollInterval: a.cfg.Watcher.PollInterval,
		Debounce:     a.cfg.Watcher.Debounce,
		FSNotify:     a.cfg.Watcher.FSNotify,
		Store:        a.store,
		Handler:      a.rebuilder,
		Reporter:     a.reporter,
	})
}

// rebuildAfterCommit runs the targeted rebuild for a committed record.
func (a *application) rebuildAfterCommit(ctx context.Context, res ingest.Result) {
	var err error
	switch {
	case res.Destination == models.DestinationParcel:
		err = a.rebuilder.RebuildParcels(ctx)
	case res.Identity() != "" && res.Identity() != "|||":
		err = a.rebuilder.RebuildForIdentity(ctx, res.Identity())
	default:
		err = a.rebuilder.RebuildAll(ctx)
	}
	if err != nil {
		log.Error().Err(err).Int("entry_id", res.Entry.ID).Msg("Synchronous rebuild failed")
	}
}
