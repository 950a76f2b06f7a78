package projections

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/alerts"
	"example.com/portaria/internal/analysis"
	"example.com/portaria/internal/models"
	"example.com/portaria/internal/runtimestatus"
)

const action = "projections"

// Rebuilder keeps analises.json and avisos.json derived from the end-stores.
// Every pass runs the analysis layer first and hands its view to the alert layer.
type Rebuilder struct {
	analysis *analysis.Builder
	alerts   *alerts.Builder
	reporter runtimestatus.Sink
}

// NewRebuilder creates a new rebuilder
func NewRebuilder(analysisBuilder *analysis.Builder, alertBuilder *alerts.Builder, reporter runtimestatus.Sink) *Rebuilder {
	if reporter == nil {
		reporter = runtimestatus.Discard
	}
	return &Rebuilder{analysis: analysisBuilder, alerts: alertBuilder, reporter: reporter}
}

// RebuildAll recomputes both layers from scratch.
func (r *Rebuilder) RebuildAll(ctx context.Context) error {
	return r.full(ctx, "rebuild_all", true)
}

// Reconcile is RebuildAll that leaves closed alerts closed.
func (r *Rebuilder) Reconcile(ctx context.Context) error {
	return r.full(ctx, "reconcile", false)
}

func (r *Rebuilder) full(ctx context.Context, stage string, reactivate bool) error {
	r.reporter.Report(action, models.RuntimeStarted, stage, nil)

	view, err := r.analysis.BuildAll(ctx)
	if err != nil {
		r.reporter.Report(action, models.RuntimeError, "build_analises", err)
		return errors.Wrap(err, "failed to build analyses")
	}

	var res alerts.Result
	if reactivate {
		res, err = r.alerts.BuildAll(ctx, view)
	} else {
		res, err = r.alerts.Reconcile(ctx, view)
	}
	if err != nil {
		r.reporter.Report(action, models.RuntimeError, "build_avisos", err)
		return errors.Wrap(err, "failed to build alerts")
	}

	r.reporter.Report(action, models.RuntimeOK, stage, summary(view, res))
	return nil
}

// RebuildForIdentity runs the targeted pass for one identity. A failure in
// either layer falls back to the full rebuild of that layer.
func (r *Rebuilder) RebuildForIdentity(ctx context.Context, identity string) error {
	r.reporter.Report(action, models.RuntimeStarted, "rebuild_identity", map[string]interface{}{"identity": identity})

	view, err := r.analysis.BuildForIdentity(ctx, identity)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Targeted analysis failed, rebuilding all")
		r.reporter.Report(action, models.RuntimeError, "build_analises_for_identity", map[string]interface{}{
			"identity": identity,
			"error":    err.Error(),
		})
		if view, err = r.analysis.BuildAll(ctx); err != nil {
			r.reporter.Report(action, models.RuntimeError, "build_analises", err)
			return errors.Wrap(err, "failed to build analyses")
		}
	}

	res, err := r.alerts.BuildForIdentity(ctx, view, identity)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("Targeted alert build failed, rebuilding all")
		r.reporter.Report(action, models.RuntimeError, "build_avisos_for_identity", map[string]interface{}{
			"identity": identity,
			"error":    err.Error(),
		})
		if res, err = r.alerts.BuildAll(ctx, view); err != nil {
			r.reporter.Report(action, models.RuntimeError, "build_avisos", err)
			return errors.Wrap(err, "failed to build alerts")
		}
	}

	details := summary(view, res)
	details["identity"] = identity
	r.reporter.Report(action, models.RuntimeOK, "rebuild_identity", details)
	return nil
}

// RebuildParcels refreshes the parcel partition and its alerts only.
func (r *Rebuilder) RebuildParcels(ctx context.Context) error {
	view, err := r.analysis.BuildParcels(ctx)
	if err != nil {
		r.reporter.Report(action, models.RuntimeError, "build_analises_parcels", err)
		return errors.Wrap(err, "failed to build parcel analyses")
	}
	res, err := r.alerts.BuildParcels(ctx, view)
	if err != nil {
		r.reporter.Report(action, models.RuntimeError, "build_avisos_parcels", err)
		return errors.Wrap(err, "failed to build parcel alerts")
	}

	r.reporter.Report(action, models.RuntimeOK, "rebuild_parcels", summary(view, res))
	return nil
}

func summary(view models.AnalysisView, res alerts.Result) map[string]interface{} {
	return map[string]interface{}{
		"groups":        len(view.Registros),
		"parcel_groups": len(view.Encomendas),
		"created":       len(res.Created),
		"reactivated":   len(res.Reactivated),
	}
}
