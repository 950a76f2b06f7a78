package analysis

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/filelock"
	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
)

// Paths locates the stores the builder reads and the view it writes.
type Paths struct {
	AccessEnd  string
	ParcelsEnd string
	Analyses   string
}

// Builder derives analises.json from the end-stores.
type Builder struct {
	store        *jsonstore.Store
	locker       *filelock.Locker
	paths        Paths
	minGroupSize int
}

// NewBuilder creates a builder; minGroupSize below 2 selects DefaultMinGroupSize.
func NewBuilder(store *jsonstore.Store, locker *filelock.Locker, paths Paths, minGroupSize int) *Builder {
	if minGroupSize < DefaultMinGroupSize {
		minGroupSize = DefaultMinGroupSize
	}
	if locker == nil {
		locker = filelock.NewLocker(0, 0)
	}
	return &Builder{store: store, locker: locker, paths: paths, minGroupSize: minGroupSize}
}

// Load returns the current analises.json, empty when it does not exist.
func (b *Builder) Load() (models.AnalysisView, error) {
	var view models.AnalysisView
	if _, err := b.store.Load(b.paths.Analyses, &view); err != nil {
		return models.AnalysisView{}, err
	}
	return normalizeView(view), nil
}

// BuildAll recomputes the whole view from the end-stores and saves it.
func (b *Builder) BuildAll(ctx context.Context) (models.AnalysisView, error) {
	view, err := b.update(ctx, func(view *models.AnalysisView) error {
		accesses, parcels, err := b.readStores()
		if err != nil {
			return err
		}
		view.Registros = GroupAccesses(accesses, b.minGroupSize)
		view.Encomendas = GroupParcels(parcels)
		view.MoradoresSemTag = SemTagRecords(accesses)
		return nil
	})
	if err != nil {
		return models.AnalysisView{}, err
	}

	log.Info().
		Int("groups", len(view.Registros)).
		Int("parcel_groups", len(view.Encomendas)).
		Int("sem_tag", len(view.MoradoresSemTag)).
		Msg("Analyses rebuilt")
	return view, nil
}

// BuildForIdentity recomputes the group of one identity, dropping it when it
// no longer qualifies, and rebuilds the parcel partition in full.
func (b *Builder) BuildForIdentity(ctx context.Context, identity string) (models.AnalysisView, error) {
	if identity == "" || identity == emptyIdentity {
		return models.AnalysisView{}, errors.New("empty identity")
	}

	view, err := b.update(ctx, func(view *models.AnalysisView) error {
		accesses, parcels, err := b.readStores()
		if err != nil {
			return err
		}

		groups := make([]models.AnalysisGroup, 0, len(view.Registros)+1)
		for _, g := range view.Registros {
			if g.Identidade != identity {
				groups = append(groups, g)
			}
		}
		if g, ok := GroupIdentity(accesses, identity, b.minGroupSize); ok {
			groups = append(groups, g)
		}
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Identidade < groups[j].Identidade })

		semTag := make([]models.AccessEvent, 0, len(view.MoradoresSemTag))
		for _, r := range view.MoradoresSemTag {
			if r.Identity() != identity {
				semTag = append(semTag, r)
			}
		}
		for _, r := range accesses {
			if r.SemTag && r.Identity() == identity {
				semTag = append(semTag, r)
			}
		}
		sort.SliceStable(semTag, func(i, j int) bool { return semTag[i].ID < semTag[j].ID })

		view.Registros = groups
		view.Encomendas = GroupParcels(parcels)
		view.MoradoresSemTag = semTag
		return nil
	})
	if err != nil {
		return models.AnalysisView{}, err
	}

	log.Debug().Str("identity", identity).Int("groups", len(view.Registros)).Msg("Analyses rebuilt for identity")
	return view, nil
}

// BuildParcels rebuilds only the parcel partition.
func (b *Builder) BuildParcels(ctx context.Context) (models.AnalysisView, error) {
	return b.update(ctx, func(view *models.AnalysisView) error {
		parcels, err := jsonstore.Records[models.ParcelEvent](b.store, b.paths.ParcelsEnd)
		if err != nil {
			return errors.Wrap(err, "failed to read parcels end-store")
		}
		view.Encomendas = GroupParcels(parcels)
		return nil
	})
}

func (b *Builder) readStores() ([]models.AccessEvent, []models.ParcelEvent, error) {
	accesses, err := jsonstore.Records[models.AccessEvent](b.store, b.paths.AccessEnd)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read access end-store")
	}
	parcels, err := jsonstore.Records[models.ParcelEvent](b.store, b.paths.ParcelsEnd)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read parcels end-store")
	}
	return accesses, parcels, nil
}

// update loads analises.json, applies fn and saves the result while holding
// the analyses lock, so concurrent builds never overwrite each other with a
// view loaded before the other one saved.
func (b *Builder) update(ctx context.Context, fn func(view *models.AnalysisView) error) (models.AnalysisView, error) {
	var out models.AnalysisView
	err := b.locker.With(ctx, b.paths.Analyses, func() error {
		view, err := b.Load()
		if err != nil {
			return err
		}
		if err := fn(&view); err != nil {
			return err
		}
		view = normalizeView(view)
		if err := b.store.Save(b.paths.Analyses, view); err != nil {
			return errors.Wrap(err, "failed to save analyses")
		}
		out = view
		return nil
	})
	if err != nil {
		return models.AnalysisView{}, err
	}
	return out, nil
}

// normalizeView replaces nil slices so the file always carries empty arrays.
func normalizeView(view models.AnalysisView) models.AnalysisView {
	if view.Registros == nil {
		view.Registros = []models.AnalysisGroup{}
	}
	if view.Encomendas == nil {
		view.Encomendas = []models.ParcelAnalysisGroup{}
	}
	if view.MoradoresSemTag == nil {
		view.MoradoresSemTag = []models.AccessEvent{}
	}
	return view
}
