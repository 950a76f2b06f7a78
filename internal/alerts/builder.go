package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/filelock"
	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
)

// ErrAlertNotFound is returned by Close for an unknown id_aviso.
var ErrAlertNotFound = errors.New("alert not found")

const idPrefix = "AVISO-"

// Options configures a Builder.
type Options struct {
	Path      string
	Store     *jsonstore.Store
	Locker    *filelock.Locker
	Threshold int
	// Scorer rates MODELO similarity. Nil selects PrefixSimilar.
	Scorer Scorer
	Now    func() time.Time
}

// Result lists what one build pass changed.
type Result struct {
	Created     []models.Alert
	Reactivated []string
}

// Builder keeps avisos.json in step with the analysis view.
type Builder struct {
	path    string
	store   *jsonstore.Store
	locker  *filelock.Locker
	matcher vehicleMatcher
	now     func() time.Time
}

// NewBuilder creates an alert builder.
func NewBuilder(opts Options) *Builder {
	b := &Builder{
		path:    opts.Path,
		store:   opts.Store,
		locker:  opts.Locker,
		matcher: vehicleMatcher{scorer: opts.Scorer, threshold: opts.Threshold},
		now:     opts.Now,
	}
	if b.store == nil {
		b.store = jsonstore.New(jsonstore.Options{})
	}
	if b.locker == nil {
		b.locker = filelock.NewLocker(0, 0)
	}
	if b.matcher.threshold <= 0 {
		b.matcher.threshold = ModelSimilarityThreshold
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

type scope struct {
	identity   string
	access     bool
	parcels    bool
	reactivate bool
}

// BuildAll emits the alerts of every group in view.
func (b *Builder) BuildAll(ctx context.Context, view models.AnalysisView) (Result, error) {
	return b.build(ctx, view, scope{access: true, parcels: true, reactivate: true})
}

// Reconcile is BuildAll without reactivating alerts the operator closed.
// Periodic full passes use it so a closed alert stays closed until its
// identity sees new activity.
func (b *Builder) Reconcile(ctx context.Context, view models.AnalysisView) (Result, error) {
	return b.build(ctx, view, scope{access: true, parcels: true})
}

// BuildForIdentity emits the access and tag alerts of one identity plus the
// parcel alerts.
func (b *Builder) BuildForIdentity(ctx context.Context, view models.AnalysisView, identity string) (Result, error) {
	if identity == "" {
		return Result{}, errors.New("empty identity")
	}
	return b.build(ctx, view, scope{identity: identity, access: true, parcels: true, reactivate: true})
}

// BuildParcels emits only the parcel alerts.
func (b *Builder) BuildParcels(ctx context.Context, view models.AnalysisView) (Result, error) {
	return b.build(ctx, view, scope{parcels: true, reactivate: true})
}

// Load returns the current avisos.json, empty when it does not exist.
func (b *Builder) Load() (models.AlertsDocument, error) {
	var doc models.AlertsDocument
	if _, err := b.store.Load(b.path, &doc); err != nil {
		return models.AlertsDocument{}, err
	}
	if doc.Registros == nil {
		doc.Registros = []models.Alert{}
	}
	return doc, nil
}

// List returns the stored alerts, optionally only the active ones.
func (b *Builder) List(activeOnly bool) ([]models.Alert, error) {
	doc, err := b.Load()
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return doc.Registros, nil
	}
	out := []models.Alert{}
	for _, a := range doc.Registros {
		if a.Ativo {
			out = append(out, a)
		}
	}
	return out, nil
}

// Close marks an alert as closed by the operator.
func (b *Builder) Close(ctx context.Context, id string) (models.Alert, error) {
	var closed models.Alert
	err := b.locker.With(ctx, b.path, func() error {
		doc, err := b.Load()
		if err != nil {
			return err
		}
		for i := range doc.Registros {
			a := &doc.Registros[i]
			if a.IDAviso != id {
				continue
			}
			if a.Ativo {
				now := models.FormatDataHora(b.now())
				a.Ativo = false
				a.Status = models.AlertClosedByUser
				a.FechadoEm = &now
				a.AtualizadoEm = now
			}
			closed = *a
			doc.UltimoAvisoAtivo = lastActive(doc.Registros)
			return b.save(doc)
		}
		return errors.Wrap(ErrAlertNotFound, id)
	})
	if err != nil {
		return models.Alert{}, err
	}

	log.Info().Str("id_aviso", id).Msg("Alert closed")
	return closed, nil
}

func (b *Builder) build(ctx context.Context, view models.AnalysisView, sc scope) (Result, error) {
	var res Result
	err := b.locker.With(ctx, b.path, func() error {
		doc, err := b.Load()
		if err != nil {
			return err
		}
		res = b.apply(&doc, view, sc)
		return b.save(doc)
	})
	if err != nil {
		return Result{}, err
	}

	if len(res.Created) > 0 || len(res.Reactivated) > 0 {
		log.Info().
			Int("created", len(res.Created)).
			Int("reactivated", len(res.Reactivated)).
			Str("identity", sc.identity).
			Msg("Alerts updated")
	}
	return res, nil
}

func (b *Builder) save(doc models.AlertsDocument) error {
	if doc.Registros == nil {
		doc.Registros = []models.Alert{}
	}
	return errors.Wrap(b.store.Save(b.path, doc), "failed to save alerts")
}

// apply adds the alerts view calls for to doc. Alerts already present are
// left untouched, except that closed ones are reactivated when sc allows.
func (b *Builder) apply(doc *models.AlertsDocument, view models.AnalysisView, sc scope) Result {
	var res Result
	index := map[string]int{}
	for i, a := range doc.Registros {
		index[dedupKey(a)] = i
	}
	seq := highestSeq(doc.Registros)
	now := models.FormatDataHora(b.now())

	emit := func(a models.Alert) {
		key := dedupKey(a)
		if i, ok := index[key]; ok {
			existing := &doc.Registros[i]
			if sc.reactivate && !existing.Ativo {
				existing.Ativo = true
				existing.Status = models.AlertActive
				existing.FechadoEm = nil
				existing.AtualizadoEm = now
				res.Reactivated = append(res.Reactivated, existing.IDAviso)
			}
			return
		}
		seq++
		a.IDAviso = fmt.Sprintf("%s%06d", idPrefix, seq)
		a.CriadoEm = now
		a.AtualizadoEm = now
		a.Ativo = true
		a.Status = models.AlertActive
		doc.Registros = append(doc.Registros, a)
		index[key] = len(doc.Registros) - 1
		res.Created = append(res.Created, a)
	}

	if sc.access {
		for _, g := range view.Registros {
			if sc.identity != "" && g.Identidade != sc.identity {
				continue
			}
			for i := 1; i < len(g.Registros); i++ {
				emit(b.accessAlert(g, i))
			}
		}
		for _, r := range view.MoradoresSemTag {
			if sc.identity != "" && r.Identity() != sc.identity {
				continue
			}
			emit(semTagAlert(r))
		}
	}
	if sc.parcels {
		for _, g := range view.Encomendas {
			if g.Quantidade >= 2 {
				emit(parcelAlert(g))
			}
		}
	}

	doc.UltimoAvisoAtivo = lastActive(doc.Registros)
	return res
}

// accessAlert compares the first access of g with its i-th one.
func (b *Builder) accessAlert(g models.AnalysisGroup, i int) models.Alert {
	first, last := g.Registros[0], g.Registros[i]
	fields, vehicleDiv := b.divergences(first, last)

	kind := models.AlertPadrao1
	switch {
	case vehicleDiv:
		kind = models.AlertPadrao3
	case len(fields) > 0:
		kind = models.AlertPadrao2
	}

	refs := models.AlertReferences{PrimeiroRegistroID: first.ID, UltimoRegistroID: last.ID}
	for _, r := range g.Registros[:i+1] {
		refs.RegistroIDs = append(refs.RegistroIDs, r.ID)
		if r.EntryID > 0 {
			refs.EntradaIDs = append(refs.EntradaIDs, r.EntryID)
		}
	}

	level, ui := uiFor(kind)
	return models.Alert{
		Identidade:        g.Identidade,
		Tipo:              kind,
		Nivel:             level,
		Mensagem:          accessMessage(kind, last, i+1),
		UI:                ui,
		Referencias:       refs,
		PrimeiroRegistro:  snapshot(first),
		UltimoRegistro:    snapshot(last),
		QuantidadeAcessos: i + 1,
		CamposDivergentes: fields,
	}
}

// divergences lists the fields that differ between two accesses of the same
// identity and reports whether the vehicle diverges.
func (b *Builder) divergences(first, last models.AccessEvent) ([]string, bool) {
	var fields []string
	pairs := []struct {
		name string
		a, b string
	}{
		{"NOME", first.Nome, last.Nome},
		{"SOBRENOME", first.Sobrenome, last.Sobrenome},
		{"BLOCO", first.Bloco, last.Bloco},
		{"APARTAMENTO", first.Apartamento, last.Apartamento},
		{"STATUS", first.Status, last.Status},
	}
	for _, p := range pairs {
		if models.NormalizeKey(p.a) != models.NormalizeKey(p.b) {
			fields = append(fields, p.name)
		}
	}

	vehicleDiv := !b.matcher.sameVehicle(first, last) && (first.HasVehicle() || last.HasVehicle())
	if vehicleDiv {
		vehicle := []struct {
			name string
			a, b string
		}{
			{"PLACA", models.NormalizePlate(first.Placa), models.NormalizePlate(last.Placa)},
			{"MODELO", first.Modelo, last.Modelo},
			{"COR", first.Cor, last.Cor},
		}
		for _, p := range vehicle {
			if models.NormalizeKey(p.a) != models.NormalizeKey(p.b) {
				fields = append(fields, p.name)
			}
		}
	}
	return fields, vehicleDiv
}

func semTagAlert(r models.AccessEvent) models.Alert {
	level, ui := uiFor(models.AlertMoradorSemTag)
	refs := models.AlertReferences{
		PrimeiroRegistroID: r.ID,
		UltimoRegistroID:   r.ID,
		RegistroIDs:        []int{r.ID},
	}
	if r.EntryID > 0 {
		refs.EntradaIDs = []int{r.EntryID}
	}
	return models.Alert{
		Identidade:       r.Identity(),
		Tipo:             models.AlertMoradorSemTag,
		Nivel:            level,
		Mensagem:         semTagMessage(r),
		UI:               ui,
		Referencias:      refs,
		PrimeiroRegistro: snapshot(r),
		UltimoRegistro:   snapshot(r),
	}
}

func parcelAlert(g models.ParcelAnalysisGroup) models.Alert {
	level, ui := uiFor(models.AlertEncomendasMultiplas)
	refs := models.AlertReferences{
		UltimoRegistroID: g.LastID(),
		Bloco:            g.Bloco,
		Apartamento:      g.Apartamento,
		OrigemStatus:     g.OrigemStatus,
		Quantidade:       g.Quantidade,
	}
	var first, last models.ParcelEvent
	for i, r := range g.Registros {
		if i == 0 {
			first = r
		}
		if r.ID == refs.UltimoRegistroID {
			last = r
		}
		refs.RegistroIDs = append(refs.RegistroIDs, r.ID)
		if r.EntryID > 0 {
			refs.EntradaIDs = append(refs.EntradaIDs, r.EntryID)
		}
	}
	refs.PrimeiroRegistroID = first.ID

	return models.Alert{
		Identidade:       g.Identidade,
		Tipo:             models.AlertEncomendasMultiplas,
		Nivel:            level,
		Mensagem:         parcelMessage(g),
		UI:               ui,
		Referencias:      refs,
		PrimeiroRegistro: snapshot(first),
		UltimoRegistro:   snapshot(last),
	}
}

// dedupKey identifies the event an alert was raised for.
func dedupKey(a models.Alert) string {
	ref := a.Referencias
	if a.Tipo == models.AlertEncomendasMultiplas {
		return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d",
			a.Identidade, a.Tipo, ref.Bloco, ref.Apartamento, ref.OrigemStatus, ref.Quantidade, ref.UltimoRegistroID)
	}
	return fmt.Sprintf("%s|%s|%d", a.Identidade, a.Tipo, ref.UltimoRegistroID)
}

// highestSeq returns the largest numeric suffix among id_aviso values.
func highestSeq(alerts []models.Alert) int {
	highest := 0
	for _, a := range alerts {
		n, err := strconv.Atoi(strings.TrimPrefix(a.IDAviso, idPrefix))
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// lastActive returns the active alert with the highest id, or nil.
func lastActive(alerts []models.Alert) *string {
	var (
		best string
		seq  = -1
	)
	for _, a := range alerts {
		if !a.Ativo {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(a.IDAviso, idPrefix))
		if err != nil {
			n = 0
		}
		if n > seq {
			seq, best = n, a.IDAviso
		}
	}
	if seq < 0 {
		return nil
	}
	return &best
}

func snapshot(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
