package alerts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/portaria/internal/filelock"
	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
)

var testNow = time.Date(2026, 1, 10, 13, 0, 0, 0, time.Local)

func newTestBuilder(t *testing.T) *Builder {
	return NewBuilder(Options{
		Path:   filepath.Join(t.TempDir(), "avisos.json"),
		Store:  jsonstore.New(jsonstore.Options{RetryBackoff: time.Millisecond, Now: func() time.Time { return testNow }}),
		Locker: filelock.NewLocker(time.Second, 5*time.Millisecond),
		Scorer: WeightedRatio,
		Now:    func() time.Time { return testNow },
	})
}

func anaAccess(id int, dataHora string) models.AccessEvent {
	return models.AccessEvent{
		ID:          id,
		EntryID:     id,
		Nome:        "ANA",
		Sobrenome:   "SILVA",
		Bloco:       "A",
		Apartamento: "10",
		Modelo:      "GOL",
		Cor:         "PRATA",
		Status:      models.StatusMorador,
		DataHora:    dataHora,
	}
}

func groupOf(rows ...models.AccessEvent) models.AnalysisGroup {
	return models.AnalysisGroup{
		Identidade:  rows[0].Identity(),
		Nome:        rows[0].Nome,
		Sobrenome:   rows[0].Sobrenome,
		Bloco:       rows[0].Bloco,
		Apartamento: rows[0].Apartamento,
		Quantidade:  len(rows),
		Registros:   rows,
	}
}

func viewOf(groups ...models.AnalysisGroup) models.AnalysisView {
	return models.AnalysisView{Registros: groups}
}

func assertUniqueAlerts(t *testing.T, alerts []models.Alert) {
	t.Helper()
	keys := map[string]bool{}
	ids := map[string]bool{}
	for _, a := range alerts {
		k := dedupKey(a)
		assert.False(t, keys[k], "duplicate alert %s", k)
		keys[k] = true
		assert.False(t, ids[a.IDAviso], "duplicate id %s", a.IDAviso)
		ids[a.IDAviso] = true
	}
}

func TestIdenticalAccessesRaisePadrao1(t *testing.T) {
	b := newTestBuilder(t)
	view := viewOf(groupOf(
		anaAccess(1, "10/01/2026 10:00:00"),
		anaAccess(2, "10/01/2026 12:00:00"),
	))

	res, err := b.BuildAll(context.Background(), view)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	a := res.Created[0]
	assert.Equal(t, "AVISO-000001", a.IDAviso)
	assert.Equal(t, models.AlertPadrao1, a.Tipo)
	assert.Equal(t, models.LevelInfo, a.Nivel)
	assert.Equal(t, "#FFFF00", a.UI.BackgroundColor)
	assert.Equal(t, 0.7, a.UI.Opacity)
	assert.Equal(t, 2, a.QuantidadeAcessos)
	assert.Empty(t, a.CamposDivergentes)
	assert.Equal(t, 1, a.Referencias.PrimeiroRegistroID)
	assert.Equal(t, 2, a.Referencias.UltimoRegistroID)
	assert.Equal(t, "MORADOR ANA SILVA, DO BLOCO A APARTAMENTO 10, ACESSOU O CONDOMINIO PELA SEGUNDA VEZ, NA DATA 10/01/2026, HORARIO AS 12:00:00!", a.Mensagem)
	assert.Nil(t, a.FechadoEm)
	assert.True(t, a.Ativo)
	assert.Equal(t, "10/01/2026 13:00:00", a.CriadoEm)

	doc, err := b.Load()
	require.NoError(t, err)
	require.NotNil(t, doc.UltimoAvisoAtivo)
	assert.Equal(t, "AVISO-000001", *doc.UltimoAvisoAtivo)
}

func TestPlateDivergenceRaisesPadrao3(t *testing.T) {
	b := newTestBuilder(t)
	first := anaAccess(1, "10/01/2026 10:00:00")
	first.Placa = "ABC1234"
	last := anaAccess(2, "10/01/2026 12:00:00")
	last.Placa = "XYZ9999"

	res, err := b.BuildAll(context.Background(), viewOf(groupOf(first, last)))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	a := res.Created[0]
	assert.Equal(t, models.AlertPadrao3, a.Tipo)
	assert.Equal(t, models.LevelCritical, a.Nivel)
	assert.Equal(t, "#FF0000", a.UI.BackgroundColor)
	assert.Equal(t, []string{"PLACA"}, a.CamposDivergentes)
	assert.Contains(t, a.Mensagem, ", COM VEICULO DIVERGENTE!")
}

func TestStatusDivergenceRaisesPadrao2(t *testing.T) {
	b := newTestBuilder(t)
	last := anaAccess(2, "10/01/2026 12:00:00")
	last.Status = models.StatusVisitante

	res, err := b.BuildAll(context.Background(), viewOf(groupOf(anaAccess(1, "10/01/2026 10:00:00"), last)))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, models.AlertPadrao2, res.Created[0].Tipo)
	assert.Equal(t, models.LevelWarn, res.Created[0].Nivel)
	assert.Equal(t, []string{"STATUS"}, res.Created[0].CamposDivergentes)
	assert.Equal(t, "VISITANTE ANA SILVA, DO BLOCO A APARTAMENTO 10, ACESSOU O CONDOMINIO PELA SEGUNDA VEZ, NA DATA 10/01/2026, HORARIO AS 12:00:00, COM DADOS DIVERGENTES!", res.Created[0].Mensagem)
}

func TestSimilarModelsAreSameVehicle(t *testing.T) {
	b := newTestBuilder(t)
	first := anaAccess(1, "10/01/2026 10:00:00")
	first.Modelo, first.Cor = "JETTA", "PRETO"
	last := anaAccess(2, "10/01/2026 12:00:00")
	last.Modelo, last.Cor = "jeta", "preta"

	res, err := b.BuildAll(context.Background(), viewOf(groupOf(first, last)))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, models.AlertPadrao1, res.Created[0].Tipo)
}

func TestScorersProduceSameAlertKind(t *testing.T) {
	tests := []struct {
		first, last string
		kind        models.AlertKind
	}{
		{"COROLLA", "TOYOTA COROLLA", models.AlertPadrao1},
		{"ONIX", "ONYX", models.AlertPadrao3},
		{"JETTA", "JETA", models.AlertPadrao1},
	}

	for _, tt := range tests {
		for _, scorer := range []Scorer{WeightedRatio, nil} {
			b := newTestBuilder(t)
			b.matcher.scorer = scorer

			first := anaAccess(1, "10/01/2026 10:00:00")
			first.Modelo = tt.first
			last := anaAccess(2, "10/01/2026 12:00:00")
			last.Modelo = tt.last

			res, err := b.BuildAll(context.Background(), viewOf(groupOf(first, last)))
			require.NoError(t, err)
			require.Len(t, res.Created, 1)
			assert.Equal(t, tt.kind, res.Created[0].Tipo, "%s vs %s (weighted=%v)", tt.first, tt.last, scorer != nil)
		}
	}
}

func TestAlertsFollowAccessOrder(t *testing.T) {
	b := newTestBuilder(t)
	view := viewOf(groupOf(
		anaAccess(1, "10/01/2026 10:00:00"),
		anaAccess(2, "10/01/2026 11:00:00"),
		anaAccess(3, "10/01/2026 12:00:00"),
	))

	res, err := b.BuildAll(context.Background(), view)
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, "AVISO-000001", res.Created[0].IDAviso)
	assert.Equal(t, 2, res.Created[0].QuantidadeAcessos)
	assert.Equal(t, "AVISO-000002", res.Created[1].IDAviso)
	assert.Equal(t, 3, res.Created[1].QuantidadeAcessos)
	assert.Contains(t, res.Created[1].Mensagem, "PELA TERCEIRA VEZ")
	assert.Equal(t, []int{1, 2, 3}, res.Created[1].Referencias.RegistroIDs)
}

func TestBuildAllIsIdempotent(t *testing.T) {
	b := newTestBuilder(t)
	ctx := context.Background()
	view := viewOf(groupOf(
		anaAccess(1, "10/01/2026 10:00:00"),
		anaAccess(2, "10/01/2026 11:00:00"),
		anaAccess(3, "10/01/2026 12:00:00"),
	))

	_, err := b.BuildAll(ctx, view)
	require.NoError(t, err)
	before, err := b.Load()
	require.NoError(t, err)

	res, err := b.BuildAll(ctx, view)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Reactivated)

	after, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assertUniqueAlerts(t, after.Registros)
}

func TestNewAccessAppendsNextID(t *testing.T) {
	b := newTestBuilder(t)
	ctx := context.Background()
	rows := []models.AccessEvent{anaAccess(1, "10/01/2026 10:00:00"), anaAccess(2, "10/01/2026 11:00:00")}

	_, err := b.BuildAll(ctx, viewOf(groupOf(rows...)))
	require.NoError(t, err)

	rows = append(rows, anaAccess(3, "10/01/2026 12:00:00"))
	res, err := b.BuildForIdentity(ctx, viewOf(groupOf(rows...)), "ANA|SILVA|A|10")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "AVISO-000002", res.Created[0].IDAviso)
	assert.Equal(t, 3, res.Created[0].Referencias.UltimoRegistroID)
}

func TestBuildForIdentitySkipsOtherGroups(t *testing.T) {
	b := newTestBuilder(t)
	joao := func(id int, dh string) models.AccessEvent {
		r := anaAccess(id, dh)
		r.Nome, r.Sobrenome = "JOAO", "LIMA"
		return r
	}
	view := viewOf(
		groupOf(anaAccess(1, "10/01/2026 10:00:00"), anaAccess(2, "10/01/2026 11:00:00")),
		groupOf(joao(3, "10/01/2026 10:00:00"), joao(4, "10/01/2026 11:00:00")),
	)

	res, err := b.BuildForIdentity(context.Background(), view, "JOAO|LIMA|A|10")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "JOAO|LIMA|A|10", res.Created[0].Identidade)

	_, err = b.BuildForIdentity(context.Background(), view, "")
	assert.Error(t, err)
}

func TestCloseAndReactivate(t *testing.T) {
	b := newTestBuilder(t)
	ctx := context.Background()
	view := viewOf(groupOf(anaAccess(1, "10/01/2026 10:00:00"), anaAccess(2, "10/01/2026 12:00:00")))

	_, err := b.BuildAll(ctx, view)
	require.NoError(t, err)

	closed, err := b.Close(ctx, "AVISO-000001")
	require.NoError(t, err)
	assert.False(t, closed.Ativo)
	assert.Equal(t, models.AlertClosedByUser, closed.Status)
	require.NotNil(t, closed.FechadoEm)

	doc, err := b.Load()
	require.NoError(t, err)
	assert.Nil(t, doc.UltimoAvisoAtivo)

	res, err := b.Reconcile(ctx, view)
	require.NoError(t, err)
	assert.Empty(t, res.Reactivated)
	active, err := b.List(true)
	require.NoError(t, err)
	assert.Empty(t, active)

	res, err = b.BuildAll(ctx, view)
	require.NoError(t, err)
	assert.Equal(t, []string{"AVISO-000001"}, res.Reactivated)
	assert.Empty(t, res.Created)

	all, err := b.List(false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Ativo)
	assert.Nil(t, all[0].FechadoEm)
	assert.Equal(t, models.AlertActive, all[0].Status)

	_, err = b.Close(ctx, "AVISO-999999")
	assert.True(t, errors.Is(err, ErrAlertNotFound))
}

func TestSemTagAlert(t *testing.T) {
	b := newTestBuilder(t)
	r := anaAccess(5, "10/01/2026 10:00:00")
	r.Placa = "ABC1234"
	r.SemTag = true

	res, err := b.BuildAll(context.Background(), models.AnalysisView{MoradoresSemTag: []models.AccessEvent{r}})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	a := res.Created[0]
	assert.Equal(t, models.AlertMoradorSemTag, a.Tipo)
	assert.Equal(t, models.LevelWarn, a.Nivel)
	assert.Equal(t, "#FF0000", a.UI.BackgroundColor)
	assert.Equal(t, 5, a.Referencias.UltimoRegistroID)
	assert.Equal(t, "MORADOR ANA SILVA, DO BLOCO A APARTAMENTO 10, ESTA SEM TAG NO VEICULO ABC1234 GOL PRATA!", a.Mensagem)
}

func TestParcelAlertForMultipleParcels(t *testing.T) {
	b := newTestBuilder(t)
	view := models.AnalysisView{Encomendas: []models.ParcelAnalysisGroup{
		{
			Identidade: "7|24", Bloco: "7", Apartamento: "24", OrigemStatus: models.OrigemSemContato, Quantidade: 1,
			Registros: []models.ParcelEvent{{ID: 2, StatusEncomenda: models.ParcelSemContato, DataHora: "10/01/2026 11:00:00"}},
		},
		{
			Identidade: "7|24", Bloco: "7", Apartamento: "24", OrigemStatus: models.OrigemSemStatus, Quantidade: 2,
			Registros: []models.ParcelEvent{
				{ID: 3, DataHora: "10/01/2026 09:00:00"},
				{ID: 1, DataHora: "10/01/2026 10:00:00"},
			},
		},
	}}

	res, err := b.BuildAll(context.Background(), view)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	a := res.Created[0]
	assert.Equal(t, models.AlertEncomendasMultiplas, a.Tipo)
	assert.Equal(t, models.LevelWarn, a.Nivel)
	assert.Equal(t, "7|24", a.Identidade)
	assert.Equal(t, 3, a.Referencias.UltimoRegistroID)
	assert.Equal(t, 2, a.Referencias.Quantidade)
	assert.Equal(t, "AVISO: HA DUAS ENCOMENDAS PARA O BLOCO 7 APARTAMENTO 24 DATA E HORA 10/01/2026 09:00:00|10/01/2026 10:00:00 SEM CONTATO DATA HORA -!", a.Mensagem)

	res, err = b.BuildParcels(context.Background(), view)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
}

func TestCorruptedAlertsFileIsRecreated(t *testing.T) {
	b := newTestBuilder(t)
	require.NoError(t, os.WriteFile(b.path, []byte(`{"registros": [{"id_aviso": "AVISO-0000`), 0o644))

	res, err := b.BuildAll(context.Background(), viewOf(groupOf(
		anaAccess(1, "10/01/2026 10:00:00"),
		anaAccess(2, "10/01/2026 12:00:00"),
	)))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "AVISO-000001", res.Created[0].IDAviso)

	matches, err := filepath.Glob(b.path + ".corrupted.*.bak")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	doc, err := b.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Registros, 1)
}

func TestWeightedRatio(t *testing.T) {
	assert.GreaterOrEqual(t, WeightedRatio("JETA", "JETTA"), ModelSimilarityThreshold)
	assert.GreaterOrEqual(t, WeightedRatio("COROLLA", "TOYOTA COROLLA"), ModelSimilarityThreshold)
	assert.GreaterOrEqual(t, WeightedRatio("ONIX PLUS", "PLUS ONIX"), ModelSimilarityThreshold)
	assert.Less(t, WeightedRatio("GOL", "POLO"), ModelSimilarityThreshold)
	assert.Less(t, WeightedRatio("CIVIC", "CITY"), ModelSimilarityThreshold)
	assert.Equal(t, 75, WeightedRatio("ONIX", "ONYX"))
	assert.Less(t, WeightedRatio("POLO", "SOLO"), ModelSimilarityThreshold)
	assert.Zero(t, WeightedRatio("", "GOL"))
}

func TestScorersAgreeOnCommonModels(t *testing.T) {
	pairs := [][2]string{
		{"JETA", "JETTA"},
		{"GOL", "POLO"},
		{"CIVIC", "CITY"},
		{"ONIX", "ONIX"},
		{"HB20", "HB20S"},
		{"SANDERO", "KICKS"},
		{"COROLLA", "TOYOTA COROLLA"},
		{"ONIX", "ONYX"},
		{"ONIX PLUS", "PLUS ONIX"},
		{"POLO", "SOLO"},
		{"CRUZ", "CRUZE"},
	}
	weighted := vehicleMatcher{scorer: WeightedRatio, threshold: ModelSimilarityThreshold}
	prefix := vehicleMatcher{threshold: ModelSimilarityThreshold}
	for _, p := range pairs {
		assert.Equal(t, weighted.sameModel(p[0], p[1]), prefix.sameModel(p[0], p[1]), "%s vs %s", p[0], p[1])
	}
}

func TestSameColor(t *testing.T) {
	assert.True(t, sameColor("PRETO", "preta"))
	assert.True(t, sameColor("", "BRANCO"))
	assert.False(t, sameColor("PRETO", "PRATA"))
	assert.False(t, sameColor("AZUL", "VERDE"))
}

func TestNumberWords(t *testing.T) {
	assert.Equal(t, "PRIMEIRA", OrdinalPT(1))
	assert.Equal(t, "DECIMA", OrdinalPT(10))
	assert.Equal(t, "11ª", OrdinalPT(11))
	assert.Equal(t, "DUAS", CardinalPT(2))
	assert.Equal(t, "DEZ", CardinalPT(10))
	assert.Equal(t, "12", CardinalPT(12))
}
