package analysis

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/portaria/internal/filelock"
	"example.com/portaria/internal/jsonstore"
	"example.com/portaria/internal/models"
)

func access(id int, nome, sobrenome, bloco, ap, dataHora string) models.AccessEvent {
	return models.AccessEvent{
		ID:          id,
		EntryID:     id,
		Nome:        nome,
		Sobrenome:   sobrenome,
		Bloco:       bloco,
		Apartamento: ap,
		Status:      models.StatusMorador,
		DataHora:    dataHora,
	}
}

func parcel(id int, bloco, ap, status, dataHora string) models.ParcelEvent {
	return models.ParcelEvent{ID: id, Bloco: bloco, Apartamento: ap, StatusEncomenda: status, DataHora: dataHora}
}

func TestGroupAccessesSortsByDataHora(t *testing.T) {
	rows := []models.AccessEvent{
		access(1, "ANA", "SILVA", "A", "10", "10/01/2026 12:00:00"),
		access(2, "JOAO", "LIMA", "B", "20", "10/01/2026 09:00:00"),
		access(3, "ana", " silva", "a", "10 ", "10/01/2026 10:00:00"),
		access(4, "ANA", "SILVA", "A", "10", "sem data"),
		access(5, "ANA", "SILVA", "A", "10", "09/01/2026 23:59"),
	}

	groups := GroupAccesses(rows, DefaultMinGroupSize)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "ANA|SILVA|A|10", g.Identidade)
	assert.Equal(t, "ANA", g.Nome)
	assert.Equal(t, "10", g.Apartamento)
	assert.Equal(t, 4, g.Quantidade)

	var ids []int
	for _, r := range g.Registros {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int{4, 5, 3, 1}, ids)
}

func TestGroupAccessesOrderAndThreshold(t *testing.T) {
	rows := []models.AccessEvent{
		access(1, "ZECA", "", "1", "1", "01/01/2026 10:00:00"),
		access(2, "ANA", "", "1", "1", "01/01/2026 10:00:00"),
		access(3, "ZECA", "", "1", "1", "01/01/2026 11:00:00"),
		access(4, "ANA", "", "1", "1", "01/01/2026 11:00:00"),
		access(5, "ANA", "", "1", "1", "01/01/2026 12:00:00"),
		{ID: 6, Status: models.StatusDesconhecido, DataHora: "01/01/2026 12:00:00"},
		{ID: 7, Status: models.StatusDesconhecido, DataHora: "01/01/2026 13:00:00"},
	}

	groups := GroupAccesses(rows, 2)
	require.Len(t, groups, 2)
	assert.Equal(t, "ANA||1|1", groups[0].Identidade)
	assert.Equal(t, "ZECA||1|1", groups[1].Identidade)

	groups = GroupAccesses(rows, 3)
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Quantidade)
}

func TestGroupParcelsBuckets(t *testing.T) {
	rows := []models.ParcelEvent{
		parcel(1, "7", "24", "", "10/01/2026 10:00:00"),
		parcel(2, "7", "24", models.ParcelSemContato, "10/01/2026 11:00:00"),
		parcel(3, "7", "24", "", "10/01/2026 09:00:00"),
		parcel(4, "7", "24", models.ParcelAvisado, "10/01/2026 12:00:00"),
		parcel(5, "", "", "", "10/01/2026 12:00:00"),
		parcel(6, "3", "", "avisado", "10/01/2026 12:00:00"),
	}

	groups := GroupParcels(rows)
	require.Len(t, groups, 2)

	assert.Equal(t, "7|24", groups[0].Identidade)
	assert.Equal(t, models.OrigemSemContato, groups[0].OrigemStatus)
	assert.Equal(t, 1, groups[0].Quantidade)

	assert.Equal(t, models.OrigemSemStatus, groups[1].OrigemStatus)
	assert.Equal(t, 2, groups[1].Quantidade)
	assert.Equal(t, "7", groups[1].Bloco)
	assert.Equal(t, "24", groups[1].Apartamento)
	assert.Equal(t, 3, groups[1].Registros[0].ID)
	assert.Equal(t, 3, groups[1].LastID())
}

func TestGroupParcelsSkipsParcelsWithoutUnit(t *testing.T) {
	rows := []models.ParcelEvent{
		parcel(1, "", "", "", "10/01/2026 10:00:00"),
		parcel(2, " ", "", models.ParcelSemContato, "10/01/2026 11:00:00"),
		parcel(3, "", "", "", "10/01/2026 12:00:00"),
		parcel(4, "3", "", "", "10/01/2026 12:00:00"),
	}

	groups := GroupParcels(rows)
	require.Len(t, groups, 1)
	assert.Equal(t, "3|", groups[0].Identidade)
	assert.Equal(t, models.OrigemSemStatus, groups[0].OrigemStatus)
	assert.Equal(t, 4, groups[0].Registros[0].ID)
}

func TestSemTagRecords(t *testing.T) {
	tagged := access(2, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00")
	tagged.SemTag = true
	rows := []models.AccessEvent{access(1, "ANA", "SILVA", "A", "10", "10/01/2026 09:00:00"), tagged}

	got := SemTagRecords(rows)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].ID)
	assert.NotNil(t, SemTagRecords(nil))
}

type fixture struct {
	builder *Builder
	store   *jsonstore.Store
	paths   Paths
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	store := jsonstore.New(jsonstore.Options{RetryBackoff: time.Millisecond})
	paths := Paths{
		AccessEnd:  filepath.Join(dir, "dadosend.json"),
		ParcelsEnd: filepath.Join(dir, "encomendasend.json"),
		Analyses:   filepath.Join(dir, "analises.json"),
	}
	locker := filelock.NewLocker(time.Second, 5*time.Millisecond)
	return &fixture{builder: NewBuilder(store, locker, paths, 0), store: store, paths: paths}
}

func (f *fixture) seedAccess(t *testing.T, rows ...models.AccessEvent) {
	require.NoError(t, jsonstore.SaveRecords(f.store, f.paths.AccessEnd, rows))
}

func (f *fixture) seedParcels(t *testing.T, rows ...models.ParcelEvent) {
	require.NoError(t, jsonstore.SaveRecords(f.store, f.paths.ParcelsEnd, rows))
}

func TestBuildAllWritesView(t *testing.T) {
	f := newFixture(t)
	f.seedAccess(t,
		access(1, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00"),
		access(2, "ANA", "SILVA", "A", "10", "10/01/2026 12:00:00"),
	)
	f.seedParcels(t,
		parcel(1, "7", "24", "", "10/01/2026 10:00:00"),
		parcel(2, "7", "24", models.ParcelSemContato, "10/01/2026 11:00:00"),
		parcel(3, "7", "24", "", "10/01/2026 12:00:00"),
	)

	view, err := f.builder.BuildAll(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Registros, 1)
	assert.Len(t, view.Encomendas, 2)
	assert.NotNil(t, view.MoradoresSemTag)

	loaded, err := f.builder.Load()
	require.NoError(t, err)
	assert.Equal(t, view, loaded)
}

func TestBuildAllOnEmptyStores(t *testing.T) {
	f := newFixture(t)

	view, err := f.builder.BuildAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, view.Registros)
	assert.NotNil(t, view.Registros)
	assert.NotNil(t, view.Encomendas)
}

func TestBuildForIdentityMatchesFullRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccess(t,
		access(1, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00"),
		access(2, "JOAO", "LIMA", "B", "20", "10/01/2026 10:30:00"),
		access(3, "JOAO", "LIMA", "B", "20", "10/01/2026 11:00:00"),
	)
	_, err := f.builder.BuildAll(ctx)
	require.NoError(t, err)

	tagged := access(4, "ANA", "SILVA", "A", "10", "10/01/2026 12:00:00")
	tagged.SemTag = true
	f.seedAccess(t,
		access(1, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00"),
		access(2, "JOAO", "LIMA", "B", "20", "10/01/2026 10:30:00"),
		access(3, "JOAO", "LIMA", "B", "20", "10/01/2026 11:00:00"),
		tagged,
	)
	f.seedParcels(t, parcel(1, "7", "24", "", "10/01/2026 10:00:00"))

	targeted, err := f.builder.BuildForIdentity(ctx, "ANA|SILVA|A|10")
	require.NoError(t, err)
	require.Len(t, targeted.Registros, 2)
	assert.Equal(t, "ANA|SILVA|A|10", targeted.Registros[0].Identidade)
	assert.Len(t, targeted.Encomendas, 1)
	require.Len(t, targeted.MoradoresSemTag, 1)

	full, err := f.builder.BuildAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, full, targeted)
}

func TestBuildForIdentityKeepsConcurrentSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccess(t,
		access(1, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00"),
		access(2, "ANA", "SILVA", "A", "10", "10/01/2026 12:00:00"),
	)
	_, err := f.builder.BuildAll(ctx)
	require.NoError(t, err)

	held, err := filelock.NewLocker(time.Second, 5*time.Millisecond).Acquire(ctx, f.paths.Analyses)
	require.NoError(t, err)

	done := make(chan models.AnalysisView, 1)
	go func() {
		view, err := f.builder.BuildForIdentity(ctx, "ANA|SILVA|A|10")
		assert.NoError(t, err)
		done <- view
	}()

	// Another writer saves a newer view while the targeted build waits.
	time.Sleep(50 * time.Millisecond)
	newer, err := f.builder.Load()
	require.NoError(t, err)
	joao := []models.AccessEvent{
		access(3, "JOAO", "LIMA", "B", "20", "10/01/2026 10:30:00"),
		access(4, "JOAO", "LIMA", "B", "20", "10/01/2026 11:00:00"),
	}
	g, ok := GroupIdentity(joao, "JOAO|LIMA|B|20", 2)
	require.True(t, ok)
	newer.Registros = append(newer.Registros, g)
	require.NoError(t, f.store.Save(f.paths.Analyses, newer))
	require.NoError(t, held.Release())

	var view models.AnalysisView
	select {
	case view = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("targeted build did not finish")
	}
	require.Len(t, view.Registros, 2)
	assert.Equal(t, "ANA|SILVA|A|10", view.Registros[0].Identidade)
	assert.Equal(t, "JOAO|LIMA|B|20", view.Registros[1].Identidade)

	loaded, err := f.builder.Load()
	require.NoError(t, err)
	assert.Equal(t, view, loaded)
}

func TestBuildForIdentityDropsGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccess(t,
		access(1, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00"),
		access(2, "ANA", "SILVA", "A", "10", "10/01/2026 12:00:00"),
	)
	_, err := f.builder.BuildAll(ctx)
	require.NoError(t, err)

	f.seedAccess(t, access(1, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00"))
	view, err := f.builder.BuildForIdentity(ctx, "ANA|SILVA|A|10")
	require.NoError(t, err)
	assert.Empty(t, view.Registros)

	_, err = f.builder.BuildForIdentity(ctx, "|||")
	assert.Error(t, err)
}

func TestBuildParcelsKeepsAccessGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccess(t,
		access(1, "ANA", "SILVA", "A", "10", "10/01/2026 10:00:00"),
		access(2, "ANA", "SILVA", "A", "10", "10/01/2026 12:00:00"),
	)
	_, err := f.builder.BuildAll(ctx)
	require.NoError(t, err)

	f.seedParcels(t,
		parcel(1, "7", "24", "", "10/01/2026 10:00:00"),
		parcel(2, "7", "24", "", "10/01/2026 11:00:00"),
	)
	view, err := f.builder.BuildParcels(ctx)
	require.NoError(t, err)
	assert.Len(t, view.Registros, 1)
	require.Len(t, view.Encomendas, 1)
	assert.Equal(t, 2, view.Encomendas[0].Quantidade)
}
