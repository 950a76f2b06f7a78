package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/portaria/internal/models"
)

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) RebuildAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockHandler) RebuildForIdentity(ctx context.Context, identity string) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *MockHandler) RebuildParcels(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Report(action string, status models.RuntimeStatus, stage string, details interface{}) {
	m.Called(action, status, stage, details)
}

var base = time.Date(2026, 1, 10, 10, 0, 0, 0, time.Local)

type fixture struct {
	w           *Watcher
	handler     *MockHandler
	sink        *MockSink
	accessPath  string
	parcelsPath string
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	f := &fixture{
		handler:     new(MockHandler),
		sink:        new(MockSink),
		accessPath:  filepath.Join(dir, "dadosend.json"),
		parcelsPath: filepath.Join(dir, "encomendasend.json"),
	}
	f.sink.On("Report", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	f.w = New(Options{
		AccessPath:  f.accessPath,
		ParcelsPath: f.parcelsPath,
		Handler:     f.handler,
		Reporter:    f.sink,
	})
	f.w.prime()
	return f
}

// write stores content at path with a distinct mtime derived from seq.
func write(t *testing.T, path, content string, seq int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	mtime := base.Add(time.Duration(seq) * time.Second)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func accessDoc(n int) string {
	return fmt.Sprintf(`{"registros": [{"ID": %d, "NOME": "ANA", "SOBRENOME": "SILVA", "BLOCO": "A", "APARTAMENTO": "10"}]}`, n)
}

func TestBurstCoalescesIntoOneRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.handler.On("RebuildForIdentity", mock.Anything, "ANA|SILVA|A|10").Return(nil)

	for i := 1; i <= 6; i++ {
		write(t, f.accessPath, accessDoc(i), i)
		now := base.Add(time.Duration(i) * 50 * time.Millisecond)
		f.w.poll(now)
		f.w.drain(ctx, now)
	}
	f.handler.AssertNotCalled(t, "RebuildForIdentity", mock.Anything, mock.Anything)

	f.w.drain(ctx, base.Add(300*time.Millisecond+DefaultDebounce))
	f.w.drain(ctx, base.Add(2*time.Second))

	f.handler.AssertNumberOfCalls(t, "RebuildForIdentity", 1)
	f.handler.AssertNotCalled(t, "RebuildAll", mock.Anything)
}

func TestFingerprintGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	write(t, f.accessPath, accessDoc(1), 1)
	f.w.prime()

	// Touch without a content change.
	write(t, f.accessPath, accessDoc(1), 2)
	f.w.poll(base)
	assert.Empty(t, f.w.pending)

	// Content change with the mtime left in place.
	write(t, f.accessPath, accessDoc(2), 2)
	f.w.poll(base)
	assert.Empty(t, f.w.pending)

	f.w.drain(ctx, base.Add(time.Second))
	f.handler.AssertNotCalled(t, "RebuildForIdentity", mock.Anything, mock.Anything)
}

func TestAccessEventSubsumesParcels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.handler.On("RebuildForIdentity", mock.Anything, "ANA|SILVA|A|10").Return(nil)

	write(t, f.parcelsPath, `{"registros": [{"ID": 1}]}`, 1)
	write(t, f.accessPath, accessDoc(1), 1)
	f.w.poll(base)
	f.w.drain(ctx, base.Add(DefaultDebounce))

	f.handler.AssertNumberOfCalls(t, "RebuildForIdentity", 1)
	f.handler.AssertNotCalled(t, "RebuildParcels", mock.Anything)
}

func TestParcelsEventAlone(t *testing.T) {
	f := newFixture(t)
	f.handler.On("RebuildParcels", mock.Anything).Return(nil)

	write(t, f.parcelsPath, `{"registros": [{"ID": 1}]}`, 1)
	f.w.poll(base)
	f.w.drain(context.Background(), base.Add(DefaultDebounce))

	f.handler.AssertNumberOfCalls(t, "RebuildParcels", 1)
}

func TestUnknownIdentityFallsBackToFullRebuild(t *testing.T) {
	f := newFixture(t)
	f.handler.On("RebuildAll", mock.Anything).Return(nil)

	write(t, f.accessPath, `{"registros": [{"ID": 1, "STATUS": "DESCONHECIDO"}]}`, 1)
	f.w.poll(base)
	f.w.drain(context.Background(), base.Add(DefaultDebounce))

	f.handler.AssertNumberOfCalls(t, "RebuildAll", 1)
	f.sink.AssertCalled(t, "Report", "watcher", models.RuntimeOK, "dadosend_full", mock.Anything)
}

func TestStepRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.handler.On("RebuildParcels", mock.Anything).Run(func(mock.Arguments) { panic("boom") }).Return(nil)
	f.w.now = func() time.Time { return base.Add(time.Hour) }

	f.w.pending[EventParcels] = base

	assert.NotPanics(t, func() { f.w.step(context.Background()) })
	f.sink.AssertCalled(t, "Report", "watcher", models.RuntimeError, "dispatch_panic", mock.Anything)
	assert.Empty(t, f.w.pending)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, f.w.Run(ctx))
}

func TestLastIdentity(t *testing.T) {
	doc := `{"registros": [
		{"ID": 1, "NOME": "ANA", "SOBRENOME": "SILVA", "BLOCO": "A", "APARTAMENTO": "10"},
		{"ID": 7, "NOME": "joao", "SOBRENOME": "lima", "BLOCO": "b", "APARTAMENTO": "20"},
		{"ID": 3, "NOME": "ZECA", "SOBRENOME": "", "BLOCO": "1", "APARTAMENTO": "1"}
	]}`
	assert.Equal(t, "JOAO|LIMA|B|20", LastIdentity([]byte(doc)))

	byDate := `{"registros": [
		{"NOME": "ANA", "DATA_HORA": "10/01/2026 12:00:00"},
		{"NOME": "JOAO", "DATA_HORA": "10/01/2026 09:00:00"},
		{"NOME": "ZECA", "DATA_HORA": "sem data"}
	]}`
	assert.Equal(t, "ANA|||", LastIdentity([]byte(byDate)))

	tail := `{"registros": [{"NOME": "ANA"}, {"NOME": "JOAO"}]}`
	assert.Equal(t, "JOAO|||", LastIdentity([]byte(tail)))

	assert.Empty(t, LastIdentity([]byte(`{"registros": []}`)))
	assert.Empty(t, LastIdentity([]byte(`{"registros": [{"ID": 1}]}`)))
}
