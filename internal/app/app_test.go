package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pagebuilder/internal/config"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/service"
	"pagebuilder/internal/storage"
)

type memSecrets map[string][]byte

func (m memSecrets) Set(key string, value []byte) error { m[key] = value; return nil }
func (m memSecrets) Get(key string) ([]byte, error)     { return m[key], nil }
func (m memSecrets) Delete(key string) error            { delete(m, key); return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "pages.db")
	cfg.Editor.AutosaveInterval = time.Hour
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithSecrets(memSecrets{})}, opts...)
	a, err := New(context.Background(), cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return a
}

func TestApp_ShutdownSavesOpenSessions(t *testing.T) {
	cfg := testConfig(t)
	emitter := &service.MockEmitter{}
	a := newTestApp(t, cfg, WithEmitter(emitter))
	ctx := context.Background()
	require.NoError(t, a.Startup(ctx))

	page, err := a.Pages().CreatePage(ctx, "Launch", "product")
	require.NoError(t, err)
	sess, err := a.Editors().Open(ctx, page.ID)
	require.NoError(t, err)
	_, err = sess.AddComponent(domain.ComponentHero, nil)
	require.NoError(t, err)

	require.NoError(t, a.Shutdown(ctx))
	assert.Equal(t, 1, emitter.Count(service.EventPageSaved))

	reopened := newTestApp(t, cfg)
	defer reopened.Shutdown(ctx)
	doc, err := reopened.Store().GetDocument(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Components.Len())
	versions, err := reopened.Store().ListVersions(ctx, page.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestApp_MaxVersionsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Editor.MaxVersions = 3
	a := newTestApp(t, cfg)
	defer a.Shutdown(context.Background())
	assert.Equal(t, 3, a.Store().MaxVersions())
}

func TestApp_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.Driver = config.DriverRedis
	cfg.Storage.RedisAddr = mr.Addr()
	cfg.Storage.PasswordSecret = "redis"
	mr.RequireAuth("s3cret")

	a := newTestApp(t, cfg, WithSecrets(memSecrets{"redis": []byte("s3cret")}))
	ctx := context.Background()
	page, err := a.Pages().CreatePage(ctx, "Cached", "")
	require.NoError(t, err)
	require.NoError(t, a.Shutdown(ctx))

	assert.Contains(t, mr.Keys(), "pagebuilder:landing_pages")
	assert.NotEmpty(t, page.ID)
}

func TestOpenBackend_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := OpenBackend(ctx, config.StorageConfig{Driver: "oracle"}, memSecrets{})
	assert.Error(t, err)

	_, err = OpenBackend(ctx, config.StorageConfig{Driver: config.DriverRedis, RedisAddr: "127.0.0.1:1"}, memSecrets{})
	assert.Error(t, err)
}

func TestPageWatcher_ReloadsExternalWrites(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	ctx := context.Background()
	defer a.Shutdown(ctx)

	page, err := a.Pages().CreatePage(ctx, "Shared", "")
	require.NoError(t, err)
	sess, err := a.Editors().Open(ctx, page.ID)
	require.NoError(t, err)

	w, err := newPageWatcher(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, w.fs, "sqlite stores are watched with fsnotify")
	defer w.fs.Close()

	// A second process writing to the same file.
	other, err := storage.New(cfg.Storage.Path)
	require.NoError(t, err)
	defer other.Close()
	hero := domain.ComponentNode{ID: "ext-1", Type: domain.ComponentHero, Props: map[string]any{"title": "From elsewhere"}}
	_, err = storage.NewPageStore(other).SaveSnapshot(ctx, page.ID, domain.Components{hero}, domain.PageSettings{Title: "External"})
	require.NoError(t, err)

	w.check()
	assert.Equal(t, []string{"ext-1"}, sess.Present().IDs())
	assert.Equal(t, "External", sess.Settings().Title)
	assert.False(t, sess.CanUndo(), "external reloads are not undoable")
}

func TestPageWatcher_LocalEditsWin(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	ctx := context.Background()
	defer a.Shutdown(ctx)

	page, err := a.Pages().CreatePage(ctx, "Shared", "")
	require.NoError(t, err)
	sess, err := a.Editors().Open(ctx, page.ID)
	require.NoError(t, err)
	local, err := sess.AddComponent(domain.ComponentText, nil)
	require.NoError(t, err)

	w, err := newPageWatcher(ctx, a)
	require.NoError(t, err)
	defer w.fs.Close()

	other, err := storage.New(cfg.Storage.Path)
	require.NoError(t, err)
	defer other.Close()
	_, err = storage.NewPageStore(other).SaveSnapshot(ctx, page.ID, domain.Components{}, domain.PageSettings{})
	require.NoError(t, err)

	w.check()
	assert.Equal(t, []string{local.ID}, sess.Present().IDs())
}

func TestPageWatcher_StartStop(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)
	ctx := context.Background()
	defer a.Shutdown(ctx)

	page, err := a.Pages().CreatePage(ctx, "Shared", "")
	require.NoError(t, err)
	sess, err := a.Editors().Open(ctx, page.ID)
	require.NoError(t, err)
	require.NoError(t, a.Startup(ctx))

	other, err := storage.New(cfg.Storage.Path)
	require.NoError(t, err)
	defer other.Close()
	hero := domain.ComponentNode{ID: "ext-2", Type: domain.ComponentHero, Props: map[string]any{"title": "Live"}}
	_, err = storage.NewPageStore(other).SaveSnapshot(ctx, page.ID, domain.Components{hero}, domain.PageSettings{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(sess.Present()) == 1 && sess.Present()[0].ID == "ext-2"
	}, 5*time.Second, 50*time.Millisecond)
}
