package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
)

func sqliteConfig(dsn string) loadFunc {
	return func() (*config.Config, error) {
		cfg := &config.Config{}
		cfg.App.Env = "test"
		cfg.DB.DSN = dsn
		cfg.FeatureFlags.UseSQLite = true
		return cfg, nil
	}
}

func TestStartOpensDatabaseOnly(t *testing.T) {
	rt, err := start(context.Background(), "cron-worker", Needs{}, sqliteConfig("file::memory:?cache=shared"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Equal(t, "cron-worker", rt.Config.Service.Kind)
	assert.Nil(t, rt.Redis)
	require.NoError(t, rt.DB.Ping(context.Background()))
}

func TestStartSurfacesConfigErrors(t *testing.T) {
	boom := errors.New("boom")
	rt, err := start(context.Background(), "worker", Needs{}, func() (*config.Config, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Nil(t, rt)
}

func TestStartClosesWhatItOpenedOnFailure(t *testing.T) {
	load := sqliteConfig("file::memory:?cache=shared")
	withBadRedis := func() (*config.Config, error) {
		cfg, _ := load()
		cfg.Redis.URL = "://not-a-url"
		return cfg, nil
	}

	rt, err := start(context.Background(), "worker", Needs{Redis: true}, withBadRedis)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open redis")
	assert.Nil(t, rt)
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	var order []string
	rt := &Runtime{}
	rt.OnClose(func() error { order = append(order, "first"); return nil })
	rt.OnClose(func() error { order = append(order, "second"); return errors.New("second failed") })

	err := rt.Close()
	require.EqualError(t, err, "second failed")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.NoError(t, rt.Close())

	var nilRuntime *Runtime
	assert.NoError(t, nilRuntime.Close())
}
