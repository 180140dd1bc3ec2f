package dataset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/t77yq/comment-evaluator/internal/dataset"
	"github.com/t77yq/comment-evaluator/internal/testutil"
)

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	status := dataset.ValidateFiles(dir)
	require.Len(t, status, 4)
	for name, ok := range status {
		assert.False(t, ok, name)
	}

	testutil.WriteSampleData(t, dir)
	for name, ok := range dataset.ValidateFiles(dir) {
		assert.True(t, ok, name)
	}
	assert.Empty(t, dataset.MissingFiles(dir))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleData(t, dir)

	ds, err := dataset.Load(dir, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, ds.Alerts, len(testutil.SampleAlerts()))
	assert.Len(t, ds.Oil, len(testutil.SampleOil()))
	assert.Len(t, ds.Telemetry, len(testutil.SampleTelemetry()))
	assert.Len(t, ds.Comments, len(testutil.SampleComments()))

	a1, ok := ds.Alert("A1")
	require.True(t, ok)
	require.NotNil(t, a1.TimeStart)
	assert.True(t, a1.TimeStart.Equal(testutil.T0))
	require.NotNil(t, a1.OilMeter)
	assert.Equal(t, "M-100", *a1.OilMeter)

	a3, ok := ds.Alert("A3")
	require.True(t, ok)
	assert.Nil(t, a3.TimeStart)
	assert.Nil(t, a3.OilMeter)
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleData(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, dataset.TelemetryFile)))

	_, err := dataset.Load(dir, zap.NewNop())
	require.ErrorIs(t, err, dataset.ErrDatasetMissing)
	assert.Contains(t, err.Error(), dataset.TelemetryFile)
}

func TestLoad_MalformedFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleData(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataset.OilFile), []byte("not parquet"), 0o644))

	ds, err := dataset.Load(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, ds.Oil)
	assert.NotEmpty(t, ds.Alerts)
}

func TestLoad_UnknownBreachLevelIsLogged(t *testing.T) {
	dir := t.TempDir()
	oil := testutil.SampleOil()
	severe := "severe"
	oil[0].BreachLevel = &severe
	oil[1].BreachLevel = &severe
	require.NoError(t, dataset.Write(dir, dataset.New(
		testutil.SampleAlerts(), oil, testutil.SampleTelemetry(), testutil.SampleComments())))

	core, logs := observer.New(zapcore.WarnLevel)
	ds, err := dataset.Load(dir, zap.New(core))
	require.NoError(t, err)
	assert.Len(t, ds.Oil, len(oil))

	entries := logs.FilterMessageSnippet("unknown breach levels").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []interface{}{"severe"}, entries[0].ContextMap()["levels"])

	logs.TakeAll()
	testutil.WriteSampleData(t, dir)
	_, err = dataset.Load(dir, zap.New(core))
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	cache := dataset.NewCache(dir, zap.NewNop())

	_, err := cache.Get()
	require.ErrorIs(t, err, dataset.ErrDatasetMissing)

	testutil.WriteSampleData(t, dir)
	first, err := cache.Get()
	require.NoError(t, err)

	again, err := cache.Get()
	require.NoError(t, err)
	assert.Same(t, first, again)

	reloaded, err := cache.Reload()
	require.NoError(t, err)
	assert.NotSame(t, first, reloaded)

	require.NoError(t, os.Remove(filepath.Join(dir, dataset.AlertsFile)))
	_, err = cache.Reload()
	require.Error(t, err)
	kept, err := cache.Get()
	require.NoError(t, err)
	assert.Same(t, reloaded, kept)

	cache.Invalidate()
	_, err = cache.Get()
	assert.ErrorIs(t, err, dataset.ErrDatasetMissing)
}

func TestIsKnown(t *testing.T) {
	assert.True(t, dataset.IsKnown(dataset.CommentsFile))
	assert.False(t, dataset.IsKnown("eval.sqlite"))
}
