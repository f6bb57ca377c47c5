package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	storage, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return storage
}

func sampleBenchmark() models.BenchmarkQuery {
	return models.BenchmarkQuery{
		Hash: "test_hash",
		Metadata: models.BenchmarkMetadata{
			Name:        "test",
			Description: "test description",
			Difficulty:  "easy",
		},
		Serialized: `{"env": "cartpole", "artifact_id": "art-1"}`,
	}
}

func sampleEpisode(benchmarkID string) models.EpisodeQuery {
	return models.EpisodeQuery{
		BenchmarkID: benchmarkID,
		Metadata:    map[string]any{"agent": "test_agent"},
		Tuples: []models.RLTuple{
			{State: map[string]any{"position": 0.0}, Action: 1, Reward: 0.0},
			{State: map[string]any{"position": 0.1}, Action: 1, Reward: 0.1, Terminal: true},
		},
	}
}

func TestFileStorage_BenchmarkRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	header, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)
	assert.Equal(t, "test_hash", header.Hash)
	assert.NotEmpty(t, header.ID)

	loaded, err := storage.LoadBenchmark(ctx, header.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleBenchmark().Serialized, loaded.Serialized)
	assert.Equal(t, "test", loaded.Metadata.Name)

	// The layout is <root>/benchmarks/<id>.json.
	_, err = os.Stat(filepath.Join(storage.root, "benchmarks", header.ID+".json"))
	assert.NoError(t, err)
}

func TestFileStorage_StoreBenchmark_Idempotent(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	first, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)
	second, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := storage.ListBenchmarks(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFileStorage_LoadBenchmark_NotFound(t *testing.T) {
	storage := newTestStorage(t)
	_, err := storage.LoadBenchmark(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFileStorage_ListBenchmarks_WithFilter(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)

	other := sampleBenchmark()
	other.Hash = "other_hash"
	other.Serialized = `{"env": "mountaincar"}`
	other.Metadata.Difficulty = "hard"
	_, err = storage.StoreBenchmark(ctx, other)
	require.NoError(t, err)

	filter := models.EQ("hash", "test_hash")
	list, err := storage.ListBenchmarks(ctx, &filter)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "test_hash", list[0].Hash)

	filter = models.EQ("metadata.difficulty", "hard")
	list, err = storage.ListBenchmarks(ctx, &filter)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "other_hash", list[0].Hash)
}

func TestFileStorage_DeleteBenchmark_CascadesToEpisodes(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	header, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		episode := sampleEpisode(header.ID)
		episode.Metadata = map[string]any{"run": i}
		_, err := storage.RecordEpisode(ctx, episode)
		require.NoError(t, err)
	}

	require.NoError(t, storage.DeleteBenchmark(ctx, header.ID))

	_, err = storage.LoadBenchmark(ctx, header.ID)
	assert.True(t, apperrors.IsNotFound(err))

	filter := models.EQ("benchmark_id", header.ID)
	episodes, err := storage.ListEpisodes(ctx, &filter, false)
	require.NoError(t, err)
	assert.Empty(t, episodes)

	// Idempotent: a second delete still succeeds.
	assert.NoError(t, storage.DeleteBenchmark(ctx, header.ID))
}

func TestFileStorage_PublishUnpublish_SetSemantics(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	header, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)

	require.NoError(t, storage.PublishBenchmark(ctx, header.ID, "team"))
	require.NoError(t, storage.PublishBenchmark(ctx, header.ID, "team"))

	loaded, err := storage.LoadBenchmark(ctx, header.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"team"}, loaded.PublishedIn)

	require.NoError(t, storage.UnpublishBenchmark(ctx, header.ID, "team"))
	loaded, err = storage.LoadBenchmark(ctx, header.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.PublishedIn)
}

func TestFileStorage_ArtifactContentAddressing(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	data := []byte("t,value\n0,1\n1,2\n")

	item, err := storage.StoreArtifact(ctx, data, models.ArtifactMetadata{Name: "test.csv"})
	require.NoError(t, err)
	assert.Equal(t, item.ID, item.Hash)

	// Hash determinism: identical bytes land on the same id.
	again, err := storage.StoreArtifact(ctx, data, models.ArtifactMetadata{Name: "renamed.csv"})
	require.NoError(t, err)
	assert.Equal(t, item.ID, again.ID)
	assert.Equal(t, "test.csv", again.Metadata.Name)

	loaded, err := storage.LoadArtifact(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, data, loaded)

	items, err := storage.ListArtifacts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, storage.DeleteArtifact(ctx, item.ID))
	_, err = storage.LoadArtifact(ctx, item.ID)
	assert.True(t, apperrors.IsNotFound(err))
	require.NoError(t, storage.DeleteArtifact(ctx, item.ID))
}

func TestFileStorage_RecordEpisode_DerivesFields(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	header, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)

	episode, err := storage.RecordEpisode(ctx, sampleEpisode(header.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, episode.NTuples)
	assert.True(t, episode.Terminated)
	assert.False(t, episode.Timeout)

	// Tuples round-trip in order.
	filter := models.EQ("id", episode.ID)
	items, err := storage.ListEpisodes(ctx, &filter, true)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Tuples, 2)
	assert.Equal(t, 0.1, items[0].Tuples[1].Reward)
	assert.True(t, items[0].Tuples[1].Terminal)

	// Without include_tuples the payload stays home.
	items, err = storage.ListEpisodes(ctx, &filter, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Tuples)
}

func TestFileStorage_RecordEpisode_RequiresBenchmark(t *testing.T) {
	storage := newTestStorage(t)
	_, err := storage.RecordEpisode(context.Background(), sampleEpisode("missing"))
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFileStorage_RecordEpisode_RejectsEmpty(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	header, err := storage.StoreBenchmark(ctx, sampleBenchmark())
	require.NoError(t, err)

	query := models.EpisodeQuery{BenchmarkID: header.ID}
	_, err = storage.RecordEpisode(ctx, query)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.As(err).Kind)
}

func TestExtractArtifactIDs(t *testing.T) {
	serialized := `{
		"env": "trading",
		"data_sources": [
			{"artifact_id": "a1"},
			{"nested": {"artifact_id": "a2"}}
		],
		"artifact_id": "a3"
	}`
	ids := extractArtifactIDs(serialized)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, ids)

	assert.Nil(t, extractArtifactIDs("not json"))
	assert.Nil(t, extractArtifactIDs(`{"env": "plain"}`))
}
