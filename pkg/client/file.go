package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// localUser is the created_by recorded by the single-user file backend.
const localUser = "local"

// FileStorage implements Storage over a local directory tree:
//
//	<root>/benchmarks/<id>.json
//	<root>/artifacts/<id>.bin
//	<root>/artifacts/<id>.meta.json
//	<root>/episodes/<id>.json
//
// Benchmark ids are the SHA-256 of the serialized payload; artifact ids
// the SHA-256 of the blob. Writes go through a temp file plus rename so a
// crash never leaves a half-written document. Authorization is disabled.
type FileStorage struct {
	root string
}

// NewFileStorage creates the directory layout under root.
func NewFileStorage(root string) (*FileStorage, error) {
	for _, dir := range []string{"benchmarks", "artifacts", "episodes"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, apperrors.Storage("create storage directory failed", err)
		}
	}
	return &FileStorage{root: root}, nil
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// writeAtomic writes data next to the target and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return apperrors.Storage("create temp file failed", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Storage("write temp file failed", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Storage("close temp file failed", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.Storage("rename temp file failed", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.Storage("encode document failed", err)
	}
	return writeAtomic(path, data)
}

func readJSON(path string, v any, missing string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.NotFound(missing)
		}
		return apperrors.Storage("read document failed", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Storage("decode document failed", err)
	}
	return nil
}

// toDoc round-trips a typed value through JSON so the filter evaluator
// sees the same document shape the wire uses.
func toDoc(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *FileStorage) benchmarkPath(id string) string {
	return filepath.Join(s.root, "benchmarks", id+".json")
}

func (s *FileStorage) artifactPath(id string) string {
	return filepath.Join(s.root, "artifacts", id+".bin")
}

func (s *FileStorage) artifactMetaPath(id string) string {
	return filepath.Join(s.root, "artifacts", id+".meta.json")
}

func (s *FileStorage) episodePath(id string) string {
	return filepath.Join(s.root, "episodes", id+".json")
}

// StoreBenchmark stores a benchmark; the id is derived from the payload
// so re-storing the same environment is an idempotent success.
func (s *FileStorage) StoreBenchmark(_ context.Context, query models.BenchmarkQuery) (*models.BenchmarkHeader, error) {
	id := hashString(query.Serialized)

	var existing models.Benchmark
	if err := readJSON(s.benchmarkPath(id), &existing, "Benchmark not found"); err == nil {
		header := existing.Header()
		return &header, nil
	}

	bench := models.Benchmark{
		BenchmarkHeader: models.BenchmarkHeader{
			ID:          id,
			Hash:        query.Hash,
			CreatedBy:   localUser,
			CreatedAt:   time.Now().UTC(),
			Metadata:    query.Metadata,
			PublishedIn: []string{},
		},
		Serialized: query.Serialized,
	}
	if err := writeJSON(s.benchmarkPath(id), bench); err != nil {
		return nil, err
	}
	header := bench.Header()
	return &header, nil
}

// LoadBenchmark reads a benchmark by id.
func (s *FileStorage) LoadBenchmark(_ context.Context, id string) (*models.Benchmark, error) {
	var bench models.Benchmark
	if err := readJSON(s.benchmarkPath(id), &bench, "Benchmark not found"); err != nil {
		return nil, err
	}
	return &bench, nil
}

// ListBenchmarks returns headers of all stored benchmarks matching the
// filter, interpreted in memory.
func (s *FileStorage) ListBenchmarks(_ context.Context, filter *models.Filter) ([]models.BenchmarkHeader, error) {
	headers := []models.BenchmarkHeader{}
	err := s.eachJSON("benchmarks", func(path string) error {
		var bench models.Benchmark
		if err := readJSON(path, &bench, "Benchmark not found"); err != nil {
			return err
		}
		doc, err := toDoc(bench)
		if err != nil {
			return apperrors.Storage("encode benchmark failed", err)
		}
		if matchesFilter(doc, filter) {
			headers = append(headers, bench.Header())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// DeleteBenchmark removes a benchmark and all episodes recorded against
// it. Idempotent.
func (s *FileStorage) DeleteBenchmark(ctx context.Context, id string) error {
	if err := os.Remove(s.benchmarkPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Storage("delete benchmark failed", err)
	}
	episodes, err := s.ListEpisodes(ctx, ptr(models.EQ("benchmark_id", id)), false)
	if err != nil {
		return err
	}
	for _, episode := range episodes {
		if err := s.DeleteEpisode(ctx, episode.ID); err != nil {
			return err
		}
	}
	return nil
}

// PublishBenchmark records the scope in the publication set.
func (s *FileStorage) PublishBenchmark(ctx context.Context, id, group string) error {
	return s.updateBenchmark(id, func(b *models.Benchmark) {
		b.PublishedIn = addScope(b.PublishedIn, group)
	})
}

// UnpublishBenchmark removes the scope from the publication set.
func (s *FileStorage) UnpublishBenchmark(ctx context.Context, id, group string) error {
	return s.updateBenchmark(id, func(b *models.Benchmark) {
		b.PublishedIn = removeScope(b.PublishedIn, group)
	})
}

func (s *FileStorage) updateBenchmark(id string, mutate func(*models.Benchmark)) error {
	var bench models.Benchmark
	if err := readJSON(s.benchmarkPath(id), &bench, "Benchmark not found"); err != nil {
		return err
	}
	mutate(&bench)
	return writeJSON(s.benchmarkPath(id), bench)
}

// StoreArtifact stores a blob content-addressed; identical bytes land on
// the same id and succeed idempotently.
func (s *FileStorage) StoreArtifact(_ context.Context, data []byte, metadata models.ArtifactMetadata) (*models.ArtifactMetadataItem, error) {
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])

	var existing models.ArtifactMetadataItem
	if err := readJSON(s.artifactMetaPath(id), &existing, "Artifact not found"); err == nil {
		return &existing, nil
	}

	item := models.ArtifactMetadataItem{
		ID:          id,
		Hash:        id,
		CreatedBy:   localUser,
		CreatedAt:   time.Now().UTC(),
		Metadata:    metadata,
		PublishedIn: []string{},
	}
	if err := writeAtomic(s.artifactPath(id), data); err != nil {
		return nil, err
	}
	if err := writeJSON(s.artifactMetaPath(id), item); err != nil {
		return nil, err
	}
	return &item, nil
}

// LoadArtifact reads the blob bytes by id.
func (s *FileStorage) LoadArtifact(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.artifactPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NotFound("Artifact not found")
		}
		return nil, apperrors.Storage("read artifact failed", err)
	}
	return data, nil
}

// LoadArtifactMetadata reads the metadata row by id.
func (s *FileStorage) LoadArtifactMetadata(_ context.Context, id string) (*models.ArtifactMetadataItem, error) {
	var item models.ArtifactMetadataItem
	if err := readJSON(s.artifactMetaPath(id), &item, "Artifact not found"); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListArtifacts returns metadata items matching the filter.
func (s *FileStorage) ListArtifacts(_ context.Context, filter *models.Filter) ([]models.ArtifactMetadataItem, error) {
	items := []models.ArtifactMetadataItem{}
	err := s.eachJSON("artifacts", func(path string) error {
		if !strings.HasSuffix(path, ".meta.json") {
			return nil
		}
		var item models.ArtifactMetadataItem
		if err := readJSON(path, &item, "Artifact not found"); err != nil {
			return err
		}
		doc, err := toDoc(item)
		if err != nil {
			return apperrors.Storage("encode artifact failed", err)
		}
		if matchesFilter(doc, filter) {
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteArtifact removes the blob and metadata. Idempotent.
func (s *FileStorage) DeleteArtifact(_ context.Context, id string) error {
	for _, path := range []string{s.artifactPath(id), s.artifactMetaPath(id)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperrors.Storage("delete artifact failed", err)
		}
	}
	return nil
}

// PublishArtifact records the scope in the publication set.
func (s *FileStorage) PublishArtifact(_ context.Context, id, group string) error {
	return s.updateArtifact(id, func(a *models.ArtifactMetadataItem) {
		a.PublishedIn = addScope(a.PublishedIn, group)
	})
}

// UnpublishArtifact removes the scope from the publication set.
func (s *FileStorage) UnpublishArtifact(_ context.Context, id, group string) error {
	return s.updateArtifact(id, func(a *models.ArtifactMetadataItem) {
		a.PublishedIn = removeScope(a.PublishedIn, group)
	})
}

func (s *FileStorage) updateArtifact(id string, mutate func(*models.ArtifactMetadataItem)) error {
	var item models.ArtifactMetadataItem
	if err := readJSON(s.artifactMetaPath(id), &item, "Artifact not found"); err != nil {
		return err
	}
	mutate(&item)
	return writeJSON(s.artifactMetaPath(id), item)
}

// RecordEpisode stores an episode after checking the parent benchmark
// exists locally.
func (s *FileStorage) RecordEpisode(ctx context.Context, query models.EpisodeQuery) (*models.EpisodeHeader, error) {
	if len(query.Tuples) == 0 {
		return nil, apperrors.Validation("episode requires at least one tuple")
	}
	if _, err := s.LoadBenchmark(ctx, query.BenchmarkID); err != nil {
		return nil, err
	}

	// Content-address the episode so the id is stable without a server.
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, apperrors.Storage("encode episode failed", err)
	}
	id := hashString(string(payload))

	episode := models.NewEpisodeItem(id, localUser, time.Now().UTC(), query)
	episode.PublishedIn = []string{}
	if err := writeJSON(s.episodePath(id), episode); err != nil {
		return nil, err
	}
	header := episode.Header()
	return &header, nil
}

// ListEpisodes returns episodes matching the filter; tuple lists are
// dropped unless requested.
func (s *FileStorage) ListEpisodes(_ context.Context, filter *models.Filter, includeTuples bool) ([]models.EpisodeItem, error) {
	episodes := []models.EpisodeItem{}
	err := s.eachJSON("episodes", func(path string) error {
		var episode models.EpisodeItem
		if err := readJSON(path, &episode, "Episode not found"); err != nil {
			return err
		}
		doc, err := toDoc(episode)
		if err != nil {
			return apperrors.Storage("encode episode failed", err)
		}
		if !matchesFilter(doc, filter) {
			return nil
		}
		if !includeTuples {
			episode.Tuples = nil
		}
		episodes = append(episodes, episode)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return episodes, nil
}

// DeleteEpisode removes an episode. Idempotent.
func (s *FileStorage) DeleteEpisode(_ context.Context, id string) error {
	if err := os.Remove(s.episodePath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Storage("delete episode failed", err)
	}
	return nil
}

// PublishEpisode records the scope in the publication set.
func (s *FileStorage) PublishEpisode(_ context.Context, id, group string) error {
	return s.updateEpisode(id, func(e *models.EpisodeItem) {
		e.PublishedIn = addScope(e.PublishedIn, group)
	})
}

// UnpublishEpisode removes the scope from the publication set.
func (s *FileStorage) UnpublishEpisode(_ context.Context, id, group string) error {
	return s.updateEpisode(id, func(e *models.EpisodeItem) {
		e.PublishedIn = removeScope(e.PublishedIn, group)
	})
}

func (s *FileStorage) updateEpisode(id string, mutate func(*models.EpisodeItem)) error {
	var episode models.EpisodeItem
	if err := readJSON(s.episodePath(id), &episode, "Episode not found"); err != nil {
		return err
	}
	mutate(&episode)
	return writeJSON(s.episodePath(id), episode)
}

// eachJSON visits every .json document in a kind directory.
func (s *FileStorage) eachJSON(kind string, visit func(path string) error) error {
	entries, err := os.ReadDir(filepath.Join(s.root, kind))
	if err != nil {
		return apperrors.Storage("list storage directory failed", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := visit(filepath.Join(s.root, kind, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func addScope(scopes []string, group string) []string {
	for _, s := range scopes {
		if s == group {
			return scopes
		}
	}
	return append(scopes, group)
}

func removeScope(scopes []string, group string) []string {
	out := scopes[:0]
	for _, s := range scopes {
		if s != group {
			out = append(out, s)
		}
	}
	return out
}

func ptr(f models.Filter) *models.Filter {
	return &f
}

var _ Storage = (*FileStorage)(nil)
