// Package client provides the BenchVault client library: one operation
// surface over two backends.
//
//   - APIClient talks to a remote server over HTTP. Tokens obtained on
//     login are persisted in the platform keyring and attached to every
//     request; on a 401 the access token is refreshed once transparently.
//   - FileStorage keeps everything in a local directory tree with
//     content-addressed filenames. It is single-user: authorization is
//     disabled and publish/unpublish only maintain the publication set.
//
// Both backends return the shared typed errors from internal/apperrors,
// so callers can branch on NotFound/Conflict/Forbidden uniformly.
package client

import (
	"context"

	"github.com/benchvault/benchvault/internal/models"
)

// Storage is the operation surface shared by the HTTP and filesystem
// backends.
type Storage interface {
	// Benchmarks
	StoreBenchmark(ctx context.Context, query models.BenchmarkQuery) (*models.BenchmarkHeader, error)
	LoadBenchmark(ctx context.Context, id string) (*models.Benchmark, error)
	ListBenchmarks(ctx context.Context, filter *models.Filter) ([]models.BenchmarkHeader, error)
	DeleteBenchmark(ctx context.Context, id string) error
	PublishBenchmark(ctx context.Context, id, group string) error
	UnpublishBenchmark(ctx context.Context, id, group string) error

	// Artifacts
	StoreArtifact(ctx context.Context, data []byte, metadata models.ArtifactMetadata) (*models.ArtifactMetadataItem, error)
	LoadArtifact(ctx context.Context, id string) ([]byte, error)
	ListArtifacts(ctx context.Context, filter *models.Filter) ([]models.ArtifactMetadataItem, error)
	DeleteArtifact(ctx context.Context, id string) error
	PublishArtifact(ctx context.Context, id, group string) error
	UnpublishArtifact(ctx context.Context, id, group string) error

	// Episodes
	RecordEpisode(ctx context.Context, query models.EpisodeQuery) (*models.EpisodeHeader, error)
	ListEpisodes(ctx context.Context, filter *models.Filter, includeTuples bool) ([]models.EpisodeItem, error)
	DeleteEpisode(ctx context.Context, id string) error
	PublishEpisode(ctx context.Context, id, group string) error
	UnpublishEpisode(ctx context.Context, id, group string) error
}
