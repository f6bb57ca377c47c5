// This file implements the episode endpoints.
//
// API Endpoints:
//   - POST   /episodes/record - Store an episode with its full tuple list
//   - POST   /episodes/list - Filter fields plus include_tuples in the body
//   - PUT    /episodes/publish?episode_id=&publish_in=
//   - PUT    /episodes/unpublish?episode_id=&unpublish_from=
//   - DELETE /episodes/delete?episode_id=
//
// An episode may only be published in a scope where its parent benchmark
// is also published.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/db"
	"github.com/benchvault/benchvault/internal/models"
)

// EpisodeHandler handles episode requests.
type EpisodeHandler struct {
	episodeDB *db.EpisodeDB
	benchDB   *db.BenchmarkDB
	eval      *access.Evaluator
}

// NewEpisodeHandler creates a new episode handler.
func NewEpisodeHandler(episodeDB *db.EpisodeDB, benchDB *db.BenchmarkDB, eval *access.Evaluator) *EpisodeHandler {
	return &EpisodeHandler{episodeDB: episodeDB, benchDB: benchDB, eval: eval}
}

// RegisterRoutes registers episode routes.
func (h *EpisodeHandler) RegisterRoutes(router *gin.RouterGroup) {
	episodeRoutes := router.Group("/episodes")
	{
		episodeRoutes.POST("/record", h.Record)
		episodeRoutes.POST("/list", h.List)
		episodeRoutes.PUT("/publish", h.Publish)
		episodeRoutes.PUT("/unpublish", h.Unpublish)
		episodeRoutes.DELETE("/delete", h.Delete)
	}
}

// Record stores an episode after checking the parent benchmark exists.
// The benchmark reference only needs a blanket BENCHMARK_READ capability,
// not visibility of the benchmark itself: recording against an id does
// not reveal its contents.
func (h *EpisodeHandler) Record(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.eval.CheckScope(ctx, user, models.RightEpisodeCreate, user.Username); err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckAny(ctx, user, models.RightBenchmarkRead); err != nil {
		respondError(c, err)
		return
	}

	var query models.EpisodeQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		respondValidation(c, err)
		return
	}

	if _, err := h.benchDB.LoadBenchmark(ctx, query.BenchmarkID); err != nil {
		respondError(c, err)
		return
	}

	header, err := h.episodeDB.RecordEpisode(ctx, user.Username, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, header)
}

// List returns episodes matching the inlined filter, with or without
// tuple payloads.
func (h *EpisodeHandler) List(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}

	var query models.EpisodeListQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		respondValidation(c, err)
		return
	}
	filter, err := query.Filter()
	if err != nil {
		respondValidation(c, err)
		return
	}
	ctx := c.Request.Context()

	scope, err := h.eval.Readable(ctx, user, models.RightEpisodeRead)
	if err != nil {
		respondError(c, err)
		return
	}

	episodes, err := h.episodeDB.ListEpisodes(ctx, user.Username, scope, filter, query.IncludeTuples)
	if err != nil {
		respondError(c, err)
		return
	}

	if query.IncludeTuples {
		c.JSON(http.StatusOK, episodes)
		return
	}
	headers := make([]models.EpisodeHeader, 0, len(episodes))
	for i := range episodes {
		headers = append(headers, episodes[i].Header())
	}
	c.JSON(http.StatusOK, headers)
}

// Publish adds the episode to a publication scope. The parent benchmark
// must already be published there.
func (h *EpisodeHandler) Publish(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "episode_id")
	if !ok {
		return
	}
	group := c.DefaultQuery("publish_in", models.GlobalGroup)
	ctx := c.Request.Context()

	episode, err := h.episodeDB.GetEpisode(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckResource(ctx, user, models.RightEpisodeRead, episode.CreatedBy, episode.PublishedIn); err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckScope(ctx, user, models.RightEpisodeCreate, group); err != nil {
		respondError(c, err)
		return
	}

	bench, err := h.benchDB.LoadBenchmark(ctx, episode.BenchmarkID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !contains(bench.PublishedIn, group) {
		respondError(c, apperrors.Forbidden("parent benchmark is not published in this scope"))
		return
	}

	if err := h.episodeDB.PublishEpisode(ctx, id, group); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// Unpublish removes the episode from a publication scope.
func (h *EpisodeHandler) Unpublish(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "episode_id")
	if !ok {
		return
	}
	group := c.DefaultQuery("unpublish_from", models.GlobalGroup)
	ctx := c.Request.Context()

	episode, err := h.episodeDB.GetEpisode(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckResource(ctx, user, models.RightEpisodeRead, episode.CreatedBy, episode.PublishedIn); err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckScope(ctx, user, models.RightEpisodeDelete, group); err != nil {
		respondError(c, err)
		return
	}

	if err := h.episodeDB.UnpublishEpisode(ctx, id, group); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// Delete removes an episode independently of its parent benchmark.
// Idempotent.
func (h *EpisodeHandler) Delete(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "episode_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	episode, err := h.episodeDB.GetEpisode(ctx, id)
	if err != nil {
		respondDeleted(c, err)
		return
	}
	if err := checkDelete(ctx, h.eval, user, models.RightEpisodeDelete, episode.CreatedBy, episode.PublishedIn); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, h.episodeDB.DeleteEpisode(ctx, id))
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
