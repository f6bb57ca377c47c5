// This file implements the benchmark endpoints.
//
// API Endpoints:
//   - POST   /benchmarks/create - Store a benchmark (dedup by hash)
//   - GET    /benchmarks/load?benchmark_id= - Full benchmark with payload
//   - POST   /benchmarks/list - Headers matching a filter body
//   - PUT    /benchmarks/publish?benchmark_id=&publish_in=
//   - PUT    /benchmarks/unpublish?benchmark_id=&unpublish_from=
//   - DELETE /benchmarks/delete?benchmark_id= - Cascades to episodes
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/db"
	"github.com/benchvault/benchvault/internal/models"
)

// BenchmarkHandler handles benchmark requests.
type BenchmarkHandler struct {
	benchDB *db.BenchmarkDB
	eval    *access.Evaluator
}

// NewBenchmarkHandler creates a new benchmark handler.
func NewBenchmarkHandler(benchDB *db.BenchmarkDB, eval *access.Evaluator) *BenchmarkHandler {
	return &BenchmarkHandler{benchDB: benchDB, eval: eval}
}

// RegisterRoutes registers benchmark routes.
func (h *BenchmarkHandler) RegisterRoutes(router *gin.RouterGroup) {
	benchRoutes := router.Group("/benchmarks")
	{
		benchRoutes.POST("/create", h.Create)
		benchRoutes.GET("/load", h.Load)
		benchRoutes.POST("/list", h.List)
		benchRoutes.PUT("/publish", h.Publish)
		benchRoutes.PUT("/unpublish", h.Unpublish)
		benchRoutes.DELETE("/delete", h.Delete)
	}
}

// Create stores a benchmark. Conflicts when a benchmark with the same
// hash is already visible to the caller.
func (h *BenchmarkHandler) Create(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.eval.CheckScope(ctx, user, models.RightBenchmarkCreate, user.Username); err != nil {
		respondError(c, err)
		return
	}

	var query models.BenchmarkQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		respondValidation(c, err)
		return
	}

	scope, err := h.eval.Readable(ctx, user, models.RightBenchmarkRead)
	if err != nil {
		respondError(c, err)
		return
	}

	header, err := h.benchDB.CreateBenchmark(ctx, user.Username, scope, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, header)
}

// Load returns a full benchmark including its serialized payload.
func (h *BenchmarkHandler) Load(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "benchmark_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	bench, err := h.benchDB.LoadBenchmark(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckResource(ctx, user, models.RightBenchmarkRead, bench.CreatedBy, bench.PublishedIn); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bench)
}

// List returns benchmark headers matching the filter body, restricted to
// the caller's visibility inside the backend query.
func (h *BenchmarkHandler) List(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	scope, err := h.eval.Readable(ctx, user, models.RightBenchmarkRead)
	if err != nil {
		respondError(c, err)
		return
	}

	headers, err := h.benchDB.ListBenchmarks(ctx, user.Username, scope, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, headers)
}

// Publish adds the benchmark to a publication scope. Requires read access
// to the benchmark and BENCHMARK_CREATE within the target scope.
func (h *BenchmarkHandler) Publish(c *gin.Context) {
	h.updatePublication(c, "publish_in", models.RightBenchmarkCreate, h.benchDB.PublishBenchmark)
}

// Unpublish removes the benchmark from a publication scope. Requires
// BENCHMARK_DELETE within that scope.
func (h *BenchmarkHandler) Unpublish(c *gin.Context) {
	h.updatePublication(c, "unpublish_from", models.RightBenchmarkDelete, h.benchDB.UnpublishBenchmark)
}

func (h *BenchmarkHandler) updatePublication(c *gin.Context, groupParam string, right models.Right, op func(ctx context.Context, id, group string) error) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "benchmark_id")
	if !ok {
		return
	}
	group := c.DefaultQuery(groupParam, models.GlobalGroup)
	ctx := c.Request.Context()

	bench, err := h.benchDB.LoadBenchmark(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckResource(ctx, user, models.RightBenchmarkRead, bench.CreatedBy, bench.PublishedIn); err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckScope(ctx, user, right, group); err != nil {
		respondError(c, err)
		return
	}

	if err := op(ctx, id, group); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// Delete removes a benchmark and all its episodes. The owner is always
// allowed via the personal-group path; non-owners need BENCHMARK_DELETE
// in every current publication scope. Idempotent.
func (h *BenchmarkHandler) Delete(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "benchmark_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	bench, err := h.benchDB.LoadBenchmark(ctx, id)
	if err != nil {
		respondDeleted(c, err)
		return
	}
	if err := checkDelete(ctx, h.eval, user, models.RightBenchmarkDelete, bench.CreatedBy, bench.PublishedIn); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, h.benchDB.DeleteBenchmark(ctx, id))
}
