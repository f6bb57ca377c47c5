// This file implements the artifact endpoints.
//
// API Endpoints:
//   - POST   /artifacts/upload - Multipart: file part "data", form field
//     "metadata" (JSON). Content-addressed; identical bytes are idempotent.
//   - GET    /artifacts/download?artifact_id= - Raw bytes body, metadata
//     JSON in the X-Metadata response header
//   - POST   /artifacts/list - Metadata items matching a filter body
//   - PUT    /artifacts/publish?artifact_id=&publish_in=
//   - PUT    /artifacts/unpublish?artifact_id=&unpublish_from=
//   - DELETE /artifacts/delete?artifact_id=
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benchvault/benchvault/internal/access"
	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/db"
	"github.com/benchvault/benchvault/internal/models"
)

// ArtifactHandler handles artifact requests.
type ArtifactHandler struct {
	artifactDB *db.ArtifactDB
	eval       *access.Evaluator
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(artifactDB *db.ArtifactDB, eval *access.Evaluator) *ArtifactHandler {
	return &ArtifactHandler{artifactDB: artifactDB, eval: eval}
}

// RegisterRoutes registers artifact routes.
func (h *ArtifactHandler) RegisterRoutes(router *gin.RouterGroup) {
	artifactRoutes := router.Group("/artifacts")
	{
		artifactRoutes.POST("/upload", h.Upload)
		artifactRoutes.GET("/download", h.Download)
		artifactRoutes.POST("/list", h.List)
		artifactRoutes.PUT("/publish", h.Publish)
		artifactRoutes.PUT("/unpublish", h.Unpublish)
		artifactRoutes.DELETE("/delete", h.Delete)
	}
}

// Upload stores a blob with its metadata.
func (h *ArtifactHandler) Upload(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.eval.CheckScope(ctx, user, models.RightArtifactCreate, user.Username); err != nil {
		respondError(c, err)
		return
	}

	fileHeader, err := c.FormFile("data")
	if err != nil {
		respondValidation(c, err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondValidation(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(c, apperrors.Storage("read upload failed", err))
		return
	}

	var metadata models.ArtifactMetadata
	if raw := c.PostForm("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			respondValidation(c, err)
			return
		}
	}

	item, err := h.artifactDB.StoreArtifact(ctx, user.Username, data, metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Download streams the blob; the metadata rides in the X-Metadata header.
func (h *ArtifactHandler) Download(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "artifact_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	item, data, err := h.artifactDB.LoadArtifact(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckResource(ctx, user, models.RightArtifactRead, item.CreatedBy, item.PublishedIn); err != nil {
		respondError(c, err)
		return
	}

	meta, err := json.Marshal(item)
	if err != nil {
		respondError(c, apperrors.Storage("metadata serialization failed", err))
		return
	}
	c.Header("X-Metadata", string(meta))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// List returns artifact metadata items matching the filter body.
func (h *ArtifactHandler) List(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	scope, err := h.eval.Readable(ctx, user, models.RightArtifactRead)
	if err != nil {
		respondError(c, err)
		return
	}

	items, err := h.artifactDB.ListArtifacts(ctx, user.Username, scope, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Publish adds the artifact to a publication scope.
func (h *ArtifactHandler) Publish(c *gin.Context) {
	h.updatePublication(c, "publish_in", models.RightArtifactCreate, h.artifactDB.PublishArtifact)
}

// Unpublish removes the artifact from a publication scope.
func (h *ArtifactHandler) Unpublish(c *gin.Context) {
	h.updatePublication(c, "unpublish_from", models.RightArtifactDelete, h.artifactDB.UnpublishArtifact)
}

func (h *ArtifactHandler) updatePublication(c *gin.Context, groupParam string, right models.Right, op func(ctx context.Context, id, group string) error) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "artifact_id")
	if !ok {
		return
	}
	group := c.DefaultQuery(groupParam, models.GlobalGroup)
	ctx := c.Request.Context()

	item, err := h.artifactDB.GetMetadata(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.eval.CheckResource(ctx, user, models.RightArtifactRead, item.CreatedBy, item.PublishedIn); err != nil {
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

// Delete removes the artifact metadata and blob. Idempotent.
func (h *ArtifactHandler) Delete(c *gin.Context) {
	user, ok := caller(c)
	if !ok {
		return
	}
	id, ok := requiredQuery(c, "artifact_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	item, err := h.artifactDB.GetMetadata(ctx, id)
	if err != nil {
		respondDeleted(c, err)
		return
	}
	if err := checkDelete(ctx, h.eval, user, models.RightArtifactDelete, item.CreatedBy, item.PublishedIn); err != nil {
		respondError(c, err)
		return
	}
	respondDeleted(c, h.artifactDB.DeleteArtifact(ctx, id))
}
