package announcements

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/models"
	"github.com/fundmatch/backend/pkg/queue"
	"github.com/fundmatch/backend/pkg/response"
)

// Handler handles announcement endpoints (read + admin reclassify).
type Handler struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates an announcements handler.
func NewHandler(repo *Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, logger: logger}
}

// GetByID handles GET /announcements/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid announcement id")
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "announcement not found")
			return
		}
		response.Internal(c, "failed to load announcement")
		return
	}
	response.OK(c, a)
}

// ReclassifyRequest is the body for POST /announcements/:id/reclassify.
type ReclassifyRequest struct {
	Type string `json:"type" binding:"required"`
}

// Reclassify handles POST /announcements/:id/reclassify. A misclassification
// is a correctness bug, so every cached fingerprint referencing the
// announcement is invalidated immediately rather than left to expire.
func (h *Handler) Reclassify(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid announcement id")
		return
	}
	var body ReclassifyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "type required")
		return
	}
	if !models.ValidAnnouncementType(body.Type) {
		response.BadRequest(c, "unknown announcement type")
		return
	}

	a, err := h.repo.Reclassify(c.Request.Context(), id, body.Type)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "announcement not found")
			return
		}
		response.Internal(c, "failed to reclassify announcement")
		return
	}

	if err := h.queue.EnqueueInvalidation(c.Request.Context(), queue.JobTypeInvalidateAnnouncement,
		queue.InvalidationPayload{AnnouncementID: id, Reason: "reclassify"}); err != nil {
		// The reclassification is durable; without the job the cached
		// explanations only expire via TTL, so surface this loudly.
		h.logger.Error("enqueue reclassify invalidation failed",
			zap.Error(err), zap.String("announcement_id", id.String()))
	}

	response.OK(c, a)
}
