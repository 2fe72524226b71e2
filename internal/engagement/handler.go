package engagement

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/models"
	"github.com/fundmatch/backend/pkg/response"
)

// Store is the persistence surface the handler needs. *Repository
// satisfies it; tests substitute a fake.
type Store interface {
	SetSaved(ctx context.Context, matchID uuid.UUID, saved bool) (uuid.UUID, error)
	SetViewed(ctx context.Context, matchID uuid.UUID, viewed bool) error
	InsertAttributedSave(ctx context.Context, save *models.AttributedSave) error
}

type Handler struct {
	store  Store
	logger *zap.Logger
}

func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type saveRequest struct {
	Saved     *bool      `json:"saved"`
	SessionID *uuid.UUID `json:"session_id"`
	Position  *int       `json:"position"`
}

type viewRequest struct {
	Viewed *bool `json:"viewed"`
}

// Save handles POST /matches/:id/save. The saved flag defaults to true and
// can be set to false to un-save. When the client supplies the session and
// the 1-based display position alongside a save, the save is also attributed
// for ranking metrics; the flag update succeeds either way.
func (h *Handler) Save(c *gin.Context) {
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid match id")
		return
	}

	var req saveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	saved := req.Saved == nil || *req.Saved
	if (req.SessionID == nil) != (req.Position == nil) {
		response.BadRequest(c, "session_id and position must be supplied together")
		return
	}
	if req.SessionID != nil && !saved {
		response.BadRequest(c, "attribution applies only when saving")
		return
	}
	if req.Position != nil && *req.Position < 1 {
		response.BadRequest(c, "position must be >= 1")
		return
	}

	ctx := c.Request.Context()
	annID, err := h.store.SetSaved(ctx, matchID, saved)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "match not found")
			return
		}
		h.logger.Error("set saved failed", zap.Error(err))
		response.Internal(c, "failed to save match")
		return
	}

	if req.SessionID != nil {
		save := &models.AttributedSave{
			SessionID:      *req.SessionID,
			AnnouncementID: annID,
			Position:       *req.Position,
		}
		if err := h.store.InsertAttributedSave(ctx, save); err != nil {
			// The flag is already durable; losing one attribution degrades
			// metrics sample size, not correctness.
			h.logger.Error("save attribution failed",
				zap.Error(err),
				zap.String("session_id", req.SessionID.String()),
			)
		}
	}

	response.NoContent(c)
}

// View handles POST /matches/:id/view. The viewed flag defaults to true and
// can be set to false to reset it.
func (h *Handler) View(c *gin.Context) {
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid match id")
		return
	}

	var req viewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	viewed := req.Viewed == nil || *req.Viewed

	if err := h.store.SetViewed(c.Request.Context(), matchID, viewed); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "match not found")
			return
		}
		h.logger.Error("set viewed failed", zap.Error(err))
		response.Internal(c, "failed to record view")
		return
	}
	response.NoContent(c)
}
