package matching

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/explain"
	"github.com/fundmatch/backend/internal/models"
	"github.com/fundmatch/backend/pkg/response"
)

// AnnouncementSource loads single announcements for explanation requests.
type AnnouncementSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error)
}

// Handler serves the match generation and explanation endpoints.
type Handler struct {
	service   *Service
	repo      *Repository
	explainer *explain.Service
	annSource AnnouncementSource
	profiles  ProfileStore
	logger    *zap.Logger
}

func NewHandler(service *Service, repo *Repository, explainer *explain.Service, anns AnnouncementSource, profiles ProfileStore, logger *zap.Logger) *Handler {
	return &Handler{
		service:   service,
		repo:      repo,
		explainer: explainer,
		annSource: anns,
		profiles:  profiles,
		logger:    logger,
	}
}

// Generate handles POST /organizations/:id/matches.
func (h *Handler) Generate(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}

	result, err := h.service.Generate(c.Request.Context(), orgID)
	if err != nil {
		var quotaErr *QuotaExceededError
		switch {
		case errors.As(err, &quotaErr):
			response.TooManyRequests(c, quotaErr.Usage, "generation quota exceeded")
		case errors.Is(err, models.ErrNotFound):
			response.NotFound(c, "organization not found")
		case errors.Is(err, models.ErrValidation):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("generation failed", zap.Error(err), zap.String("organization_id", orgID.String()))
			response.ServiceUnavailable(c, "generation failed, please retry")
		}
		return
	}

	response.OK(c, result)
}

// List handles GET /organizations/:id/matches.
func (h *Handler) List(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}

	matches, err := h.repo.ListByOrganization(c.Request.Context(), orgID, 0)
	if err != nil {
		h.logger.Error("list matches failed", zap.Error(err))
		response.Internal(c, "failed to list matches")
		return
	}
	if matches == nil {
		matches = []*models.Match{}
	}
	response.OK(c, matches)
}

// GetExplanation handles GET /matches/:id/explanation.
func (h *Handler) GetExplanation(c *gin.Context) {
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid match id")
		return
	}

	ctx := c.Request.Context()
	match, err := h.repo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "match not found")
			return
		}
		h.logger.Error("load match failed", zap.Error(err))
		response.Internal(c, "failed to load match")
		return
	}

	profile, err := h.profiles.GetProfile(ctx, match.OrganizationID)
	if err != nil {
		h.logger.Error("load profile failed", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}

	ann, err := h.annSource.GetByID(ctx, match.AnnouncementID)
	if err != nil {
		h.logger.Error("load announcement failed", zap.Error(err))
		response.Internal(c, "failed to load announcement")
		return
	}

	result, err := h.explainer.Explain(ctx, match, profile, ann)
	if err != nil {
		h.logger.Error("explanation failed", zap.Error(err))
		response.Internal(c, "failed to build explanation")
		return
	}
	response.OK(c, result)
}
