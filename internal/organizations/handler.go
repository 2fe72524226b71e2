package organizations

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/models"
	"github.com/fundmatch/backend/pkg/queue"
	"github.com/fundmatch/backend/pkg/response"
)

// Handler handles organization profile endpoints.
type Handler struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, queue: q, logger: logger}
}

// GetProfile handles GET /organizations/:id.
func (h *Handler) GetProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	profile, err := h.repo.GetProfile(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, profile)
}

// UpdateProfileRequest is the body for PUT /organizations/:id.
type UpdateProfileRequest struct {
	Name               string   `json:"name" binding:"required"`
	Type               string   `json:"type" binding:"required"`
	IndustrySector     string   `json:"industry_sector"`
	EmployeeCountBand  string   `json:"employee_count_band"`
	TRL                *int     `json:"technology_readiness_level"`
	RDExperience       bool     `json:"rd_experience"`
	BusinessStructure  string   `json:"business_structure"`
	Certifications     []string `json:"certifications"`
	ResearchFocusAreas []string `json:"research_focus_areas"`
}

// UpdateProfile handles PUT /organizations/:id. The mutation bumps
// updated_at and enqueues invalidation of every cached fingerprint for the
// organization; prior match results for a materially changed profile are
// superseded on the next generation run.
func (h *Handler) UpdateProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	var body UpdateProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and type required")
		return
	}

	profile := &models.OrganizationProfile{
		ID:                 id,
		Name:               body.Name,
		Type:               body.Type,
		IndustrySector:     body.IndustrySector,
		EmployeeCountBand:  body.EmployeeCountBand,
		TRL:                body.TRL,
		RDExperience:       body.RDExperience,
		BusinessStructure:  body.BusinessStructure,
		Certifications:     body.Certifications,
		ResearchFocusAreas: body.ResearchFocusAreas,
	}
	if err := profile.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.repo.UpdateProfile(c.Request.Context(), profile); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		response.Internal(c, "failed to update profile")
		return
	}

	if err := h.queue.EnqueueInvalidation(c.Request.Context(), queue.JobTypeInvalidateOrganization,
		queue.InvalidationPayload{OrganizationID: id, Reason: "profile_update"}); err != nil {
		// The update itself succeeded; stale explanations expire via TTL at worst.
		h.logger.Error("enqueue profile invalidation failed",
			zap.Error(err), zap.String("organization_id", id.String()))
	}

	response.OK(c, profile)
}
