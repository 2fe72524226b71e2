package cachewarm

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/pkg/response"
)

type Handler struct {
	controller *Controller
	logger     *zap.Logger
}

func NewHandler(controller *Controller, logger *zap.Logger) *Handler {
	return &Handler{controller: controller, logger: logger}
}

type warmRequest struct {
	Strategy        string      `json:"strategy"`
	OrganizationID  *uuid.UUID  `json:"organization_id"`
	AnnouncementIDs []uuid.UUID `json:"announcement_ids"`
}

// Warm handles POST /admin/cache/warm.
func (h *Handler) Warm(c *gin.Context) {
	var req warmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if !ValidStrategy(req.Strategy) {
		response.BadRequest(c, "strategy must be one of organization, programs, smart, full")
		return
	}

	params := Params{Strategy: req.Strategy, AnnouncementIDs: req.AnnouncementIDs}
	if req.OrganizationID != nil {
		params.OrganizationID = *req.OrganizationID
	}
	switch {
	case req.Strategy == StrategyOrganization && params.OrganizationID == uuid.Nil:
		response.BadRequest(c, "organization strategy requires organization_id")
		return
	case req.Strategy == StrategyPrograms && len(params.AnnouncementIDs) == 0:
		response.BadRequest(c, "programs strategy requires announcement_ids")
		return
	}

	report, err := h.controller.Warm(c.Request.Context(), params)
	if err != nil {
		h.logger.Error("cache warm failed", zap.Error(err), zap.String("strategy", req.Strategy))
		response.Internal(c, "cache warm failed")
		return
	}
	response.OK(c, report)
}
