package explain

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/pkg/response"
)

// AdminHandler exposes targeted cache invalidation for operators. The worker
// performs the same eviction asynchronously on profile updates and
// reclassifications; these endpoints are the manual override.
type AdminHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewAdminHandler(service *Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

type invalidationResult struct {
	Evicted int `json:"evicted"`
}

// InvalidateOrganization handles POST /admin/invalidate/organizations/:id.
func (h *AdminHandler) InvalidateOrganization(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	evicted, err := h.service.InvalidateOrganization(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("organization invalidation failed", zap.Error(err), zap.String("organization_id", id.String()))
		response.Internal(c, "invalidation failed")
		return
	}
	response.OK(c, invalidationResult{Evicted: evicted})
}

// InvalidateAnnouncement handles POST /admin/invalidate/announcements/:id.
func (h *AdminHandler) InvalidateAnnouncement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid announcement id")
		return
	}
	evicted, err := h.service.InvalidateAnnouncement(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("announcement invalidation failed", zap.Error(err), zap.String("announcement_id", id.String()))
		response.Internal(c, "invalidation failed")
		return
	}
	response.OK(c, invalidationResult{Evicted: evicted})
}
