package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/pkg/response"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Report handles GET /admin/metrics. Optional query params window_days and
// min_sample override the configured defaults for one read.
func (h *Handler) Report(c *gin.Context) {
	windowDays, ok := queryInt(c, "window_days")
	if !ok {
		response.BadRequest(c, "window_days must be a positive integer")
		return
	}
	minSample, ok := queryInt(c, "min_sample")
	if !ok {
		response.BadRequest(c, "min_sample must be a positive integer")
		return
	}

	report, err := h.service.ReportFor(c.Request.Context(), windowDays, minSample)
	if err != nil {
		h.logger.Error("metrics report failed", zap.Error(err))
		response.Internal(c, "failed to compute metrics")
		return
	}
	response.OK(c, report)
}

// queryInt parses an optional positive integer query param; 0 means absent.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
