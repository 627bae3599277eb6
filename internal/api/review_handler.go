package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reviewloop/internal/orchestrator"
	"github.com/reviewloop/internal/remap"
)

// deviceIDHeader carries the opaque per-installation identifier used
// for quota bucketing. It is not authentication.
const deviceIDHeader = "X-Device-ID"

// ReviewRequest is the body of POST /api/v1/review. LineOffset and
// TotalLines are supplied together when the submitted code is a
// sub-range of a larger document; findings are then remapped to absolute
// lines and out-of-document findings dropped.
type ReviewRequest struct {
	Code        string `json:"code"`
	Model       string `json:"model,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	LineOffset  *int   `json:"lineOffset,omitempty"`
	TotalLines  *int   `json:"totalLines,omitempty"`
}

func (s *Server) handleReview(c echo.Context) error {
	deviceID := c.Request().Header.Get(deviceIDHeader)
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "missing " + deviceIDHeader + " header",
		})
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid body",
		})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "code is required",
		})
	}

	outcome, err := s.orch.Review(c.Request().Context(), orchestrator.Request{
		Code:        req.Code,
		Model:       req.Model,
		Instruction: req.Instruction,
		DeviceID:    deviceID,
	})
	if err != nil {
		var rateErr *orchestrator.RateLimitedError
		if errors.As(err, &rateErr) {
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"error":   "daily review limit reached",
				"limit":   rateErr.Limit,
				"used":    rateErr.Used,
				"resetAt": rateErr.ResetAt,
			})
		}

		var upstreamErr *orchestrator.UpstreamError
		if errors.As(err, &upstreamErr) {
			return c.JSON(http.StatusBadGateway, map[string]interface{}{
				"error":   "upstream completion error",
				"message": upstreamErr.Message,
			})
		}

		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	if outcome.Success && req.LineOffset != nil && req.TotalLines != nil {
		outcome.Content.Issues = remap.FilterFindings(
			outcome.Content.Issues, *req.LineOffset, *req.TotalLines)
	}

	return c.JSON(http.StatusOK, outcome)
}

// handleQuota reports the device's standing without consuming quota.
func (s *Server) handleQuota(c echo.Context) error {
	deviceID := c.Request().Header.Get(deviceIDHeader)
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "missing " + deviceIDHeader + " header",
		})
	}

	return c.JSON(http.StatusOK, s.limiter.Check(deviceID))
}
