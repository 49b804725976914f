package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/gate"
	"github.com/marketlens/marketlens/internal/models"
)

func (s *Server) handleUsageStatus(c *fiber.Ctx) error {
	usageType, ok := models.ValidUsageType(c.Params("type"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown usage type",
		})
	}
	if s.auth.Current() == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not signed in",
			"code":  auth.CodeNoUser,
		})
	}

	status := s.ledger.CheckLimit(c.Context(), usageType)
	return c.JSON(fiber.Map{
		"usage_type": usageType,
		"status":     status,
	})
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	var req models.AnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}
	usageType, ok := models.UsageTypeForAnalysis(req.AnalysisType)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown analysis type",
		})
	}

	var result *models.AnalysisResult
	_, err := s.gate.Guard(c.Context(), usageType, func(ctx context.Context) error {
		r, err := s.analysis.Analyze(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if qe, ok := gate.AsQuotaExceeded(err); ok {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":            "Monthly limit reached",
				"usage_type":       qe.UsageType,
				"current":          qe.Current,
				"limit":            qe.Limit,
				"recommended_tier": qe.RecommendedTier,
			})
		}
		s.logger.Error("Analysis request failed", "error", err, "analysis_type", req.AnalysisType)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Analysis backend unavailable, please retry",
		})
	}

	return c.JSON(fiber.Map{
		"result": result,
		"usage":  s.ledger.CheckLimit(c.Context(), usageType),
	})
}
