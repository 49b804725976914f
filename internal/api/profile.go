package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/models"
)

type UpdateProfileRequest struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	Company          *string `json:"company"`
	Industry         *string `json:"industry"`
	WebsiteURL       *string `json:"website_url"`
	SubscriptionTier *string `json:"subscription_tier"`
}

func (s *Server) handleGetProfile(c *fiber.Ctx) error {
	profile := s.auth.Current()
	if profile == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not signed in",
			"code":  auth.CodeNoUser,
		})
	}
	return c.JSON(fiber.Map{"profile": profile})
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	patch := auth.ProfilePatch{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Company:    req.Company,
		Industry:   req.Industry,
		WebsiteURL: req.WebsiteURL,
	}
	if req.SubscriptionTier != nil {
		tier := models.SubscriptionTier(*req.SubscriptionTier)
		switch tier {
		case models.TierFree, models.TierProfessional, models.TierEnterprise:
			patch.SubscriptionTier = &tier
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown subscription tier",
			})
		}
	}

	profile, err := s.auth.UpdateProfile(c.Context(), patch)
	if err != nil {
		return s.authErrorResponse(c, err)
	}

	s.logger.Info("Profile updated", "user_id", profile.ID)
	return c.JSON(fiber.Map{"profile": profile})
}
