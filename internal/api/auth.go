package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/marketlens/marketlens/internal/auth"
	"github.com/marketlens/marketlens/internal/models"
)

type SignupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company"`
	Industry   string `json:"industry"`
	WebsiteURL string `json:"website_url"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type AuthResponse struct {
	Token     string              `json:"token"`
	TokenType string              `json:"type"`
	Profile   *models.UserProfile `json:"profile"`
}

func (s *Server) handleSignup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validate required fields
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	s.logger.Info("Signup attempt", "email", req.Email)

	profile, err := s.auth.Signup(c.Context(), auth.SignupFields{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Company:    req.Company,
		Industry:   req.Industry,
		WebsiteURL: req.WebsiteURL,
	})
	if err != nil {
		return s.authErrorResponse(c, err)
	}

	token, err := s.issueToken(profile)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	s.startSession(profile)
	s.logger.Info("User signed up", "email", req.Email, "user_id", profile.ID)

	return c.Status(fiber.StatusCreated).JSON(AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		Profile:   profile,
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validate required fields
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email and password are required",
		})
	}

	s.logger.Info("Authentication attempt", "email", req.Email)

	profile, err := s.auth.Login(c.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		return s.authErrorResponse(c, err)
	}

	token, err := s.issueToken(profile)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	s.startSession(profile)
	s.logger.Info("User successfully authenticated", "email", req.Email)

	return c.JSON(AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		Profile:   profile,
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	s.stopSession()
	if err := s.auth.Logout(c.Context()); err != nil {
		// Local session markers are already cleared; report the remote failure.
		s.logger.Error("Logout error", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Sign-out did not complete on the auth service",
		})
	}
	return c.JSON(fiber.Map{"message": "Signed out"})
}

func (s *Server) handleResetPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required",
		})
	}

	if err := s.auth.ResetPassword(c.Context(), req.Email); err != nil {
		return s.authErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password reset email sent"})
}

func (s *Server) issueToken(profile *models.UserProfile) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   profile.ID,
		"email": profile.Email,
		"exp":   time.Now().Add(s.cfg.JWT.Expiration).Unix(),
		"iat":   time.Now().Unix(),
	})
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

// authErrorResponse maps a normalized AuthError to an HTTP response.
func (s *Server) authErrorResponse(c *fiber.Ctx, err error) error {
	ae, ok := auth.AsAuthError(err)
	if !ok {
		s.logger.Error("Unexpected auth error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Authentication service error",
		})
	}

	s.logger.Error("Auth error", "code", ae.Code, "error", err)
	switch ae.Code {
	case auth.CodeInvalidCredentials:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
			"code":  ae.Code,
		})
	case auth.CodeNoUser:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not signed in",
			"code":  ae.Code,
		})
	case auth.CodeUnsupportedInDemo:
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": ae.Message,
			"code":  ae.Code,
		})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": ae.Message,
			"code":  ae.Code,
		})
	}
}
