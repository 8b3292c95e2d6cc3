package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"muebles/internal/middleware"
	"muebles/internal/models"
	"muebles/internal/services"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		logger:      logger.Named("http"),
	}
}

// RegisterRoutes registers the public authentication routes and GET /auth/me
// behind the given auth middleware.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/admin/login", h.HandleAdminLogin)
	authRoutes.Get("/me", authRequired, h.HandleMe)
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var user models.User
	if err := c.BodyParser(&user); err != nil {
		return badBody(c, err)
	}

	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		return respondError(c, h.logger, "Could not register user", err)
	}

	// For security, do not return the password hash
	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles customer login and issues a token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	return h.login(c, models.RoleCustomer)
}

// HandleAdminLogin handles administrator login.
func (h *AuthHandler) HandleAdminLogin(c *fiber.Ctx) error {
	return h.login(c, models.RoleAdministrator)
}

func (h *AuthHandler) login(c *fiber.Ctx, role models.Role) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	result, err := h.authService.Login(c.UserContext(), role, req.Email, req.Password)
	if err != nil {
		return respondError(c, h.logger, "Authentication failed", err)
	}
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   result.Token,
		"user":    result.User,
	})
}

// HandleMe returns the authenticated caller.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return respondError(c, h.logger, "Authentication failed", models.ErrUnauthenticated)
	}
	return c.JSON(fiber.Map{"user": actor})
}
