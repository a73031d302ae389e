package handlers

import (
	"restaurante/internal/models"
	"restaurante/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for operator authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the public authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/login", h.HandleLogin)
}

// RegisterAdminRoutes registers operator management on a router that
// already requires a valid operator token.
func (h *AuthHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Post("/operators", h.HandleRegister)
}

// HandleRegister creates a new operator account. Only an authenticated
// operator can add another one.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var operator models.Operator
	if err := c.BodyParser(&operator); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(operator); err != nil {
		return validationFailed(c, err)
	}

	if err := h.authService.RegisterOperator(c.UserContext(), &operator); err != nil {
		return respondError(c, err, "Registration failed")
	}

	operator.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Operator registered successfully",
		"operator": operator,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates an operator and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	token, err := h.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return respondError(c, err, "Authentication failed")
	}
	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}
