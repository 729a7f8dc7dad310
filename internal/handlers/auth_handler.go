package handlers

import (
	"time"

	"orderdesk/internal/middleware"
	"orderdesk/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService  *services.AuthService
	validate     *validator.Validate
	storeTimeout time.Duration
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, storeTimeout time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		validate:     validator.New(),
		storeTimeout: storeTimeout,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
// authRequired guards the profile route only.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Get("/me", authRequired, h.HandleMe)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=50"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	DistributorName string `json:"distributorName" validate:"required,max=255"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" validate:"max=50"`
	Address         string `json:"address"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleRegister creates a distributor account and signs it in.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	session, err := h.authService.Register(ctx, services.NewUser{
		Username:        req.Username,
		Password:        req.Password,
		DistributorName: req.DistributorName,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.User,
	})
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil || h.validate.Struct(req) != nil {
		// Malformed and incomplete credentials get the same answer as wrong ones.
		return respondError(c, services.ErrInvalidCredentials)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	session, err := h.authService.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.User,
	})
}

// HandleMe returns the stored profile of the authenticated caller.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return respondError(c, services.ErrInvalidToken)
	}

	ctx, cancel := storeContext(c, h.storeTimeout)
	defer cancel()

	user, err := h.authService.Me(ctx, identity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
