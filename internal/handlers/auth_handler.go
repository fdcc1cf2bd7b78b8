package handlers

import (
	"fmt"
	"log"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService   *services.AuthService
	authenticator *services.Authenticator
	validate      *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, authenticator *services.Authenticator) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		authenticator: authenticator,
		validate:      newValidator(),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/signup", h.HandleSignUp)
	authRoutes.Post("/signin", h.HandleSignIn)
	authRoutes.Post("/forgot-password", h.HandleForgotPassword)
	authRoutes.Post("/reset-password", h.HandleResetPassword)
	authRoutes.Get("/admin", middleware.RequireRole(h.authenticator, models.RoleAdmin), h.HandleAdminWelcome)
	authRoutes.Get("/user", middleware.RequireRole(h.authenticator, models.RoleUser), h.HandleUserWelcome)
}

// SignUpRequest represents the request body for registration.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
}

// HandleSignUp handles new user registration.
func (h *AuthHandler) HandleSignUp(c *fiber.Ctx) error {
	var req SignUpRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	user, err := h.authService.SignUp(c.UserContext(), services.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		return writeError(c, err, "Something went wrong during registration")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User Registered Successfully",
		"user":    user,
	})
}

// SignInRequest represents the request body for login.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleSignIn checks credentials and issues a token pair.
func (h *AuthHandler) HandleSignIn(c *fiber.Ctx) error {
	var req SignInRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	pair, err := h.authService.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		log.Printf("Sign-in failed for %s: %v", req.Email, err)
		return writeError(c, err, "Something went wrong during login")
	}
	return c.JSON(pair)
}

// ForgotPasswordRequest represents the request body for a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleForgotPassword issues a reset token and mails it.
func (h *AuthHandler) HandleForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	if err := h.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return writeError(c, err, "Failed to send password reset mail")
	}
	return c.JSON(fiber.Map{"message": "Password reset email sent"})
}

// ResetPasswordRequest represents the request body for redeeming a token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// HandleResetPassword redeems a reset token.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	if err := h.authService.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return writeError(c, err, "Failed to reset password")
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully."})
}

// HandleAdminWelcome greets an authenticated admin.
func (h *AuthHandler) HandleAdminWelcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": fmt.Sprintf("Welcome Admin %s", middleware.CurrentUser(c).Name)})
}

// HandleUserWelcome greets an authenticated user.
func (h *AuthHandler) HandleUserWelcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": fmt.Sprintf("Welcome User %s", middleware.CurrentUser(c).Name)})
}
