package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/shaggydog-ai/shaggydog/internal/api/v1/middleware"
	"github.com/shaggydog-ai/shaggydog/internal/db/models"
	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
	"github.com/shaggydog-ai/shaggydog/internal/services"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	service *services.User
}

// NewUserHandler creates a new user handler instance
func NewUserHandler(s *services.User) *UserHandler {
	return &UserHandler{service: s}
}

// CredentialsParams defines the parameters for registration and login
type CredentialsParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate validates the credential parameters
func (p CredentialsParams) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("%s", strings.ToLower(ErrMsgUsernameRequired))
	}
	if len(p.Password) < models.MinPasswordLength {
		return fmt.Errorf("%s", strings.ToLower(ErrMsgPasswordTooShort))
	}
	return nil
}

// CreateUserResponse is returned after a successful registration
type CreateUserResponse struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	Token string `json:"token"`
}

// CreateUser handles the request to register a new user
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var params CredentialsParams
	if err := c.BodyParser(&params); err != nil {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgInvalidReqFormat)
	}
	if err := params.Validate(); err != nil {
		return errResponse(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.Register(c.Context(), strings.TrimSpace(params.Username), params.Password)
	if errors.Is(err, repos.ErrUsernameTaken) {
		return errResponse(c, fiber.StatusConflict, ErrMsgUsernameTaken)
	}
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, ErrMsgCreateUserFailed)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateUserResponse{
		UserID:   user.ID,
		Username: user.Username,
	})
}

// Login handles the request to authenticate and issue an API token
func (h *UserHandler) Login(c *fiber.Ctx) error {
	var params CredentialsParams
	if err := c.BodyParser(&params); err != nil {
		return errResponse(c, fiber.StatusBadRequest, ErrMsgInvalidReqFormat)
	}

	token, err := h.service.Authenticate(c.Context(), strings.TrimSpace(params.Username), params.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		return errResponse(c, fiber.StatusUnauthorized, ErrMsgInvalidCredentials)
	}
	if err != nil {
		return errResponse(c, fiber.StatusInternalServerError, ErrMsgInvalidCredentials)
	}

	return c.JSON(LoginResponse{Token: token})
}

// DeleteUser handles the request to delete the authenticated user's own
// account, cascading to every job they own.
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	ownerID := middleware.OwnerID(c)
	if ownerID == 0 {
		return errResponse(c, fiber.StatusUnauthorized, ErrMsgUserIDRequired)
	}

	if err := h.service.Delete(c.Context(), ownerID); err != nil {
		return errResponse(c, fiber.StatusInternalServerError, ErrMsgDeleteUserFailed)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
