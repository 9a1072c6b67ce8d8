package handlers

import "github.com/gofiber/fiber/v2"

// ErrorResponse is the body returned on every handler failure
type ErrorResponse struct {
	Error string `json:"error"`
}

func errResponse(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}
