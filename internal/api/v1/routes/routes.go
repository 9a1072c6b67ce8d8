// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/shaggydog-ai/shaggydog/internal/api/v1/handlers"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Smallest scope first (i.e. user routes before job routes)
2. Order routes in GET, POST, PUT, DELETE order.
	a. Within this ordering, param urls (ie /:id) should go last, otherwise fiber will interpret the route slug as that param.
3. For clarity, naming should match the action (i.e. GetJob, SubmitJob)

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check
	HealthCheck = "HealthCheck"

	// User routes
	CreateUser = "CreateUser"
	LoginUser  = "LoginUser"
	DeleteUser = "DeleteUser"

	// Job routes
	ListJobs      = "ListJobs"
	GetJob        = "GetJob"
	GetStageImage = "GetStageImage"
	SubmitJob     = "SubmitJob"
)

// RegisterRoutes configures all the v1 routes
//
// NOTE: route ordering is important because routes will try and match in the
// order they are registered.
func RegisterRoutes(
	app *fiber.App,
	userHandler *handlers.UserHandler,
	jobHandler *handlers.JobHandler,
	requireAuth fiber.Handler,
) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	v1 := app.Group(APIv1Prefix)

	// User routes; registration and login are the only unauthenticated
	// endpoints.
	users := v1.Group("/users")
	users.Post("/", userHandler.CreateUser).Name(CreateUser)
	users.Post("/login", userHandler.Login).Name(LoginUser)
	users.Delete("/", requireAuth, userHandler.DeleteUser).Name(DeleteUser)

	// Job routes
	jobs := v1.Group("/jobs", requireAuth)
	jobs.Get("/", jobHandler.ListJobs).Name(ListJobs)
	jobs.Get("/:id", jobHandler.GetJob).Name(GetJob)
	jobs.Get("/:id/images/:stage", jobHandler.GetStageImage).Name(GetStageImage)
	jobs.Post("/", jobHandler.SubmitJob).Name(SubmitJob)
}
