// Package client provides the API client for interacting with the ShaggyDog API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/shaggydog-ai/shaggydog/internal/api/v1/handlers"
	"github.com/shaggydog-ai/shaggydog/internal/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// User endpoints
	CreateUser(ctx context.Context, username, password string) (handlers.CreateUserResponse, error)
	Login(ctx context.Context, username, password string) (string, error)

	// Job endpoints
	SubmitJob(ctx context.Context, filename string, image []byte) (handlers.SubmitJobResponse, error)
	ListJobs(ctx context.Context) ([]handlers.JobSummary, error)
	GetJob(ctx context.Context, id uint) (handlers.JobDetail, error)
	StageImage(ctx context.Context, id uint, stage string) ([]byte, error)

	// SetToken sets the bearer token used on authenticated endpoints
	SetToken(token string)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL   string
	timeout   time.Duration
	authToken string
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	// Validate the base URL
	_, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: opts.Timeout,
	}, nil
}

// SetToken sets the bearer token used on authenticated endpoints
func (c *APIClient) SetToken(token string) {
	c.authToken = token
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	agent.Timeout(c.timeout)
	if c.authToken != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+c.authToken)
	}
	if body != nil {
		agent.JSON(body)
	}
	return agent, nil
}

// do executes the agent and decodes the JSON response into out
func (c *APIClient) do(agent *fiber.Agent, out interface{}) error {
	status, data, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %v", errs[0])
	}
	if status >= 400 {
		var apiErr handlers.ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", status, apiErr.Error)
		}
		return fmt.Errorf("API error (%d)", status)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// HealthCheck checks the health of the API server
func (c *APIClient) HealthCheck(_ context.Context) (map[string]string, error) {
	agent, err := c.createAgent(http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	var out map[string]string
	return out, c.do(agent, &out)
}

// CreateUser registers a new user
func (c *APIClient) CreateUser(_ context.Context, username, password string) (handlers.CreateUserResponse, error) {
	agent, err := c.createAgent(http.MethodPost, routes.APIv1Prefix+"/users", handlers.CredentialsParams{
		Username: username,
		Password: password,
	})
	if err != nil {
		return handlers.CreateUserResponse{}, err
	}
	var out handlers.CreateUserResponse
	return out, c.do(agent, &out)
}

// Login authenticates and stores the issued token on the client
func (c *APIClient) Login(_ context.Context, username, password string) (string, error) {
	agent, err := c.createAgent(http.MethodPost, routes.APIv1Prefix+"/users/login", handlers.CredentialsParams{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	var out handlers.LoginResponse
	if err := c.do(agent, &out); err != nil {
		return "", err
	}
	c.authToken = out.Token
	return out.Token, nil
}

// SubmitJob uploads a portrait and starts a transformation job
func (c *APIClient) SubmitJob(_ context.Context, filename string, image []byte) (handlers.SubmitJobResponse, error) {
	agent, err := c.createAgent(http.MethodPost, routes.APIv1Prefix+"/jobs", nil)
	if err != nil {
		return handlers.SubmitJobResponse{}, err
	}
	agent.FileData(&fiber.FormFile{
		Fieldname: "image",
		Name:      filename,
		Content:   image,
	}).MultipartForm(nil)

	var out handlers.SubmitJobResponse
	return out, c.do(agent, &out)
}

// ListJobs lists the caller's jobs, newest first
func (c *APIClient) ListJobs(_ context.Context) ([]handlers.JobSummary, error) {
	agent, err := c.createAgent(http.MethodGet, routes.APIv1Prefix+"/jobs", nil)
	if err != nil {
		return nil, err
	}
	var out []handlers.JobSummary
	return out, c.do(agent, &out)
}

// GetJob fetches one job with per-stage readiness
func (c *APIClient) GetJob(_ context.Context, id uint) (handlers.JobDetail, error) {
	agent, err := c.createAgent(http.MethodGet, fmt.Sprintf("%s/jobs/%d", routes.APIv1Prefix, id), nil)
	if err != nil {
		return handlers.JobDetail{}, err
	}
	var out handlers.JobDetail
	return out, c.do(agent, &out)
}

// StageImage fetches the bytes of one stage. A nil slice means the stage has
// not completed yet.
func (c *APIClient) StageImage(_ context.Context, id uint, stage string) ([]byte, error) {
	agent, err := c.createAgent(http.MethodGet, fmt.Sprintf("%s/jobs/%d/images/%s", routes.APIv1Prefix, id, stage), nil)
	if err != nil {
		return nil, err
	}

	status, data, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("request failed: %v", errs[0])
	}
	if status == fiber.StatusNoContent {
		return nil, nil
	}
	if status >= 400 {
		var apiErr handlers.ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", status, apiErr.Error)
		}
		return nil, fmt.Errorf("API error (%d)", status)
	}
	return data, nil
}
