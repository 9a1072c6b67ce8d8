package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shaggydog-ai/shaggydog/internal/api/v1/handlers"
	"github.com/shaggydog-ai/shaggydog/internal/api/v1/middleware"
	"github.com/shaggydog-ai/shaggydog/internal/api/v1/routes"
	"github.com/shaggydog-ai/shaggydog/internal/db/models"
	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
	"github.com/shaggydog-ai/shaggydog/internal/services"
	"github.com/shaggydog-ai/shaggydog/internal/vision"
)

// pngBytes is a valid PNG signature; enough for content sniffing.
var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)

// stubVision always detects a Beagle and generates placeholder bytes
type stubVision struct{}

func (stubVision) AnalyzeImage(_ context.Context, req vision.AnalysisRequest) (string, error) {
	if len(req.Image) > 0 {
		return "Round face, warm tones.", nil
	}
	return "BREED: Beagle\nREASONING: Round face.", nil
}

func (stubVision) GenerateImage(_ context.Context, _, _ string) (string, error) {
	return "https://images.example/stub", nil
}

func (stubVision) FetchImage(_ context.Context, _ string) ([]byte, error) {
	return []byte("generated-bytes"), nil
}

// apiTest wires a full application against an in-memory database. The worker
// pool is never started, so submitted jobs stay processing unless a test runs
// the pipeline itself.
type apiTest struct {
	app     *fiber.App
	jobRepo *repos.JobRepository
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Job{}, &models.StageImage{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	userRepo := repos.NewUserRepository(db)
	jobRepo := repos.NewJobRepository(db)
	userService := services.NewUserService(userRepo)
	jobService := services.NewJobService(jobRepo, services.NewDetector(stubVision{}), services.NewGenerator(stubVision{}), models.DefaultStageCount)
	pool := services.NewPool(jobService, 1)

	app := fiber.New()
	app.Use(middleware.Logger())
	routes.RegisterRoutes(
		app,
		handlers.NewUserHandler(userService),
		handlers.NewJobHandler(jobService, pool, handlers.DefaultMaxUploadSize),
		middleware.RequireAuth(userService),
	)

	return &apiTest{app: app, jobRepo: jobRepo}
}

func (a *apiTest) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (a *apiTest) doJSON(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return a.do(t, req)
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// registerAndLogin creates a user over the API and returns their token
func (a *apiTest) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	creds := handlers.CredentialsParams{Username: username, Password: "secret123"}

	resp := a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/users", "", creds)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/users/login", "", creds)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var login handlers.LoginResponse
	decodeBody(t, resp, &login)
	require.NotEmpty(t, login.Token)
	return login.Token
}

// submitImage uploads a file through the multipart endpoint
func (a *apiTest) submitImage(t *testing.T, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, routes.APIv1Prefix+"/jobs", &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return a.do(t, req)
}

func TestHealthCheck(t *testing.T) {
	a := newAPITest(t)

	resp := a.doJSON(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCreateUser_Validation(t *testing.T) {
	a := newAPITest(t)

	resp := a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/users", "", handlers.CredentialsParams{Username: "", Password: "secret123"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/users", "", handlers.CredentialsParams{Username: "alice", Password: "short"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateUser_Duplicate(t *testing.T) {
	a := newAPITest(t)
	creds := handlers.CredentialsParams{Username: "alice", Password: "secret123"}

	resp := a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/users", "", creds)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/users", "", creds)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestLogin_BadCredentials(t *testing.T) {
	a := newAPITest(t)
	a.registerAndLogin(t, "alice")

	resp := a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/users/login", "", handlers.CredentialsParams{Username: "alice", Password: "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJobs_RequireAuth(t *testing.T) {
	a := newAPITest(t)

	resp := a.doJSON(t, http.MethodGet, routes.APIv1Prefix+"/jobs", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = a.doJSON(t, http.MethodGet, routes.APIv1Prefix+"/jobs", "not-a-real-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitJob_Validation(t *testing.T) {
	a := newAPITest(t)
	token := a.registerAndLogin(t, "alice")

	// No file
	resp := a.doJSON(t, http.MethodPost, routes.APIv1Prefix+"/jobs", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Disallowed extension
	resp = a.submitImage(t, token, "portrait.bmp", pngBytes)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Extension lies about the content
	resp = a.submitImage(t, token, "portrait.png", []byte("plain text, not an image"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitJob_Accepted(t *testing.T) {
	a := newAPITest(t)
	token := a.registerAndLogin(t, "alice")

	resp := a.submitImage(t, token, "portrait.png", pngBytes)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var submitted handlers.SubmitJobResponse
	decodeBody(t, resp, &submitted)
	assert.NotZero(t, submitted.JobID)
	assert.Equal(t, models.JobStatusProcessing, submitted.Status)
}

func TestGetJob_ReadinessAndScoping(t *testing.T) {
	a := newAPITest(t)
	token := a.registerAndLogin(t, "alice")

	resp := a.submitImage(t, token, "portrait.png", pngBytes)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	var submitted handlers.SubmitJobResponse
	decodeBody(t, resp, &submitted)

	// Fresh job: only the original is ready
	resp = a.doJSON(t, http.MethodGet, fmt.Sprintf("%s/jobs/%d", routes.APIv1Prefix, submitted.JobID), token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var detail handlers.JobDetail
	decodeBody(t, resp, &detail)
	assert.Equal(t, models.JobStatusProcessing, detail.Status)
	assert.Equal(t, map[string]bool{
		"original":    true,
		"transition1": false,
		"transition2": false,
		"final":       false,
	}, detail.Stages)

	// After a stage completes its slot flips to ready
	require.NoError(t, a.jobRepo.SetStageImage(context.Background(), submitted.JobID, 0, []byte("generated-bytes")))
	resp = a.doJSON(t, http.MethodGet, fmt.Sprintf("%s/jobs/%d", routes.APIv1Prefix, submitted.JobID), token, nil)
	decodeBody(t, resp, &detail)
	assert.True(t, detail.Stages["transition1"])

	// Another user cannot see the job
	otherToken := a.registerAndLogin(t, "bob")
	resp = a.doJSON(t, http.MethodGet, fmt.Sprintf("%s/jobs/%d", routes.APIv1Prefix, submitted.JobID), otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// A missing job is distinguishable from a forbidden one
	resp = a.doJSON(t, http.MethodGet, routes.APIv1Prefix+"/jobs/9999", token, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetStageImage(t *testing.T) {
	a := newAPITest(t)
	token := a.registerAndLogin(t, "alice")

	resp := a.submitImage(t, token, "portrait.png", pngBytes)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	var submitted handlers.SubmitJobResponse
	decodeBody(t, resp, &submitted)

	// The original is served back immediately
	resp = a.doJSON(t, http.MethodGet, fmt.Sprintf("%s/jobs/%d/images/original", routes.APIv1Prefix, submitted.JobID), token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, body)

	// A pending stage yields no content rather than an error
	resp = a.doJSON(t, http.MethodGet, fmt.Sprintf("%s/jobs/%d/images/final", routes.APIv1Prefix, submitted.JobID), token, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// A completed stage is served with its sniffed content type
	require.NoError(t, a.jobRepo.SetStageImage(context.Background(), submitted.JobID, models.DefaultStageCount-1, pngBytes))
	resp = a.doJSON(t, http.MethodGet, fmt.Sprintf("%s/jobs/%d/images/final", routes.APIv1Prefix, submitted.JobID), token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))

	// Unknown stage names are rejected
	resp = a.doJSON(t, http.MethodGet, fmt.Sprintf("%s/jobs/%d/images/bogus", routes.APIv1Prefix, submitted.JobID), token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListJobs(t *testing.T) {
	a := newAPITest(t)
	token := a.registerAndLogin(t, "alice")

	for i := 0; i < 2; i++ {
		resp := a.submitImage(t, token, "portrait.png", pngBytes)
		require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	}

	resp := a.doJSON(t, http.MethodGet, routes.APIv1Prefix+"/jobs", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var jobs []handlers.JobSummary
	decodeBody(t, resp, &jobs)
	assert.Len(t, jobs, 2)

	// Another user's listing is empty
	otherToken := a.registerAndLogin(t, "bob")
	resp = a.doJSON(t, http.MethodGet, routes.APIv1Prefix+"/jobs", otherToken, nil)
	decodeBody(t, resp, &jobs)
	assert.Empty(t, jobs)
}

func TestDeleteUser(t *testing.T) {
	a := newAPITest(t)
	token := a.registerAndLogin(t, "alice")

	resp := a.submitImage(t, token, "portrait.png", pngBytes)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp = a.doJSON(t, http.MethodDelete, routes.APIv1Prefix+"/users", token, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// The token dies with the account
	resp = a.doJSON(t, http.MethodGet, routes.APIv1Prefix+"/jobs", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
