package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shaggydog-ai/shaggydog/internal/db/models"
	"github.com/shaggydog-ai/shaggydog/internal/db/repos"
	"github.com/shaggydog-ai/shaggydog/internal/vision"
)

// fakeVision is a scripted capability implementation. Analysis answers are
// consumed in order; generation and fetch succeed unless configured otherwise.
type fakeVision struct {
	mu            sync.Mutex
	analyzeOut    []string
	analyzeErr    error
	generateErr   func(prompt string) error
	fetchErr      error
	analyzeCalls  int
	generateCalls int
	fetchCalls    int
}

var _ vision.API = &fakeVision{}

func (f *fakeVision) AnalyzeImage(_ context.Context, _ vision.AnalysisRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	if f.analyzeErr != nil {
		return "", f.analyzeErr
	}
	if len(f.analyzeOut) == 0 {
		return "", nil
	}
	out := f.analyzeOut[0]
	f.analyzeOut = f.analyzeOut[1:]
	return out, nil
}

func (f *fakeVision) GenerateImage(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.generateErr != nil {
		if err := f.generateErr(prompt); err != nil {
			return "", err
		}
	}
	return "https://images.example/" + strconv.Itoa(f.generateCalls), nil
}

func (f *fakeVision) FetchImage(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return []byte("img:" + url), nil
}

func (f *fakeVision) counts() (analyze, generate, fetch int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeCalls, f.generateCalls, f.fetchCalls
}

// defaultScript makes detection succeed with the given breed.
func defaultScript(breed string) []string {
	return []string{
		"Round face, warm brown tones, wavy hair, friendly expression.",
		fmt.Sprintf("BREED: %s\nREASONING: Round face and friendly expression.", breed),
	}
}

// TestSetup sets up an in-memory database and services for testing
type TestSetup struct {
	DB          *gorm.DB
	UserRepo    *repos.UserRepository
	JobRepo     *repos.JobRepository
	Vision      *fakeVision
	UserService *User
	JobService  *Job
	ctx         context.Context
}

// NewTestSetup creates a new test setup with in-memory database
func NewTestSetup(t *testing.T) *TestSetup {
	// Each test gets its own named in-memory SQLite database
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err, "Failed to create in-memory database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.StageImage{},
	)
	assert.NoError(t, err, "Failed to run migrations")

	userRepo := repos.NewUserRepository(db)
	jobRepo := repos.NewJobRepository(db)

	fake := &fakeVision{analyzeOut: defaultScript("Beagle")}

	userService := NewUserService(userRepo)
	jobService := NewJobService(jobRepo, NewDetector(fake), NewGenerator(fake), models.DefaultStageCount)

	return &TestSetup{
		DB:          db,
		UserRepo:    userRepo,
		JobRepo:     jobRepo,
		Vision:      fake,
		UserService: userService,
		JobService:  jobService,
		ctx:         context.Background(),
	}
}

// CleanUp cleans up resources after test
func (ts *TestSetup) CleanUp() {
	sqlDB, err := ts.DB.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

// createTestUser registers a user directly through the repository
func (ts *TestSetup) createTestUser(t *testing.T, username string) *models.User {
	user := &models.User{
		Username:     username,
		PasswordHash: "not-a-real-hash",
	}
	err := ts.UserRepo.Create(ts.ctx, user)
	assert.NoError(t, err)
	return user
}

// submitTestJob creates a processing job for the owner
func (ts *TestSetup) submitTestJob(t *testing.T, ownerID uint) *models.Job {
	job, err := ts.JobService.Submit(ts.ctx, ownerID, []byte("portrait-bytes"))
	assert.NoError(t, err)
	return job
}
