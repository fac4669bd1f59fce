package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/mediagen/backend/internal/config"
	"github.com/mediagen/backend/internal/gemini"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/logger"
	"github.com/mediagen/backend/pkg/mediatoken"
	"github.com/mediagen/backend/pkg/utils"
	"gorm.io/gorm"
)

// fakeGenerator stands in for the upstream API. Every call is counted so
// tests can assert that a denied request never reached upstream.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	failNext  bool
	pollsLeft int
}

func (f *fakeGenerator) recordCall() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext {
		f.failNext = false
		return services.ErrUpstreamGeneration
	}
	return nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, req gemini.ImageRequest) (*gemini.Result, error) {
	if err := f.recordCall(); err != nil {
		return nil, err
	}
	return &gemini.Result{Data: []byte("fake-image"), MimeType: "image/png", Model: "test-image-model"}, nil
}

func (f *fakeGenerator) EditImage(ctx context.Context, req gemini.EditRequest) (*gemini.Result, error) {
	if err := f.recordCall(); err != nil {
		return nil, err
	}
	return &gemini.Result{Data: []byte("fake-edit"), MimeType: "image/png", Model: "test-image-model"}, nil
}

func (f *fakeGenerator) GenerateMusic(ctx context.Context, req gemini.MusicRequest) (*gemini.Result, error) {
	if err := f.recordCall(); err != nil {
		return nil, err
	}
	return &gemini.Result{Data: []byte("fake-audio"), MimeType: "audio/wav", Model: "test-music-model"}, nil
}

func (f *fakeGenerator) StartVideo(ctx context.Context, req gemini.VideoRequest) (string, error) {
	if err := f.recordCall(); err != nil {
		return "", err
	}
	return "operations/test-video-op", nil
}

func (f *fakeGenerator) PollVideo(ctx context.Context, operationID string) (*gemini.VideoPoll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollsLeft > 0 {
		f.pollsLeft--
		return &gemini.VideoPoll{Done: false, Progress: 50}, nil
	}
	return &gemini.VideoPoll{Done: true, Progress: 100, Data: []byte("fake-video"), MimeType: "video/mp4"}, nil
}

// memoryStorage is an in-process MediaStorage for tests.
type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Upload(ctx context.Context, objectName string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return nil
}

func (m *memoryStorage) Fetch(ctx context.Context, objectName string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *memoryStorage) Delete(ctx context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	auth      *services.AuthService
	quotas    *services.QuotaService
	admin     *services.AdminService
	generator *fakeGenerator
	storage   *memoryStorage
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		mediatoken.Configure("test-media-secret", 15*time.Minute)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.AdminLink{},
		&models.Session{},
		&models.Quota{},
		&models.UserTag{},
		&models.MediaRecord{},
		&models.GenerationJob{},
		&models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	quotaDefaults := config.QuotaConfig{
		DefaultImageLimit: 100,
		DefaultVideoLimit: 50,
		DefaultEditLimit:  100,
	}

	generator := &fakeGenerator{}
	storage := newMemoryStorage()

	quotaService := services.NewQuotaService(db, quotaDefaults)
	authService := services.NewAuthService(db, quotaService, 24*time.Hour)
	adminService := services.NewAdminService(db, quotaService)
	auditService := services.NewAuditService(db)
	generationService := services.NewGenerationService(db, quotaService, storage, generator, time.Millisecond, time.Second)

	t.Cleanup(auditService.Close)

	cfg := &config.Config{
		Gemini: config.GeminiConfig{
			ImageModel: "test-image-model",
			VideoModel: "test-video-model",
			MusicModel: "test-music-model",
		},
		Media:   config.MediaConfig{RetentionDays: 30},
		Session: config.SessionConfig{TTL: 24 * time.Hour},
	}

	authHandler := NewAuthHandler(db, authService, auditService)
	quotasHandler := NewQuotasHandler(quotaService, adminService, auditService)
	usersHandler := NewUsersHandler(db, adminService, quotaService, auditService)
	generateHandler := NewGenerateHandler(generationService)
	videoHandler := NewVideoHandler(generationService)
	mediaHandler := NewMediaHandler(db, authService, adminService, storage, auditService)
	metaHandler := NewMetaHandler(cfg)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("*"))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/set-password", authHandler.SetPassword)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	api.Get("/config", authMiddleware.RequireAuth, metaHandler.AppConfig)
	api.Get("/quotas/me", authMiddleware.RequireAuth, quotasHandler.Mine)

	generateRoutes := api.Group("/generate", authMiddleware.RequireAuth)
	generateRoutes.Post("/image", generateHandler.GenerateImage)
	generateRoutes.Post("/edit", generateHandler.EditImage)
	generateRoutes.Post("/music", generateHandler.GenerateMusic)
	generateRoutes.Post("/video", videoHandler.Generate)
	generateRoutes.Post("/animate", videoHandler.Animate)

	jobRoutes := api.Group("/jobs", authMiddleware.RequireAuth)
	jobRoutes.Get("/", videoHandler.ListJobs)
	jobRoutes.Get("/:jobId", videoHandler.GetJob)

	api.Get("/media/:id", mediaHandler.Get)

	mediaRoutes := api.Group("/media", authMiddleware.RequireAuth)
	mediaRoutes.Get("/", mediaHandler.List)
	mediaRoutes.Get("/:id/url", mediaHandler.URL)
	mediaRoutes.Delete("/:id", mediaHandler.Delete)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Post("/users", usersHandler.BulkCreate)
	adminRoutes.Get("/users", usersHandler.List)
	adminRoutes.Get("/users/:userId", usersHandler.Get)
	adminRoutes.Patch("/users/:userId", usersHandler.Update)
	adminRoutes.Put("/users/:userId/tags", usersHandler.SetTags)
	adminRoutes.Get("/users/:userId/generations", usersHandler.Generations)
	adminRoutes.Get("/users/:userId/quotas", quotasHandler.AdminGet)
	adminRoutes.Put("/users/:userId/quotas", quotasHandler.AdminUpdate)
	adminRoutes.Post("/users/:userId/quotas/reset", quotasHandler.AdminReset)
	adminRoutes.Get("/tags", usersHandler.AllTags)

	return &testEnv{
		app:       app,
		db:        db,
		auth:      authService,
		quotas:    quotaService,
		admin:     adminService,
		generator: generator,
		storage:   storage,
	}
}

// createTestUser inserts a user with a set password and an active session.
func createTestUser(t *testing.T, env *testEnv, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: &hash,
		Role:         role,
		IsActive:     true,
	}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}
	if err := env.quotas.EnsureDefaults(user.ID); err != nil {
		t.Fatalf("failed seeding quotas: %v", err)
	}

	return user, createTestSession(t, env, user)
}

func createTestSession(t *testing.T, env *testEnv, user *models.User) string {
	t.Helper()

	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	session := &models.Session{
		Token:          token,
		UserID:         user.ID,
		ExpiresAt:      time.Now().Add(24 * time.Hour),
		LastActivityAt: time.Now(),
	}
	if err := env.db.Create(session).Error; err != nil {
		t.Fatalf("failed creating test session: %v", err)
	}
	return token
}

// createManagedUser inserts a user owned by the given admin.
func createManagedUser(t *testing.T, env *testEnv, admin *models.User, email string) *models.User {
	t.Helper()

	user := &models.User{Email: email, Role: models.UserRoleUser, IsActive: true}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating managed user: %v", err)
	}
	if err := env.admin.Link(admin.ID, user.ID); err != nil {
		t.Fatalf("failed linking managed user: %v", err)
	}
	if err := env.quotas.EnsureDefaults(user.ID); err != nil {
		t.Fatalf("failed seeding quotas: %v", err)
	}
	return user
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	return data
}

func dataSlice(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %+v", body)
	}
	return data
}

func quotaRow(t *testing.T, env *testEnv, userID uuid.UUID, rt models.ResourceType) *models.Quota {
	t.Helper()
	var quota models.Quota
	if err := env.db.First(&quota, "user_id = ? AND resource_type = ?", userID, rt).Error; err != nil {
		t.Fatalf("failed loading quota row: %v", err)
	}
	return &quota
}

func setQuota(t *testing.T, env *testEnv, userID uuid.UUID, rt models.ResourceType, mode models.QuotaMode, limit, used int) {
	t.Helper()
	err := env.db.Model(&models.Quota{}).
		Where("user_id = ? AND resource_type = ?", userID, rt).
		Updates(map[string]interface{}{"mode": mode, "limit": limit, "used": used}).Error
	if err != nil {
		t.Fatalf("failed updating quota row: %v", err)
	}
}
