package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/mediagen/backend/internal/models"
)

func waitForJob(t *testing.T, env *testEnv, token, jobID string, want models.JobStatus) map[string]any {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := performJSONRequest(t, env.app, http.MethodGet, "/api/jobs/"+jobID, nil, authHeaders(token))
		assertStatus(t, resp, http.StatusOK)
		data := dataMap(t, decodeJSONMap(t, resp))
		if models.JobStatus(data["status"].(string)) == want {
			return data
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestVideoJobLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "alice@example.com", "Password1", models.UserRoleUser)
	env.generator.pollsLeft = 2

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/generate/video", map[string]any{
		"prompt": "waves crashing on a cliff",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusAccepted)

	data := dataMap(t, decodeJSONMap(t, resp))
	jobID := data["id"].(string)
	if models.JobStatus(data["status"].(string)) != models.JobStatusQueued {
		t.Fatalf("expected a queued job, got %+v", data)
	}

	done := waitForJob(t, env, token, jobID, models.JobStatusCompleted)
	if done["mediaID"] == nil {
		t.Fatalf("completed job must reference its media record, got %+v", done)
	}

	var record models.MediaRecord
	if err := env.db.First(&record, "owner_id = ? AND type = ?", user.ID, models.MediaTypeVideo).Error; err != nil {
		t.Fatalf("expected video media row: %v", err)
	}

	// Quota is consumed on completion, not submission.
	if quotaRow(t, env, user.ID, models.ResourceVideo).Used != 1 {
		t.Fatal("expected video quota used=1 after completion")
	}
}

func TestVideoJobDeniedAtLimit(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "alice@example.com", "Password1", models.UserRoleUser)
	setQuota(t, env, user.ID, models.ResourceVideo, models.QuotaModeLimited, 1, 1)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/generate/video", map[string]any{
		"prompt": "denied",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusTooManyRequests)

	if env.generator.callCount() != 0 {
		t.Fatal("denied submission must not reach upstream")
	}
	var jobs int64
	env.db.Model(&models.GenerationJob{}).Where("user_id = ?", user.ID).Count(&jobs)
	if jobs != 0 {
		t.Fatal("denied submission must not create a job row")
	}
}

func TestVideoJobFailureConsumesNothing(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "alice@example.com", "Password1", models.UserRoleUser)
	env.generator.failNext = true

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/generate/video", map[string]any{
		"prompt": "doomed",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusAccepted)

	data := dataMap(t, decodeJSONMap(t, resp))
	failed := waitForJob(t, env, token, data["id"].(string), models.JobStatusFailed)
	if failed["error"] == nil || failed["error"] == "" {
		t.Fatalf("failed job must carry an error message, got %+v", failed)
	}

	if quotaRow(t, env, user.ID, models.ResourceVideo).Used != 0 {
		t.Fatal("failed job must not consume quota")
	}
}

func TestAnimateRequiresFirstFrame(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "alice@example.com", "Password1", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/generate/animate", map[string]any{
		"prompt": "bring it to life",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestJobsAreOwnerScoped(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env, "alice@example.com", "Password1", models.UserRoleUser)
	_, bobToken := createTestUser(t, env, "bob@example.com", "Password1", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/generate/video", map[string]any{
		"prompt": "private footage",
	}, authHeaders(aliceToken))
	assertStatus(t, resp, http.StatusAccepted)
	data := dataMap(t, decodeJSONMap(t, resp))
	jobID := data["id"].(string)

	foreign := performJSONRequest(t, env.app, http.MethodGet, "/api/jobs/"+jobID, nil, authHeaders(bobToken))
	assertStatus(t, foreign, http.StatusNotFound)

	list := performJSONRequest(t, env.app, http.MethodGet, "/api/jobs/", nil, authHeaders(bobToken))
	assertStatus(t, list, http.StatusOK)
	if rows := dataSlice(t, decodeJSONMap(t, list)); len(rows) != 0 {
		t.Fatalf("expected no jobs for bob, got %d", len(rows))
	}
}
