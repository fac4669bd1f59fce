package handlers

import (
	"net/http"
	"testing"

	"github.com/mediagen/backend/internal/models"
)

func TestQuotasMineCreatesDefaults(t *testing.T) {
	env := setupTestEnv(t)
	admin, _ := createTestUser(t, env, "admin@example.com", "Password1", models.UserRoleAdmin)
	user := createManagedUser(t, env, admin, "user@example.com")

	// Drop the seeded rows to simulate a user predating quota tracking.
	env.db.Where("user_id = ?", user.ID).Delete(&models.Quota{})

	token := createTestSession(t, env, user)
	resp := performJSONRequest(t, env.app, http.MethodGet, "/api/quotas/me", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	rows := dataSlice(t, decodeJSONMap(t, resp))
	if len(rows) != 3 {
		t.Fatalf("expected 3 quota rows, got %d", len(rows))
	}
	limits := map[string]float64{}
	for _, row := range rows {
		entry := row.(map[string]any)
		limits[entry["resourceType"].(string)] = entry["limit"].(float64)
	}
	if limits["image"] != 100 || limits["video"] != 50 || limits["edit"] != 100 {
		t.Fatalf("unexpected default limits: %+v", limits)
	}
}

func TestAdminQuotaGetRequiresOwnership(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env, "owner@example.com", "Password1", models.UserRoleAdmin)
	_, otherToken := createTestUser(t, env, "other@example.com", "Password1", models.UserRoleAdmin)

	user := createManagedUser(t, env, owner, "user@example.com")

	owned := performJSONRequest(t, env.app, http.MethodGet, "/api/admin/users/"+user.ID.String()+"/quotas", nil, authHeaders(ownerToken))
	assertStatus(t, owned, http.StatusOK)

	foreign := performJSONRequest(t, env.app, http.MethodGet, "/api/admin/users/"+user.ID.String()+"/quotas", nil, authHeaders(otherToken))
	assertStatus(t, foreign, http.StatusForbidden)
}

func TestAdminQuotaUpdate(t *testing.T) {
	env := setupTestEnv(t)
	admin, token := createTestUser(t, env, "admin@example.com", "Password1", models.UserRoleAdmin)
	user := createManagedUser(t, env, admin, "user@example.com")

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/admin/users/"+user.ID.String()+"/quotas", map[string]any{
		"resourceType": "image",
		"mode":         "limited",
		"limit":        5,
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	row := quotaRow(t, env, user.ID, models.ResourceImage)
	if row.Limit != 5 || row.Mode != models.QuotaModeLimited {
		t.Fatalf("expected limited/5, got %s/%d", row.Mode, row.Limit)
	}
}

func TestAdminQuotaUpdateRejectsNegativeLimit(t *testing.T) {
	env := setupTestEnv(t)
	admin, token := createTestUser(t, env, "admin@example.com", "Password1", models.UserRoleAdmin)
	user := createManagedUser(t, env, admin, "user@example.com")

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/admin/users/"+user.ID.String()+"/quotas", map[string]any{
		"resourceType": "image",
		"mode":         "limited",
		"limit":        -3,
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUnlimitedRoundTripPreservesLimit(t *testing.T) {
	env := setupTestEnv(t)
	admin, token := createTestUser(t, env, "admin@example.com", "Password1", models.UserRoleAdmin)
	user := createManagedUser(t, env, admin, "user@example.com")

	setQuota(t, env, user.ID, models.ResourceImage, models.QuotaModeLimited, 42, 7)

	unlimited := performJSONRequest(t, env.app, http.MethodPut, "/api/admin/users/"+user.ID.String()+"/quotas", map[string]any{
		"resourceType": "image",
		"mode":         "unlimited",
	}, authHeaders(token))
	assertStatus(t, unlimited, http.StatusOK)

	row := quotaRow(t, env, user.ID, models.ResourceImage)
	if row.Mode != models.QuotaModeUnlimited || row.Limit != 42 {
		t.Fatalf("switching to unlimited must keep the stored limit, got %s/%d", row.Mode, row.Limit)
	}

	back := performJSONRequest(t, env.app, http.MethodPut, "/api/admin/users/"+user.ID.String()+"/quotas", map[string]any{
		"resourceType": "image",
		"mode":         "limited",
		"limit":        42,
	}, authHeaders(token))
	assertStatus(t, back, http.StatusOK)

	row = quotaRow(t, env, user.ID, models.ResourceImage)
	if row.Mode != models.QuotaModeLimited || row.Limit != 42 || row.Used != 7 {
		t.Fatalf("restore lost state: %s/%d used=%d", row.Mode, row.Limit, row.Used)
	}
}

func TestAdminQuotaReset(t *testing.T) {
	env := setupTestEnv(t)
	admin, token := createTestUser(t, env, "admin@example.com", "Password1", models.UserRoleAdmin)
	user := createManagedUser(t, env, admin, "user@example.com")

	setQuota(t, env, user.ID, models.ResourceVideo, models.QuotaModeLimited, 50, 49)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/admin/users/"+user.ID.String()+"/quotas/reset", map[string]any{
		"resourceType": "video",
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)

	row := quotaRow(t, env, user.ID, models.ResourceVideo)
	if row.Used != 0 || row.Limit != 50 {
		t.Fatalf("expected used=0 limit=50, got used=%d limit=%d", row.Used, row.Limit)
	}
}

func TestQuotaEndpointsRejectNonAdmins(t *testing.T) {
	env := setupTestEnv(t)
	admin, _ := createTestUser(t, env, "admin@example.com", "Password1", models.UserRoleAdmin)
	user := createManagedUser(t, env, admin, "user@example.com")
	token := createTestSession(t, env, user)

	resp := performJSONRequest(t, env.app, http.MethodGet, "/api/admin/users/"+user.ID.String()+"/quotas", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusForbidden)
}
