// ringside/handlers/admin_test.go
package handlers

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestDeleteAd_RemovesStoredCreative(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	admin := createTestUser(t, app, "promoter", "Promoter")
	if _, err := app.db.DB.Exec("UPDATE users SET is_admin = 1 WHERE id = ?", admin.ID); err != nil {
		t.Fatalf("Failed to promote admin: %v", err)
	}

	for _, name := range []string{"creative.png", "thumb_creative.png"} {
		if err := os.WriteFile(filepath.Join(app.uploadDir, name), []byte("png-bytes"), 0644); err != nil {
			t.Fatalf("Failed to stage creative %s: %v", name, err)
		}
	}
	adID, err := app.db.CreateAd("banner", "/uploads/creative.png", "https://example.com")
	if err != nil {
		t.Fatalf("Failed to create ad: %v", err)
	}

	resp, _ := postForm(t, server.URL, "/admin/ads/"+strconv.FormatInt(adID, 10)+"/delete",
		url.Values{}, loginAs(app, admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 deleting ad, got %d", resp.StatusCode)
	}

	if _, err := app.db.GetAd(adID); err == nil {
		t.Error("Expected the ad row to be gone")
	}
	for _, name := range []string{"creative.png", "thumb_creative.png"} {
		if _, err := os.Stat(filepath.Join(app.uploadDir, name)); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed from storage", name)
		}
	}

	// A second delete finds nothing.
	resp, _ = postForm(t, server.URL, "/admin/ads/"+strconv.FormatInt(adID, 10)+"/delete",
		url.Values{}, loginAs(app, admin))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 deleting a missing ad, got %d", resp.StatusCode)
	}
}
