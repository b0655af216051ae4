// ringside/handlers/main_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"ringside/config"
	"ringside/database"
	"ringside/models"
	"ringside/policy"
	"ringside/utils"

	"golang.org/x/crypto/bcrypt"
)

// MockApplication holds dependencies for handler tests.
type MockApplication struct {
	db          *database.DatabaseService
	policy      *policy.Engine
	sessions    *models.SessionStore
	rateLimiter *models.RateLimiter
	uploadDir   string
	logger      *slog.Logger
}

func (a *MockApplication) DB() *database.DatabaseService    { return a.db }
func (a *MockApplication) Policy() *policy.Engine           { return a.policy }
func (a *MockApplication) Sessions() *models.SessionStore   { return a.sessions }
func (a *MockApplication) RateLimiter() *models.RateLimiter { return a.rateLimiter }
func (a *MockApplication) Logger() *slog.Logger             { return a.logger }
func (a *MockApplication) UploadDir() string                { return a.uploadDir }
func (a *MockApplication) Storage() utils.StorageService {
	return &utils.LocalStorage{UploadDir: a.uploadDir}
}

// setupTestApp creates a full application stack with a test database.
func setupTestApp(t *testing.T) *MockApplication {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	dbDir, err := os.MkdirTemp("", "ringside_test_db_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir for test DB: %v", err)
	}
	dbPath := filepath.Join(dbDir, "test.db?_journal_mode=WAL&_foreign_keys=on")
	dbService, err := database.InitDB(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	uploadDir, err := os.MkdirTemp("", "ringside_test_uploads_*")
	if err != nil {
		t.Fatalf("Failed to create temp upload dir: %v", err)
	}

	app := &MockApplication{
		db:          dbService,
		policy:      policy.NewEngine(dbService),
		sessions:    models.NewSessionStore(config.SessionTTL),
		rateLimiter: models.NewRateLimiter(time.Millisecond, 1000, time.Hour, 24*time.Hour),
		uploadDir:   uploadDir,
		logger:      logger,
	}

	t.Cleanup(func() {
		app.db.DB.Close()
		os.RemoveAll(dbDir)
		os.RemoveAll(uploadDir)
	})

	return app
}

// setupServer starts an httptest server with the session middleware but
// without CSRF, so tests can POST forms directly. CSRF has its own test.
func setupServer(t *testing.T, app *MockApplication) *httptest.Server {
	t.Helper()
	handler := AppContextMiddleware(app, SessionMiddleware(app)(SetupRouter(app)))
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

const testPassword = "Fight123"

// createTestUser registers an account straight in the database and returns it.
func createTestUser(t *testing.T, app *MockApplication, username, nickname string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}
	id, err := app.db.CreateUser(username, username+"@test.io", nickname, string(hash))
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	user, err := app.db.GetUserByID(id)
	if err != nil {
		t.Fatalf("Failed to load test user: %v", err)
	}
	return user
}

// reqOption mutates an outgoing test request.
type reqOption func(*http.Request)

func withCookie(c *http.Cookie) reqOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withHeader(key, value string) reqOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// loginAs opens a session for the user and attaches its cookie.
func loginAs(app *MockApplication, user *models.User) reqOption {
	sess := app.sessions.Create(user)
	return withCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
}

func doRequest(t *testing.T, req *http.Request, opts []reqOption) (*http.Response, map[string]interface{}) {
	t.Helper()
	for _, opt := range opts {
		opt(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && err != io.EOF {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp, payload
}

// postForm submits an urlencoded form and decodes the JSON reply.
func postForm(t *testing.T, serverURL, path string, form url.Values, opts ...reqOption) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest("POST", serverURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doRequest(t, req, opts)
}

// postMultipart submits form fields as multipart/form-data, as the browser
// does for the write endpoints that accept image uploads.
func postMultipart(t *testing.T, serverURL, path string, form url.Values, opts ...reqOption) (*http.Response, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range form {
		for _, v := range values {
			if err := mw.WriteField(key, v); err != nil {
				t.Fatalf("Failed to write multipart field: %v", err)
			}
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req, err := http.NewRequest("POST", serverURL+path, &body)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return doRequest(t, req, opts)
}

// getJSON fetches a URL and decodes the JSON reply.
func getJSON(t *testing.T, serverURL, path string, opts ...reqOption) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest("GET", serverURL+path, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	return doRequest(t, req, opts)
}

// jsonNumber renders a decoded JSON number as an integer string for URLs.
func jsonNumber(v interface{}) string {
	f, _ := v.(float64)
	return strconv.FormatInt(int64(f), 10)
}

func TestCSRFMiddleware_RejectsMissingToken(t *testing.T) {
	app := setupTestApp(t)
	handler := AppContextMiddleware(app, SessionMiddleware(app)(CSRFMiddleware(SetupRouter(app))))
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Post(server.URL+"/login", "application/x-www-form-urlencoded",
		strings.NewReader("username=a&password=b"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for POST without CSRF token, got %d", resp.StatusCode)
	}
}

func TestHandleHome_ServesFeeds(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)

	resp, payload := getJSON(t, server.URL, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from home, got %d", resp.StatusCode)
	}
	if payload["version"] != config.AppVersion {
		t.Errorf("Expected version %q, got %v", config.AppVersion, payload["version"])
	}
	for _, key := range []string{"best", "realtime", "notices", "ads"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("Expected %q in home payload", key)
		}
	}
}
