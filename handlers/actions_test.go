// ringside/handlers/actions_test.go
package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"ringside/models"
)

// writePost submits a text-only post through the multipart write endpoint.
func writePost(t *testing.T, serverURL, board, title, content string, extra url.Values, opts ...reqOption) (*http.Response, map[string]interface{}) {
	t.Helper()
	form := url.Values{"title": {title}, "content": {content}}
	for k, vs := range extra {
		form[k] = vs
	}
	return postMultipart(t, serverURL, "/board/"+board+"/write", form, opts...)
}

func TestWritePost_LoginRequiredOnPublicBoard(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)

	resp, payload := writePost(t, server.URL, "free", "hello", "first post", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 for logged-out write, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["outcome"] != "authentication_required" {
		t.Errorf("Expected authentication_required outcome, got %v", payload["outcome"])
	}

	user := createTestUser(t, app, "southpaw", "lefty")
	resp, payload = writePost(t, server.URL, "free", "hello", "first post", nil, loginAs(app, user))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 for logged-in write, got %d (%v)", resp.StatusCode, payload)
	}
	if redirect, _ := payload["redirect"].(string); !strings.HasPrefix(redirect, "/board/free/") {
		t.Errorf("Expected a redirect into the board, got %v", payload["redirect"])
	}
}

func TestWritePost_VIPBoardTierGate(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)

	regular := createTestUser(t, app, "regular", "reggie")
	yellow := createTestUser(t, app, "yellowvip", "canary")
	if err := app.db.SetVIPTier(yellow.ID, 1); err != nil {
		t.Fatalf("SetVIPTier failed: %v", err)
	}
	yellow, err := app.db.GetUserByID(yellow.ID)
	if err != nil {
		t.Fatalf("Failed to reload user: %v", err)
	}

	resp, payload := writePost(t, server.URL, "ringside-yellow", "t", "c", nil, loginAs(app, regular))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for non-VIP on a VIP board, got %d (%v)", resp.StatusCode, payload)
	}

	resp, _ = writePost(t, server.URL, "ringside-yellow", "t", "c", nil, loginAs(app, yellow))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 for matching tier, got %d", resp.StatusCode)
	}

	// An exact tier match is required; yellow does not open the blue board.
	resp, _ = writePost(t, server.URL, "ringside-blue", "t", "c", nil, loginAs(app, yellow))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for yellow VIP on the blue board, got %d", resp.StatusCode)
	}
}

func TestWritePost_BlockedIPDenied(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	user := createTestUser(t, app, "southpaw", "lefty")

	if err := app.db.BlockIP("203.0.113.9", "spam", time.Time{}); err != nil {
		t.Fatalf("BlockIP failed: %v", err)
	}

	form := url.Values{"title": {"t"}, "content": {"c"}}
	resp, payload := postMultipart(t, server.URL, "/board/free/write", form,
		withHeader("X-Real-IP", "203.0.113.9"), loginAs(app, user))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for blocked IP, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["outcome"] != "blocked" {
		t.Errorf("Expected blocked outcome, got %v", payload["outcome"])
	}
}

func TestAnonymousPost_VerifyThenDelete(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)

	// A logged-out visitor posts on the anonymous board with a secret.
	resp, payload := writePost(t, server.URL, "anonymous", "who am i", "nobody knows",
		url.Values{"post_password": {"ring4"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 for anonymous write, got %d (%v)", resp.StatusCode, payload)
	}
	redirect, _ := payload["redirect"].(string)
	postID := redirect[strings.LastIndex(redirect, "/")+1:]

	// The post is displayed under the anonymous identity.
	resp, view := getJSON(t, server.URL, redirect)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 viewing the post, got %d", resp.StatusCode)
	}
	post, _ := view["post"].(map[string]interface{})
	if post["nickname"] != "anonymous" || post["is_anonymous"] != true {
		t.Errorf("Expected anonymous display identity, got %v / %v", post["nickname"], post["is_anonymous"])
	}

	// Deleting without verification is refused. The verify endpoint issues
	// a session cookie the later requests must carry.
	resp, payload = postForm(t, server.URL, "/post/"+postID+"/delete", url.Values{})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 without verification, got %d (%v)", resp.StatusCode, payload)
	}

	// Wrong password fails verification.
	resp, _ = postForm(t, server.URL, "/post/"+postID+"/verify", url.Values{"password": {"wrong"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for wrong password, got %d", resp.StatusCode)
	}

	// Correct password verifies and the grant rides on the session cookie.
	req, err := http.NewRequest("POST", server.URL+"/post/"+postID+"/verify",
		strings.NewReader(url.Values{"password": {"ring4"}}.Encode()))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	verifyResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	verifyResp.Body.Close()
	if verifyResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for correct password, got %d", verifyResp.StatusCode)
	}
	var sessCookie *http.Cookie
	for _, c := range verifyResp.Cookies() {
		if c.Name == SessionCookieName {
			sessCookie = c
		}
	}
	if sessCookie == nil {
		t.Fatal("Expected a session cookie from the verify endpoint")
	}

	resp, payload = postForm(t, server.URL, "/post/"+postID+"/delete", url.Values{}, withCookie(sessCookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 deleting after verification, got %d (%v)", resp.StatusCode, payload)
	}

	resp, _ = getJSON(t, server.URL, redirect)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for the deleted post, got %d", resp.StatusCode)
	}
}

func TestDeleteComment_ParentPostOwner(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)

	host := createTestUser(t, app, "host", "promoter")
	guest := createTestUser(t, app, "guest", "contender")
	third := createTestUser(t, app, "third", "spectator")

	resp, payload := writePost(t, server.URL, "free", "card discussion", "main event", nil, loginAs(app, host))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 writing post, got %d", resp.StatusCode)
	}
	redirect, _ := payload["redirect"].(string)
	postID := redirect[strings.LastIndex(redirect, "/")+1:]

	resp, payload = postForm(t, server.URL, "/post/"+postID+"/comment",
		url.Values{"content": {"robbery"}}, loginAs(app, guest))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 writing comment, got %d (%v)", resp.StatusCode, payload)
	}
	commentID := jsonNumber(payload["comment_id"])

	// A third account may not delete the comment.
	resp, _ = postForm(t, server.URL, "/comment/"+commentID+"/delete", url.Values{}, loginAs(app, third))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for an unrelated account, got %d", resp.StatusCode)
	}

	// The post owner may, even though the comment is not theirs.
	resp, _ = postForm(t, server.URL, "/comment/"+commentID+"/delete", url.Values{}, loginAs(app, host))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for the post owner, got %d", resp.StatusCode)
	}

	_, view := getJSON(t, server.URL, redirect)
	comments, _ := view["comments"].([]interface{})
	if len(comments) != 0 {
		t.Errorf("Expected no comments after deletion, got %d", len(comments))
	}
}

func TestToggleLike_RequiresLogin(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	user := createTestUser(t, app, "southpaw", "lefty")

	resp, payload := writePost(t, server.URL, "free", "t", "c", nil, loginAs(app, user))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 writing post, got %d", resp.StatusCode)
	}
	redirect, _ := payload["redirect"].(string)
	postID := redirect[strings.LastIndex(redirect, "/")+1:]

	resp, _ = postForm(t, server.URL, "/post/"+postID+"/like", url.Values{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 liking while logged out, got %d", resp.StatusCode)
	}

	resp, payload = postForm(t, server.URL, "/post/"+postID+"/like", url.Values{}, loginAs(app, user))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 liking while logged in, got %d", resp.StatusCode)
	}
	if payload["liked"] != true || jsonNumber(payload["like_count"]) != "1" {
		t.Errorf("Expected liked=true count=1, got %v / %v", payload["liked"], payload["like_count"])
	}

	resp, payload = postForm(t, server.URL, "/post/"+postID+"/like", url.Values{}, loginAs(app, user))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on second toggle, got %d", resp.StatusCode)
	}
	if payload["liked"] != false || jsonNumber(payload["like_count"]) != "0" {
		t.Errorf("Expected liked=false count=0, got %v / %v", payload["liked"], payload["like_count"])
	}
}

func TestAdminBypass_DeletesOthersPosts(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)

	owner := createTestUser(t, app, "owner", "champ")
	admin := createTestUser(t, app, "admin", "ref")
	if _, err := app.db.DB.Exec("UPDATE users SET is_admin = 1 WHERE id = ?", admin.ID); err != nil {
		t.Fatalf("Failed to promote admin: %v", err)
	}
	admin, err := app.db.GetUserByID(admin.ID)
	if err != nil {
		t.Fatalf("Failed to reload admin: %v", err)
	}

	resp, payload := writePost(t, server.URL, "free", "t", "c", nil, loginAs(app, owner))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 writing post, got %d", resp.StatusCode)
	}
	redirect, _ := payload["redirect"].(string)
	postID := redirect[strings.LastIndex(redirect, "/")+1:]

	resp, _ = postForm(t, server.URL, "/post/"+postID+"/delete", url.Values{}, loginAs(app, admin))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for admin delete, got %d", resp.StatusCode)
	}
}

func TestVerifyPost_Throttled(t *testing.T) {
	app := setupTestApp(t)
	app.rateLimiter = models.NewRateLimiter(time.Hour, 2, time.Hour, 24*time.Hour)
	server := setupServer(t, app)

	resp, payload := writePost(t, server.URL, "anonymous", "masked", "who am I",
		url.Values{"post_password": {"ring4"}})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 for anonymous write, got %d (%v)", resp.StatusCode, payload)
	}
	redirect, _ := payload["redirect"].(string)
	postID := redirect[strings.LastIndex(redirect, "/")+1:]

	// The write above spent one token; the first guess spends the second.
	resp, _ = postForm(t, server.URL, "/post/"+postID+"/verify", url.Values{"password": {"wrong"}})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for a wrong password, got %d", resp.StatusCode)
	}

	resp, _ = postForm(t, server.URL, "/post/"+postID+"/verify", url.Values{"password": {"ring4"}})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429 once the limiter is drained, got %d", resp.StatusCode)
	}
}
