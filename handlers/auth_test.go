// ringside/handlers/auth_test.go
package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"ringside/database"
)

func registerForm(username, nickname, password string) url.Values {
	return url.Values{
		"username":         {username},
		"email":            {username + "@test.io"},
		"nickname":         {nickname},
		"password":         {password},
		"confirm_password": {password},
	}
}

func TestRegisterAndLogin(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)

	resp, payload := postForm(t, server.URL, "/register", registerForm("southpaw", "lefty", "Fight123"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 for registration, got %d (%v)", resp.StatusCode, payload)
	}

	// Duplicate username is refused.
	resp, _ = postForm(t, server.URL, "/register", registerForm("southpaw", "other", "Fight123"))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate username, got %d", resp.StatusCode)
	}

	// Weak passwords are refused.
	resp, _ = postForm(t, server.URL, "/register", registerForm("newuser", "newbie", "weak"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for weak password, got %d", resp.StatusCode)
	}

	// Wrong password fails login.
	resp, _ = postForm(t, server.URL, "/login", url.Values{"username": {"southpaw"}, "password": {"Wrong123"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong password, got %d", resp.StatusCode)
	}

	// Correct credentials log in and issue a session cookie.
	resp, payload = postForm(t, server.URL, "/login", url.Values{"username": {"southpaw"}, "password": {"Fight123"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for login, got %d (%v)", resp.StatusCode, payload)
	}
	var sessCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			sessCookie = c
		}
	}
	if sessCookie == nil {
		t.Fatal("Expected a session cookie after login")
	}

	// The session opens the profile page.
	resp, profile := getJSON(t, server.URL, "/profile", withCookie(sessCookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for profile, got %d", resp.StatusCode)
	}
	if profile["username"] != "southpaw" || profile["nickname"] != "lefty" {
		t.Errorf("Unexpected profile payload: %v", profile)
	}

	// Logout destroys the session.
	resp, _ = postForm(t, server.URL, "/logout", url.Values{}, withCookie(sessCookie))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for logout, got %d", resp.StatusCode)
	}
	resp, _ = getJSON(t, server.URL, "/profile", withCookie(sessCookie))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestFindUsername_Masked(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	createTestUser(t, app, "southpaw", "lefty")

	resp, payload := postForm(t, server.URL, "/find-username", url.Values{"email": {"southpaw@test.io"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	masked, _ := payload["username"].(string)
	if masked == "southpaw" {
		t.Error("Expected the username to be masked")
	}
	if masked != "so****aw" {
		t.Errorf("Unexpected mask %q", masked)
	}

	resp, _ = postForm(t, server.URL, "/find-username", url.Values{"email": {"nobody@test.io"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown email, got %d", resp.StatusCode)
	}
}

func TestPasswordReset_Flow(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	createTestUser(t, app, "southpaw", "lefty")

	// Username and email must match.
	resp, _ := postForm(t, server.URL, "/reset-password/request",
		url.Values{"username": {"southpaw"}, "email": {"wrong@test.io"}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404 for mismatched email, got %d", resp.StatusCode)
	}

	resp, payload := postForm(t, server.URL, "/reset-password/request",
		url.Values{"username": {"southpaw"}, "email": {"southpaw@test.io"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 requesting reset, got %d (%v)", resp.StatusCode, payload)
	}
	token, _ := payload["reset_token"].(string)
	if token == "" {
		t.Fatal("Expected a reset token")
	}

	resp, _ = postForm(t, server.URL, "/reset-password",
		url.Values{"token": {token}, "new_password": {"Newpass1"}, "confirm_password": {"Newpass1"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 resetting password, got %d", resp.StatusCode)
	}

	// The token is single-use.
	resp, _ = postForm(t, server.URL, "/reset-password",
		url.Values{"token": {token}, "new_password": {"Other123"}, "confirm_password": {"Other123"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 reusing the token, got %d", resp.StatusCode)
	}

	// The new password works.
	resp, _ = postForm(t, server.URL, "/login", url.Values{"username": {"southpaw"}, "password": {"Newpass1"}})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 logging in with the new password, got %d", resp.StatusCode)
	}
}

func TestProfile_ShowsActivityAndCounts(t *testing.T) {
	app := setupTestApp(t)
	server := setupServer(t, app)
	alice := createTestUser(t, app, "alice", "Alice")
	bob := createTestUser(t, app, "bob", "Bob")

	board, err := app.db.GetBoard("free")
	if err != nil {
		t.Fatalf("Failed to load board: %v", err)
	}
	postID, err := app.db.CreatePost(database.PostInput{
		BoardID: board.ID, UserID: bob.ID, Title: "Card announced", Content: "Main event set",
		ImagesData: "[]", VideoData: "[]",
	})
	if err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	if _, err := app.db.CreateComment(database.CommentInput{
		PostID: postID, UserID: alice.ID, Content: "Calling the upset",
	}); err != nil {
		t.Fatalf("Failed to create comment: %v", err)
	}
	if _, err := app.db.SendMessage(bob.ID, alice.ID, "Tickets", "Got a spare seat"); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
	if err := app.db.SendFriendRequest(bob.ID, alice.ID); err != nil {
		t.Fatalf("Failed to send friend request: %v", err)
	}

	resp, payload := getJSON(t, server.URL, "/profile", loginAs(app, alice))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	comments, ok := payload["comments"].([]interface{})
	if !ok || len(comments) != 1 {
		t.Errorf("Expected 1 comment on the profile, got %v", payload["comments"])
	}
	if jsonNumber(payload["unread_messages"]) != "1" {
		t.Errorf("Expected 1 unread message, got %v", payload["unread_messages"])
	}
	if jsonNumber(payload["pending_friend_requests"]) != "1" {
		t.Errorf("Expected 1 pending friend request, got %v", payload["pending_friend_requests"])
	}
}
