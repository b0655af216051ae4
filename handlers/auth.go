// ringside/handlers/auth.go
package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"ringside/config"
	"ringside/database"
	"ringside/models"
	"ringside/utils"

	"golang.org/x/crypto/bcrypt"
)

// validateRegisterInput checks every account field against the signup rules.
// It returns a user-facing message for the first problem found.
func validateRegisterInput(in models.RegisterInput) string {
	switch {
	case in.Username == "" || in.Password == "" || in.Email == "" || in.Nickname == "":
		return "All fields are required"
	case len(in.Username) > config.MaxUsernameLen:
		return "Username is too long"
	case !utils.ValidUsername(in.Username):
		return "Username may only contain letters and numbers"
	case len(in.Email) > config.MaxEmailLen || !utils.ValidEmail(in.Email):
		return "Invalid email address"
	case len(in.Nickname) > config.MaxNicknameLen:
		return "Nickname is too long"
	case len(in.Password) > config.MaxPasswordLen:
		return "Password is too long"
	case !utils.ValidPassword(in.Password):
		return "Password must be at least 8 characters with upper, lower, and digit"
	case in.Password != in.ConfirmPassword:
		return "Passwords do not match"
	}
	return ""
}

// HandleRegister creates a new account.
func HandleRegister(w http.ResponseWriter, r *http.Request, app App) {
	in := models.RegisterInput{
		Username:        strings.TrimSpace(r.FormValue("username")),
		Email:           strings.TrimSpace(r.FormValue("email")),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
		Nickname:        strings.TrimSpace(r.FormValue("nickname")),
	}
	if msg := validateRegisterInput(in); msg != "" {
		respondError(w, http.StatusBadRequest, msg, app)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		app.Logger().Error("Failed to hash password", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create account", app)
		return
	}

	userID, err := app.DB().CreateUser(in.Username, in.Email, in.Nickname, string(hash))
	if err != nil {
		switch {
		case errors.Is(err, database.ErrUsernameTaken),
			errors.Is(err, database.ErrEmailTaken),
			errors.Is(err, database.ErrNicknameTaken):
			respondError(w, http.StatusConflict, err.Error(), app)
		default:
			app.Logger().Error("Failed to create user", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to create account", app)
		}
		return
	}

	app.Logger().Info("Account created", "user_id", userID, "username", in.Username)
	respondJSON(w, http.StatusCreated, map[string]string{"redirect": "/login"}, app)
}

// HandleLogin authenticates a user and starts a session.
func HandleLogin(w http.ResponseWriter, r *http.Request, app App) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required", app)
		return
	}

	user, err := app.DB().GetUserByUsername(username)
	if err != nil {
		if err != sql.ErrNoRows {
			app.Logger().Error("Failed to look up user", "error", err)
		}
		respondError(w, http.StatusUnauthorized, "Invalid username or password", app)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid username or password", app)
		return
	}

	if err := app.DB().UpdateLastLogin(user.ID); err != nil {
		app.Logger().Error("Failed to update last login", "user_id", user.ID, "error", err)
	}

	// Drop any guest session the browser was carrying.
	if old := GetSession(r); old != nil {
		app.Sessions().Destroy(old.Token)
	}
	sess := app.Sessions().Create(user)
	setSessionCookie(w, r, sess.Token)

	app.Logger().Info("User logged in", "user_id", user.ID)
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/"}, app)
}

// HandleLogout destroys the current session.
func HandleLogout(w http.ResponseWriter, r *http.Request, app App) {
	if sess := GetSession(r); sess != nil {
		app.Sessions().Destroy(sess.Token)
	}
	clearSessionCookie(w, r)
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/"}, app)
}

// HandleProfile returns the logged-in user's account and recent activity.
func HandleProfile(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	user, err := app.DB().GetUserByID(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load profile", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load profile", app)
		return
	}
	posts, err := app.DB().GetPostsByUser(sess.UserID, config.PostsPerPage)
	if err != nil {
		app.Logger().Error("Failed to load user posts", "user_id", sess.UserID, "error", err)
	}
	comments, err := app.DB().GetCommentsByUser(sess.UserID, config.PostsPerPage)
	if err != nil {
		app.Logger().Error("Failed to load user comments", "user_id", sess.UserID, "error", err)
	}
	commentList := make([]map[string]interface{}, 0, len(comments))
	for i := range comments {
		commentList = append(commentList, commentJSON(&comments[i]))
	}
	unread, err := app.DB().GetUnreadCount(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to count unread messages", "user_id", sess.UserID, "error", err)
	}
	pending, err := app.DB().GetPendingRequests(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load pending requests", "user_id", sess.UserID, "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"username":                user.Username,
		"email":                   user.Email,
		"nickname":                user.Nickname,
		"vip_tier":                user.VIPTier,
		"is_admin":                user.IsAdmin,
		"created_at":              user.CreatedAt,
		"posts":                   postListJSON(posts),
		"comments":                commentList,
		"unread_messages":         unread,
		"pending_friend_requests": len(pending),
	}, app)
}

// HandleEditProfile updates nickname and email.
func HandleEditProfile(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	nickname := strings.TrimSpace(r.FormValue("nickname"))
	email := strings.TrimSpace(r.FormValue("email"))
	switch {
	case nickname == "" || email == "":
		respondError(w, http.StatusBadRequest, "Nickname and email are required", app)
		return
	case len(nickname) > config.MaxNicknameLen:
		respondError(w, http.StatusBadRequest, "Nickname is too long", app)
		return
	case len(email) > config.MaxEmailLen || !utils.ValidEmail(email):
		respondError(w, http.StatusBadRequest, "Invalid email address", app)
		return
	}

	if err := app.DB().UpdateProfile(sess.UserID, nickname, email); err != nil {
		switch {
		case errors.Is(err, database.ErrNicknameTaken), errors.Is(err, database.ErrEmailTaken):
			respondError(w, http.StatusConflict, err.Error(), app)
		default:
			app.Logger().Error("Failed to update profile", "user_id", sess.UserID, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to update profile", app)
		}
		return
	}
	sess.Nickname = nickname
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/profile"}, app)
}

// HandleChangePassword sets a new password after checking the current one.
func HandleChangePassword(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	current := r.FormValue("current_password")
	next := r.FormValue("new_password")
	if next != r.FormValue("confirm_password") {
		respondError(w, http.StatusBadRequest, "Passwords do not match", app)
		return
	}
	if len(next) > config.MaxPasswordLen || !utils.ValidPassword(next) {
		respondError(w, http.StatusBadRequest, "Password must be at least 8 characters with upper, lower, and digit", app)
		return
	}

	user, err := app.DB().GetUserByID(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load user for password change", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to change password", app)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		respondError(w, http.StatusUnauthorized, "Current password is incorrect", app)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		app.Logger().Error("Failed to hash new password", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to change password", app)
		return
	}
	if err := app.DB().UpdatePassword(sess.UserID, string(hash)); err != nil {
		app.Logger().Error("Failed to update password", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to change password", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/profile"}, app)
}

// HandleFindUsername looks up an account by email and returns the username
// masked, so the page confirms ownership without disclosing the full handle.
func HandleFindUsername(w http.ResponseWriter, r *http.Request, app App) {
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		respondError(w, http.StatusBadRequest, "Email is required", app)
		return
	}
	user, err := app.DB().GetUserByEmail(email)
	if err != nil {
		if err != sql.ErrNoRows {
			app.Logger().Error("Failed to look up account by email", "error", err)
		}
		respondError(w, http.StatusNotFound, "No account found for that email", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"username": utils.MaskUsername(user.Username)}, app)
}

// HandleRequestPasswordReset issues a single-use reset token for the account
// matching the submitted username and email pair.
func HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request, app App) {
	username := strings.TrimSpace(r.FormValue("username"))
	email := strings.TrimSpace(r.FormValue("email"))
	user, err := app.DB().GetUserByUsername(username)
	if err != nil || user.Email != email {
		// Same response for every miss so the endpoint cannot be used to
		// probe which usernames exist.
		respondError(w, http.StatusNotFound, "No matching account found", app)
		return
	}

	token, err := app.DB().CreateResetToken(user.ID)
	if err != nil {
		app.Logger().Error("Failed to create reset token", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to start password reset", app)
		return
	}

	// Without an outbound mailer the token is returned directly; a
	// deployment with SMTP configured would email it instead.
	app.Logger().Info("Password reset requested", "user_id", user.ID)
	respondJSON(w, http.StatusOK, map[string]string{"reset_token": token}, app)
}

// HandleResetPassword consumes a reset token and sets the new password.
func HandleResetPassword(w http.ResponseWriter, r *http.Request, app App) {
	token := r.FormValue("token")
	next := r.FormValue("new_password")
	if next != r.FormValue("confirm_password") {
		respondError(w, http.StatusBadRequest, "Passwords do not match", app)
		return
	}
	if len(next) > config.MaxPasswordLen || !utils.ValidPassword(next) {
		respondError(w, http.StatusBadRequest, "Password must be at least 8 characters with upper, lower, and digit", app)
		return
	}

	reset, err := app.DB().GetResetToken(token, utils.GetTime())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Reset token is invalid or expired", app)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		app.Logger().Error("Failed to hash reset password", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to reset password", app)
		return
	}
	if err := app.DB().ConsumeResetToken(reset.ID, reset.UserID, string(hash)); err != nil {
		if errors.Is(err, database.ErrTokenInvalid) {
			respondError(w, http.StatusBadRequest, "Reset token is invalid or expired", app)
			return
		}
		app.Logger().Error("Failed to consume reset token", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to reset password", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/login"}, app)
}
