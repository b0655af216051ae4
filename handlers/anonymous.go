// ringside/handlers/anonymous.go
package handlers

import (
	"net/http"

	"ringside/config"
	"ringside/utils"
)

// HandleVerifyPost checks a submitted password against an anonymous post's
// stored secret. Success grants the session a verification window during
// which the post may be edited or deleted without re-entering the password.
func HandleVerifyPost(w http.ResponseWriter, r *http.Request, app App) {
	// Same per-IP limiter as writes, so the secret cannot be guessed in bulk.
	if !app.RateLimiter().GetLimiter(utils.GetIPAddress(r)).Allow() {
		respondError(w, http.StatusTooManyRequests, "Too many attempts, slow down", app)
		return
	}

	postID, ok := urlParamInt64(r, "postID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid post id", app)
		return
	}
	post, err := app.DB().GetPost(postID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Post not found", app)
		return
	}
	if !post.IsAnonymous {
		respondError(w, http.StatusBadRequest, "Post is not anonymous", app)
		return
	}

	sess := ensureSession(w, r, app)
	d := app.Policy().VerifySecret(postContent(post), post.AnonymousPassword.String, r.FormValue("password"), sess)
	if !d.Allowed() {
		respondDecision(w, d, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"verified":   true,
		"expires_in": int(config.VerificationWindow.Seconds()),
	}, app)
}

// HandleVerifyComment is the comment counterpart of HandleVerifyPost.
func HandleVerifyComment(w http.ResponseWriter, r *http.Request, app App) {
	if !app.RateLimiter().GetLimiter(utils.GetIPAddress(r)).Allow() {
		respondError(w, http.StatusTooManyRequests, "Too many attempts, slow down", app)
		return
	}

	commentID, ok := urlParamInt64(r, "commentID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid comment id", app)
		return
	}
	comment, err := app.DB().GetComment(commentID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Comment not found", app)
		return
	}
	if !comment.IsAnonymous {
		respondError(w, http.StatusBadRequest, "Comment is not anonymous", app)
		return
	}

	sess := ensureSession(w, r, app)
	d := app.Policy().VerifySecret(commentContent(comment, 0), comment.AnonymousPassword.String, r.FormValue("password"), sess)
	if !d.Allowed() {
		respondDecision(w, d, app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"verified":   true,
		"expires_in": int(config.VerificationWindow.Seconds()),
	}, app)
}
