// ringside/handlers/actions.go
package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ringside/config"
	"ringside/database"
	"ringside/models"
	"ringside/policy"
	"ringside/utils"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	_ "golang.org/x/image/webp"
)

const maxImagesPerPost = 4

var allowedImageTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true, "image/webp": true,
}

// processUploads validates, re-encodes, and stores every uploaded image.
// It returns the stored paths as a JSON array string.
func processUploads(r *http.Request, app App) (string, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File["images"]) == 0 {
		return "[]", nil
	}
	files := r.MultipartForm.File["images"]
	if len(files) > maxImagesPerPost {
		return "", fmt.Errorf("at most %d images per post", maxImagesPerPost)
	}

	var paths []string
	for _, header := range files {
		if header.Size > config.MaxFileSize {
			return "", fmt.Errorf("image %q is too large", header.Filename)
		}
		file, err := header.Open()
		if err != nil {
			return "", fmt.Errorf("could not open upload: %w", err)
		}
		data, err := io.ReadAll(io.LimitReader(file, config.MaxFileSize+1))
		if cerr := file.Close(); cerr != nil {
			app.Logger().Error("Failed to close upload", "error", cerr)
		}
		if err != nil {
			return "", fmt.Errorf("could not read upload: %w", err)
		}
		if int64(len(data)) > config.MaxFileSize {
			return "", fmt.Errorf("image %q is too large", header.Filename)
		}

		contentType := http.DetectContentType(data)
		if !allowedImageTypes[contentType] {
			return "", fmt.Errorf("unsupported image type %s", contentType)
		}

		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return "", fmt.Errorf("failed to decode image: %w", err)
		}
		bounds := img.Bounds()
		if bounds.Dx() > config.MaxWidth || bounds.Dy() > config.MaxHeight {
			return "", fmt.Errorf("image dimensions exceed %dx%d", config.MaxWidth, config.MaxHeight)
		}

		// Re-encode everything except PNG as JPEG to strip metadata.
		outputFormat := "jpeg"
		encode := func(buf *bytes.Buffer) error {
			return imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(90))
		}
		if contentType == "image/png" {
			outputFormat = "png"
			encode = func(buf *bytes.Buffer) error { return imaging.Encode(buf, img, imaging.PNG) }
		}

		var buf bytes.Buffer
		if err := encode(&buf); err != nil {
			return "", fmt.Errorf("failed to encode image: %w", err)
		}

		filename := fmt.Sprintf("%d_%d.%s", utils.GetTime().UnixNano(), len(paths), outputFormat)
		path, err := app.Storage().SaveFile(filename, buf.Bytes(), "image/"+outputFormat)
		if err != nil {
			return "", fmt.Errorf("failed to store image: %w", err)
		}

		// Board listings load the thumbnail, not the original.
		img = imaging.Fit(img, config.ThumbnailWidth, config.ThumbnailHeight, imaging.Lanczos)
		var thumbBuf bytes.Buffer
		if err := encode(&thumbBuf); err != nil {
			return "", fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		if _, err := app.Storage().SaveFile("thumb_"+filename, thumbBuf.Bytes(), "image/"+outputFormat); err != nil {
			return "", fmt.Errorf("failed to store thumbnail: %w", err)
		}

		paths = append(paths, path)
	}

	encoded, err := json.Marshal(paths)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// parseVideoURLs converts submitted video links to embeddable URLs, dropping
// anything from an unsupported host.
func parseVideoURLs(r *http.Request) string {
	var embeds []string
	for _, raw := range r.Form["video_url"] {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if embed := utils.EmbedURL(raw); embed != "" {
			embeds = append(embeds, embed)
		}
	}
	if embeds == nil {
		return "[]"
	}
	encoded, _ := json.Marshal(embeds)
	return string(encoded)
}

// deleteStoredImages best-effort removes a post's images from storage.
func deleteStoredImages(app App, imagesData string) {
	var paths []string
	if err := json.Unmarshal([]byte(orEmptyJSON(imagesData, "[]")), &paths); err != nil {
		app.Logger().Error("Failed to parse images data for deletion", "error", err)
		return
	}
	for _, p := range paths {
		if err := app.Storage().DeleteFile(p); err != nil {
			app.Logger().Error("Failed to delete stored image", "path", p, "error", err)
		}
		if err := app.Storage().DeleteFile(thumbPath(p)); err != nil {
			app.Logger().Error("Failed to delete thumbnail", "path", p, "error", err)
		}
	}
}

// thumbPath maps a stored image path to its thumbnail's path.
func thumbPath(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i+1] + "thumb_" + p[i+1:]
	}
	return "thumb_" + p
}

// HandleWritePost creates a post on a board, as decided by the write policy.
func HandleWritePost(w http.ResponseWriter, r *http.Request, app App) {
	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		respondError(w, http.StatusTooManyRequests, "You are posting too quickly", app)
		return
	}

	if err := r.ParseMultipartForm(config.MaxFileSize + 1024); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form data", app)
		return
	}

	board, err := app.DB().GetBoard(chi.URLParam(r, "board"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Board not found", app)
		return
	}

	sess := ensureSession(w, r, app)
	decision, identity, err := app.Policy().CanWrite(board, sess, ip)
	if err != nil {
		app.Logger().Error("Write policy failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to submit post", app)
		return
	}
	if !decision.Allowed() {
		respondDecision(w, decision, app)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	content := strings.TrimSpace(r.FormValue("content"))
	switch {
	case title == "" || content == "":
		respondError(w, http.StatusBadRequest, "Title and content are required", app)
		return
	case len(title) > config.MaxTitleLen:
		respondError(w, http.StatusBadRequest, "Title is too long", app)
		return
	case len(content) > config.MaxContentLen:
		respondError(w, http.StatusBadRequest, "Content is too long", app)
		return
	}

	var passwordHash string
	if identity.Anonymous {
		secret := r.FormValue("post_password")
		if len(secret) < config.MinAnonymousPasswordLen {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("Anonymous posts need a password of at least %d characters", config.MinAnonymousPasswordLen), app)
			return
		}
		passwordHash, err = policy.HashSecret(secret)
		if err != nil {
			app.Logger().Error("Failed to hash anonymous password", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to submit post", app)
			return
		}
	}

	imagesData, err := processUploads(r, app)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), app)
		return
	}

	postID, err := app.DB().CreatePost(database.PostInput{
		BoardID:      board.ID,
		UserID:       identity.UserID,
		Title:        title,
		Content:      content,
		ImagesData:   imagesData,
		VideoData:    parseVideoURLs(r),
		IsAnonymous:  identity.Anonymous,
		IPAddress:    ip,
		PasswordHash: passwordHash,
	})
	if err != nil {
		app.Logger().Error("Failed to create post", "board", board.Route, "error", err)
		deleteStoredImages(app, imagesData)
		respondError(w, http.StatusInternalServerError, "Failed to submit post", app)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"redirect": fmt.Sprintf("/board/%s/%d", board.Route, postID),
	}, app)
}

func postContent(p *models.Post) policy.Content {
	return policy.Content{
		Kind:        policy.KindPost,
		ID:          p.ID,
		OwnerID:     p.UserID,
		IsAnonymous: p.IsAnonymous,
	}
}

func commentContent(c *models.Comment, parentOwnerID int64) policy.Content {
	return policy.Content{
		Kind:          policy.KindComment,
		ID:            c.ID,
		OwnerID:       c.UserID,
		IsAnonymous:   c.IsAnonymous,
		ParentOwnerID: parentOwnerID,
	}
}

// HandleEditPost updates a post's title, content, and video links.
func HandleEditPost(w http.ResponseWriter, r *http.Request, app App) {
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

	sess := ensureSession(w, r, app)
	content := postContent(post)
	if d := app.Policy().CanModify(content, sess); !d.Allowed() {
		respondDecision(w, d, app)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	body := strings.TrimSpace(r.FormValue("content"))
	switch {
	case title == "" || body == "":
		respondError(w, http.StatusBadRequest, "Title and content are required", app)
		return
	case len(title) > config.MaxTitleLen:
		respondError(w, http.StatusBadRequest, "Title is too long", app)
		return
	case len(body) > config.MaxContentLen:
		respondError(w, http.StatusBadRequest, "Content is too long", app)
		return
	}

	if err := app.DB().UpdatePost(post.ID, title, body, parseVideoURLs(r)); err != nil {
		app.Logger().Error("Failed to update post", "post", post.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update post", app)
		return
	}

	// Verification is spent only once the edit has gone through.
	app.Policy().ConsumeVerification(content, sess)
	respondJSON(w, http.StatusOK, map[string]string{
		"redirect": fmt.Sprintf("/board/%s/%d", post.BoardRoute, post.ID),
	}, app)
}

// HandleDeletePost removes a post along with its comments, likes, and images.
func HandleDeletePost(w http.ResponseWriter, r *http.Request, app App) {
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

	sess := ensureSession(w, r, app)
	content := postContent(post)
	if d := app.Policy().CanModify(content, sess); !d.Allowed() {
		respondDecision(w, d, app)
		return
	}

	if err := app.DB().DeletePost(post.ID); err != nil {
		app.Logger().Error("Failed to delete post", "post", post.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete post", app)
		return
	}
	deleteStoredImages(app, post.ImagesData)

	app.Policy().ConsumeVerification(content, sess)
	respondJSON(w, http.StatusOK, map[string]string{
		"redirect": "/board/" + post.BoardRoute,
	}, app)
}

// HandleWriteComment adds a comment to a post under the same board write
// policy as posting.
func HandleWriteComment(w http.ResponseWriter, r *http.Request, app App) {
	ip := utils.GetIPAddress(r)
	if !app.RateLimiter().GetLimiter(ip).Allow() {
		respondError(w, http.StatusTooManyRequests, "You are commenting too quickly", app)
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
	board, err := app.DB().GetBoard(post.BoardRoute)
	if err != nil {
		respondError(w, http.StatusNotFound, "Board not found", app)
		return
	}

	sess := ensureSession(w, r, app)
	decision, identity, err := app.Policy().CanWrite(board, sess, ip)
	if err != nil {
		app.Logger().Error("Write policy failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to submit comment", app)
		return
	}
	if !decision.Allowed() {
		respondDecision(w, decision, app)
		return
	}

	body := strings.TrimSpace(r.FormValue("content"))
	if body == "" {
		respondError(w, http.StatusBadRequest, "Comment content is required", app)
		return
	}
	if len(body) > config.MaxCommentLen {
		respondError(w, http.StatusBadRequest, "Comment is too long", app)
		return
	}

	var passwordHash string
	if identity.Anonymous {
		secret := r.FormValue("comment_password")
		if len(secret) < config.MinAnonymousPasswordLen {
			respondError(w, http.StatusBadRequest,
				fmt.Sprintf("Anonymous comments need a password of at least %d characters", config.MinAnonymousPasswordLen), app)
			return
		}
		passwordHash, err = policy.HashSecret(secret)
		if err != nil {
			app.Logger().Error("Failed to hash anonymous password", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to submit comment", app)
			return
		}
	}

	commentID, err := app.DB().CreateComment(database.CommentInput{
		PostID:       post.ID,
		UserID:       identity.UserID,
		Content:      body,
		IsAnonymous:  identity.Anonymous,
		IPAddress:    ip,
		PasswordHash: passwordHash,
	})
	if err != nil {
		app.Logger().Error("Failed to create comment", "post", post.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to submit comment", app)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"comment_id": commentID,
		"redirect":   fmt.Sprintf("/board/%s/%d", post.BoardRoute, post.ID),
	}, app)
}

// HandleDeleteComment removes a comment. Besides the usual ownership and
// verification rules, the owner of the parent post may prune any comment.
func HandleDeleteComment(w http.ResponseWriter, r *http.Request, app App) {
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
	post, err := app.DB().GetPost(comment.PostID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Post not found", app)
		return
	}

	sess := ensureSession(w, r, app)
	content := commentContent(comment, post.UserID)
	if d := app.Policy().CanDeleteComment(content, sess); !d.Allowed() {
		respondDecision(w, d, app)
		return
	}

	if err := app.DB().DeleteComment(comment.ID); err != nil {
		app.Logger().Error("Failed to delete comment", "comment", comment.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete comment", app)
		return
	}

	app.Policy().ConsumeVerification(content, sess)
	respondJSON(w, http.StatusOK, map[string]string{
		"redirect": fmt.Sprintf("/board/%s/%d", post.BoardRoute, post.ID),
	}, app)
}

// HandleToggleLike flips the caller's like on a post.
func HandleToggleLike(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	postID, ok := urlParamInt64(r, "postID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid post id", app)
		return
	}
	if _, err := app.DB().GetPost(postID); err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "Post not found", app)
			return
		}
		app.Logger().Error("Failed to load post for like", "post", postID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to toggle like", app)
		return
	}

	liked, count, err := app.DB().ToggleLike(postID, sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to toggle like", "post", postID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to toggle like", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"liked":      liked,
		"like_count": count,
	}, app)
}
