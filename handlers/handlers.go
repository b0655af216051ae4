// ringside/handlers/handlers.go

package handlers

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"ringside/config"
	"ringside/database"
	"ringside/models"
	"ringside/policy"
	"ringside/utils"

	"github.com/go-chi/chi/v5"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	DB() *database.DatabaseService
	Policy() *policy.Engine
	Sessions() *models.SessionStore
	RateLimiter() *models.RateLimiter
	Logger() *slog.Logger
	UploadDir() string
	Storage() utils.StorageService
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// respondError sends a JSON error message.
func respondError(w http.ResponseWriter, status int, message string, app App) {
	respondJSON(w, status, map[string]string{"error": message}, app)
}

// respondDecision maps a denied policy decision to its HTTP shape. Callers
// must only pass decisions that are not Allowed.
func respondDecision(w http.ResponseWriter, d policy.Decision, app App) {
	status := http.StatusForbidden
	switch d.Outcome {
	case policy.AuthenticationRequired:
		status = http.StatusUnauthorized
	case policy.NotFound:
		status = http.StatusNotFound
	case policy.VerificationExpiredOrMissing:
		status = http.StatusForbidden
	}
	respondJSON(w, status, map[string]string{
		"error":   d.Reason,
		"outcome": d.Outcome.String(),
	}, app)
}

// MakeHandler adapts a handler function to our generic App interface.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// ensureSession returns the request's session, creating a guest session (and
// setting its cookie) when none exists. Anonymous verification grants need a
// session to live in even for logged-out visitors.
func ensureSession(w http.ResponseWriter, r *http.Request, app App) *models.Session {
	if sess := GetSession(r); sess != nil {
		return sess
	}
	sess := app.Sessions().CreateGuest()
	setSessionCookie(w, r, sess.Token)
	return sess
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  utils.GetTime().Add(config.SessionTTL),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// urlParamInt64 parses a chi URL parameter as an id.
func urlParamInt64(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// --- JSON shapes ---

func postJSON(p *models.Post) map[string]interface{} {
	return map[string]interface{}{
		"id":            p.ID,
		"board":         p.BoardRoute,
		"board_name":    p.BoardName,
		"title":         p.Title,
		"content":       p.Content,
		"images":        json.RawMessage(orEmptyJSON(p.ImagesData, "[]")),
		"videos":        json.RawMessage(orEmptyJSON(p.VideoData, "[]")),
		"nickname":      p.Nickname,
		"author_vip":    p.AuthorVIP,
		"is_anonymous":  p.IsAnonymous,
		"view_count":    p.ViewCount,
		"comment_count": p.CommentCount,
		"like_count":    p.LikeCount,
		"created_at":    p.CreatedAt,
	}
}

func postListJSON(posts []models.Post) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(posts))
	for i := range posts {
		out = append(out, postJSON(&posts[i]))
	}
	return out
}

func commentJSON(c *models.Comment) map[string]interface{} {
	return map[string]interface{}{
		"id":           c.ID,
		"post_id":      c.PostID,
		"content":      c.Content,
		"nickname":     c.Nickname,
		"author_vip":   c.AuthorVIP,
		"is_anonymous": c.IsAnonymous,
		"created_at":   c.CreatedAt,
	}
}

func adJSON(a *models.Ad) map[string]interface{} {
	if a == nil {
		return nil
	}
	return map[string]interface{}{
		"id":       a.ID,
		"position": a.Position,
		"image":    a.ImagePath,
		"link":     a.LinkURL,
	}
}

// orEmptyJSON guards json.RawMessage fields against empty strings from older rows.
func orEmptyJSON(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// adsForPage gathers one random ad per slot.
func adsForPage(app App, positions ...string) map[string]interface{} {
	ads := make(map[string]interface{}, len(positions))
	for _, pos := range positions {
		ad, err := app.DB().GetRandomAd(pos)
		if err != nil {
			app.Logger().Error("Failed to pick ad", "position", pos, "error", err)
			continue
		}
		if ad != nil {
			ads[pos] = adJSON(ad)
		}
	}
	return ads
}

// HandleHome serves the landing feed: best posts, newest posts, and the
// latest few from each board, plus active notices and ads.
func HandleHome(w http.ResponseWriter, r *http.Request, app App) {
	best, err := app.DB().GetBestPosts(config.HomeFeedSize)
	if err != nil {
		app.Logger().Error("Failed to load best posts", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load home feed", app)
		return
	}
	realtime, err := app.DB().GetRealtimePosts(config.HomeFeedSize)
	if err != nil {
		app.Logger().Error("Failed to load realtime posts", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load home feed", app)
		return
	}
	notices, err := app.DB().GetActiveNotices(5)
	if err != nil {
		app.Logger().Error("Failed to load notices", "error", err)
	}

	noticeList := make([]map[string]interface{}, 0, len(notices))
	for _, n := range notices {
		noticeList = append(noticeList, map[string]interface{}{
			"id": n.ID, "title": n.Title, "content": n.Content, "created_at": n.CreatedAt,
		})
	}

	payload := map[string]interface{}{
		"version":  config.AppVersion,
		"best":     postListJSON(best),
		"realtime": postListJSON(realtime),
		"notices":  noticeList,
		"ads":      adsForPage(app, "banner", "side", "footer", "center"),
	}
	if sess := GetSession(r); sess.LoggedIn() {
		unread, err := app.DB().GetUnreadCount(sess.UserID)
		if err == nil {
			payload["unread_messages"] = unread
		}
	}
	respondJSON(w, http.StatusOK, payload, app)
}

// HandleBoardList returns the navigation list of boards.
func HandleBoardList(w http.ResponseWriter, r *http.Request, app App) {
	boards, err := app.DB().GetBoards()
	if err != nil {
		app.Logger().Error("Failed to load boards", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load boards", app)
		return
	}
	list := make([]map[string]interface{}, 0, len(boards))
	for _, b := range boards {
		list = append(list, map[string]interface{}{
			"route":  b.Route,
			"name":   b.Name,
			"access": string(b.Access),
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"boards": list}, app)
}

// HandleBoard serves one page of a board's posts.
func HandleBoard(w http.ResponseWriter, r *http.Request, app App) {
	board, err := app.DB().GetBoard(chi.URLParam(r, "board"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Board not found", app)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	posts, err := app.DB().GetPostsForBoard(board.ID, page, config.PostsPerPage)
	if err != nil {
		app.Logger().Error("Failed to load board posts", "board", board.Route, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load posts", app)
		return
	}
	total, err := app.DB().GetPostCount(board.ID)
	if err != nil {
		app.Logger().Error("Failed to count board posts", "board", board.Route, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load posts", app)
		return
	}
	notices, err := app.DB().GetActiveNotices(3)
	if err != nil {
		app.Logger().Error("Failed to load notices", "error", err)
	}
	noticeList := make([]map[string]interface{}, 0, len(notices))
	for _, n := range notices {
		noticeList = append(noticeList, map[string]interface{}{"id": n.ID, "title": n.Title})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"board": map[string]interface{}{
			"route":  board.Route,
			"name":   board.Name,
			"access": string(board.Access),
		},
		"posts":       postListJSON(posts),
		"notices":     noticeList,
		"page":        page,
		"total_pages": int(math.Ceil(float64(total) / float64(config.PostsPerPage))),
		"ads":         adsForPage(app, "banner", "side"),
	}, app)
}

// HandlePostView serves a single post with its comments and bumps the view
// counter.
func HandlePostView(w http.ResponseWriter, r *http.Request, app App) {
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

	if err := app.DB().IncrementViewCount(post.ID); err != nil {
		app.Logger().Error("Failed to increment view count", "post", post.ID, "error", err)
	}
	post.ViewCount++

	comments, err := app.DB().GetCommentsForPost(post.ID)
	if err != nil {
		app.Logger().Error("Failed to load comments", "post", post.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load comments", app)
		return
	}
	commentList := make([]map[string]interface{}, 0, len(comments))
	for i := range comments {
		commentList = append(commentList, commentJSON(&comments[i]))
	}

	payload := map[string]interface{}{
		"post":     postJSON(post),
		"comments": commentList,
		"ads":      adsForPage(app, "side", "footer"),
	}
	if sess := GetSession(r); sess.LoggedIn() {
		liked, err := app.DB().HasLiked(post.ID, sess.UserID)
		if err == nil {
			payload["liked"] = liked
		}
	}
	respondJSON(w, http.StatusOK, payload, app)
}
