// ringside/database/content.go
package database

import (
	"database/sql"
	"fmt"

	"ringside/models"
	"ringside/utils"
)

// PostInput carries everything needed to insert a post. For anonymous
// content UserID is 0 and PasswordHash holds the bcrypt secret.
type PostInput struct {
	BoardID      int64
	UserID       int64
	Title        string
	Content      string
	ImagesData   string
	VideoData    string
	IsAnonymous  bool
	IPAddress    string
	PasswordHash string
}

// CreatePost inserts a post and returns its id.
func (ds *DatabaseService) CreatePost(in PostInput) (int64, error) {
	var pwd sql.NullString
	if in.PasswordHash != "" {
		pwd = sql.NullString{String: in.PasswordHash, Valid: true}
	}
	res, err := ds.DB.Exec(`
		INSERT INTO posts (board_id, user_id, title, content, images_data, video_data, is_anonymous, ip_address, anonymous_password, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.BoardID, in.UserID, in.Title, in.Content, in.ImagesData, in.VideoData,
		in.IsAnonymous, in.IPAddress, pwd, utils.GetSQLTime())
	if err != nil {
		return 0, fmt.Errorf("failed to create post: %w", err)
	}
	return res.LastInsertId()
}

const postSelect = `
	SELECT p.id, p.board_id, p.user_id, p.title, p.content, p.images_data, p.video_data,
	       p.view_count, p.is_anonymous, p.ip_address, p.anonymous_password, p.created_at, p.updated_at,
	       CASE WHEN p.is_anonymous THEN 'anonymous' ELSE COALESCE(u.nickname, 'anonymous') END,
	       COALESCE(u.is_vip, 0),
	       b.route, b.name,
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id)
	FROM posts p
	LEFT JOIN users u ON u.id = p.user_id
	JOIN boards b ON b.id = p.board_id`

func scanPost(s interface{ Scan(...any) error }) (*models.Post, error) {
	var p models.Post
	err := s.Scan(&p.ID, &p.BoardID, &p.UserID, &p.Title, &p.Content, &p.ImagesData, &p.VideoData,
		&p.ViewCount, &p.IsAnonymous, &p.IPAddress, &p.AnonymousPassword, &p.CreatedAt, &p.UpdatedAt,
		&p.Nickname, &p.AuthorVIP, &p.BoardRoute, &p.BoardName, &p.CommentCount, &p.LikeCount)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPost fetches a single post with author and board context.
func (ds *DatabaseService) GetPost(postID int64) (*models.Post, error) {
	return scanPost(ds.DB.QueryRow(postSelect+" WHERE p.id = ?", postID))
}

func (ds *DatabaseService) queryPosts(query string, args ...any) ([]models.Post, error) {
	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close post rows", "error", err)
		}
	}()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// GetPostsForBoard returns one page of a board's posts, newest first.
func (ds *DatabaseService) GetPostsForBoard(boardID int64, page, pageSize int) ([]models.Post, error) {
	offset := (page - 1) * pageSize
	return ds.queryPosts(postSelect+" WHERE p.board_id = ? ORDER BY p.id DESC LIMIT ? OFFSET ?",
		boardID, pageSize, offset)
}

// GetPostCount returns the total number of posts on a board.
func (ds *DatabaseService) GetPostCount(boardID int64) (int, error) {
	var count int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM posts WHERE board_id = ?", boardID).Scan(&count)
	return count, err
}

// GetBestPosts returns the most-liked recent posts for the home page.
func (ds *DatabaseService) GetBestPosts(limit int) ([]models.Post, error) {
	return ds.queryPosts(postSelect+`
		ORDER BY (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) DESC, p.id DESC
		LIMIT ?`, limit)
}

// GetRealtimePosts returns the newest posts site-wide.
func (ds *DatabaseService) GetRealtimePosts(limit int) ([]models.Post, error) {
	return ds.queryPosts(postSelect+" ORDER BY p.id DESC LIMIT ?", limit)
}

// GetPostsByUser returns a user's own posts, newest first.
func (ds *DatabaseService) GetPostsByUser(userID int64, limit int) ([]models.Post, error) {
	return ds.queryPosts(postSelect+" WHERE p.user_id = ? AND p.is_anonymous = 0 ORDER BY p.id DESC LIMIT ?",
		userID, limit)
}

// IncrementViewCount bumps a post's view counter.
func (ds *DatabaseService) IncrementViewCount(postID int64) error {
	_, err := ds.DB.Exec("UPDATE posts SET view_count = view_count + 1 WHERE id = ?", postID)
	return err
}

// UpdatePost replaces a post's editable fields.
func (ds *DatabaseService) UpdatePost(postID int64, title, content, videoData string) error {
	_, err := ds.DB.Exec("UPDATE posts SET title = ?, content = ?, video_data = ?, updated_at = ? WHERE id = ?",
		title, content, videoData, utils.GetSQLTime(), postID)
	return err
}

// DeletePost removes a post with its comments and likes in one transaction.
// The caller is responsible for deleting any stored images afterwards.
func (ds *DatabaseService) DeletePost(postID int64) error {
	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback post delete tx", "error", err)
		}
	}()

	if _, err := tx.Exec("DELETE FROM comments WHERE post_id = ?", postID); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM post_likes WHERE post_id = ?", postID); err != nil {
		return fmt.Errorf("failed to delete likes: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM posts WHERE id = ?", postID); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return tx.Commit()
}

// --- Comments ---

type CommentInput struct {
	PostID       int64
	UserID       int64
	Content      string
	IsAnonymous  bool
	IPAddress    string
	PasswordHash string
}

func (ds *DatabaseService) CreateComment(in CommentInput) (int64, error) {
	var pwd sql.NullString
	if in.PasswordHash != "" {
		pwd = sql.NullString{String: in.PasswordHash, Valid: true}
	}
	res, err := ds.DB.Exec(`
		INSERT INTO comments (post_id, user_id, content, is_anonymous, ip_address, anonymous_password, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.PostID, in.UserID, in.Content, in.IsAnonymous, in.IPAddress, pwd, utils.GetSQLTime())
	if err != nil {
		return 0, fmt.Errorf("failed to create comment: %w", err)
	}
	return res.LastInsertId()
}

const commentSelect = `
	SELECT c.id, c.post_id, c.user_id, c.content, c.is_anonymous, c.ip_address, c.anonymous_password, c.created_at,
	       CASE WHEN c.is_anonymous THEN 'anonymous' ELSE COALESCE(u.nickname, 'anonymous') END,
	       COALESCE(u.is_vip, 0)
	FROM comments c
	LEFT JOIN users u ON u.id = c.user_id`

func scanComment(s interface{ Scan(...any) error }) (*models.Comment, error) {
	var c models.Comment
	err := s.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.IsAnonymous,
		&c.IPAddress, &c.AnonymousPassword, &c.CreatedAt, &c.Nickname, &c.AuthorVIP)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (ds *DatabaseService) GetComment(commentID int64) (*models.Comment, error) {
	return scanComment(ds.DB.QueryRow(commentSelect+" WHERE c.id = ?", commentID))
}

// GetCommentsByUser returns a user's own comments, newest first.
func (ds *DatabaseService) GetCommentsByUser(userID int64, limit int) ([]models.Comment, error) {
	rows, err := ds.DB.Query(commentSelect+" WHERE c.user_id = ? AND c.is_anonymous = 0 ORDER BY c.id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close comment rows", "error", err)
		}
	}()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// GetCommentsForPost returns a post's comments oldest first.
func (ds *DatabaseService) GetCommentsForPost(postID int64) ([]models.Comment, error) {
	rows, err := ds.DB.Query(commentSelect+" WHERE c.post_id = ? ORDER BY c.id", postID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close comment rows", "error", err)
		}
	}()

	var comments []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func (ds *DatabaseService) DeleteComment(commentID int64) error {
	_, err := ds.DB.Exec("DELETE FROM comments WHERE id = ?", commentID)
	return err
}

// --- Likes ---

// ToggleLike flips a user's like on a post and reports the new state.
func (ds *DatabaseService) ToggleLike(postID, userID int64) (liked bool, count int, err error) {
	tx, err := ds.DB.Begin()
	if err != nil {
		return false, 0, err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback like tx", "error", rerr)
		}
	}()

	res, err := tx.Exec("DELETE FROM post_likes WHERE post_id = ? AND user_id = ?", postID, userID)
	if err != nil {
		return false, 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.Exec("INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)",
			postID, userID, utils.GetSQLTime()); err != nil {
			return false, 0, err
		}
		liked = true
	}
	if err := tx.QueryRow("SELECT COUNT(*) FROM post_likes WHERE post_id = ?", postID).Scan(&count); err != nil {
		return false, 0, err
	}
	if err := tx.Commit(); err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// HasLiked reports whether the user has already liked a post.
func (ds *DatabaseService) HasLiked(postID, userID int64) (bool, error) {
	var n int
	err := ds.DB.QueryRow("SELECT COUNT(*) FROM post_likes WHERE post_id = ? AND user_id = ?", postID, userID).Scan(&n)
	return n > 0, err
}
