// ringside/database/social.go
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"ringside/models"
	"ringside/utils"
)

var (
	// ErrFriendshipExists means an edge already links the two users in
	// either direction (pending, accepted, or rejected).
	ErrFriendshipExists = errors.New("a friendship record already exists between these users")
	// ErrFriendshipBlocked means one side has blocked the other.
	ErrFriendshipBlocked = errors.New("friendship is blocked")
	ErrFriendshipNone    = errors.New("friendship not found")
	// ErrMessageNotOwned means the caller is neither sender nor receiver.
	ErrMessageNotOwned = errors.New("message does not belong to user")
)

// SendFriendRequest creates a pending edge from userID to friendID.
// Any existing edge in either direction rejects the request; a blocked
// edge yields the distinct ErrFriendshipBlocked.
func (ds *DatabaseService) SendFriendRequest(userID, friendID int64) error {
	if userID == friendID {
		return errors.New("cannot befriend yourself")
	}

	rows, err := ds.DB.Query(
		"SELECT status FROM friendships WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
		userID, friendID, friendID, userID)
	if err != nil {
		return err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close friendship rows", "error", err)
		}
	}()

	found := false
	blocked := false
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		found = true
		if models.FriendshipStatus(status) == models.FriendBlocked {
			blocked = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if blocked {
		return ErrFriendshipBlocked
	}
	if found {
		return ErrFriendshipExists
	}

	_, err = ds.DB.Exec("INSERT INTO friendships (user_id, friend_id, status, created_at) VALUES (?, ?, ?, ?)",
		userID, friendID, string(models.FriendPending), utils.GetSQLTime())
	return err
}

// AcceptFriendRequest marks the pending edge accepted and inserts the
// mirror edge in the same transaction, so acceptance is all-or-nothing.
func (ds *DatabaseService) AcceptFriendRequest(userID, requesterID int64) error {
	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback accept tx", "error", rerr)
		}
	}()

	now := utils.GetSQLTime()
	res, err := tx.Exec("UPDATE friendships SET status = ?, updated_at = ? WHERE user_id = ? AND friend_id = ? AND status = ?",
		string(models.FriendAccepted), now, requesterID, userID, string(models.FriendPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFriendshipNone
	}

	_, err = tx.Exec("INSERT INTO friendships (user_id, friend_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		userID, requesterID, string(models.FriendAccepted), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert mirror edge: %w", err)
	}
	return tx.Commit()
}

// RejectFriendRequest marks the pending edge rejected. No mirror edge
// is created; the requester cannot re-request until the edge is removed.
func (ds *DatabaseService) RejectFriendRequest(userID, requesterID int64) error {
	res, err := ds.DB.Exec("UPDATE friendships SET status = ?, updated_at = ? WHERE user_id = ? AND friend_id = ? AND status = ?",
		string(models.FriendRejected), utils.GetSQLTime(), requesterID, userID, string(models.FriendPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFriendshipNone
	}
	return nil
}

// RemoveFriend deletes both directed edges atomically.
func (ds *DatabaseService) RemoveFriend(userID, friendID int64) error {
	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback remove-friend tx", "error", rerr)
		}
	}()

	res, err := tx.Exec("DELETE FROM friendships WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
		userID, friendID, friendID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFriendshipNone
	}
	return tx.Commit()
}

// BlockFriend removes any existing edges and records a single
// one-directional blocked edge from the blocker.
func (ds *DatabaseService) BlockFriend(userID, targetID int64) error {
	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback block tx", "error", rerr)
		}
	}()

	if _, err := tx.Exec("DELETE FROM friendships WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
		userID, targetID, targetID, userID); err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO friendships (user_id, friend_id, status, created_at) VALUES (?, ?, ?, ?)",
		userID, targetID, string(models.FriendBlocked), utils.GetSQLTime())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// UnblockFriend deletes the blocker's blocked edge.
func (ds *DatabaseService) UnblockFriend(userID, targetID int64) error {
	res, err := ds.DB.Exec("DELETE FROM friendships WHERE user_id = ? AND friend_id = ? AND status = ?",
		userID, targetID, string(models.FriendBlocked))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFriendshipNone
	}
	return nil
}

func (ds *DatabaseService) queryFriendships(query string, args ...any) ([]models.Friendship, error) {
	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close friendship rows", "error", err)
		}
	}()

	var list []models.Friendship
	for rows.Next() {
		var f models.Friendship
		var status string
		if err := rows.Scan(&f.ID, &f.UserID, &f.FriendID, &status, &f.CreatedAt, &f.UpdatedAt, &f.FriendNickname); err != nil {
			return nil, err
		}
		f.Status = models.FriendshipStatus(status)
		list = append(list, f)
	}
	return list, rows.Err()
}

// GetFriends returns the user's accepted friends.
func (ds *DatabaseService) GetFriends(userID int64) ([]models.Friendship, error) {
	return ds.queryFriendships(`
		SELECT f.id, f.user_id, f.friend_id, f.status, f.created_at, f.updated_at, u.nickname
		FROM friendships f JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ? AND f.status = ? ORDER BY u.nickname`,
		userID, string(models.FriendAccepted))
}

// GetPendingRequests returns requests awaiting the user's decision.
// FriendNickname carries the requester's display name.
func (ds *DatabaseService) GetPendingRequests(userID int64) ([]models.Friendship, error) {
	return ds.queryFriendships(`
		SELECT f.id, f.user_id, f.friend_id, f.status, f.created_at, f.updated_at, u.nickname
		FROM friendships f JOIN users u ON u.id = f.user_id
		WHERE f.friend_id = ? AND f.status = ? ORDER BY f.id DESC`,
		userID, string(models.FriendPending))
}

// GetBlockedFriends returns the users this user has blocked.
func (ds *DatabaseService) GetBlockedFriends(userID int64) ([]models.Friendship, error) {
	return ds.queryFriendships(`
		SELECT f.id, f.user_id, f.friend_id, f.status, f.created_at, f.updated_at, u.nickname
		FROM friendships f JOIN users u ON u.id = f.friend_id
		WHERE f.user_id = ? AND f.status = ? ORDER BY u.nickname`,
		userID, string(models.FriendBlocked))
}

// HasBlockedEdge reports whether either user has blocked the other.
func (ds *DatabaseService) HasBlockedEdge(a, b int64) (bool, error) {
	var n int
	err := ds.DB.QueryRow(
		"SELECT COUNT(*) FROM friendships WHERE status = ? AND ((user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?))",
		string(models.FriendBlocked), a, b, b, a).Scan(&n)
	return n > 0, err
}

// --- Private messages ---

// SendMessage delivers a message unless a blocked edge exists between
// the two users.
func (ds *DatabaseService) SendMessage(senderID, receiverID int64, title, content string) (int64, error) {
	blocked, err := ds.HasBlockedEdge(senderID, receiverID)
	if err != nil {
		return 0, err
	}
	if blocked {
		return 0, ErrFriendshipBlocked
	}

	res, err := ds.DB.Exec(
		"INSERT INTO messages (sender_id, receiver_id, title, content, created_at) VALUES (?, ?, ?, ?, ?)",
		senderID, receiverID, title, content, utils.GetSQLTime())
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return res.LastInsertId()
}

const messageSelect = `
	SELECT m.id, m.sender_id, m.receiver_id, m.title, m.content, m.is_read,
	       m.sender_deleted, m.receiver_deleted, m.created_at, s.nickname, r.nickname
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.receiver_id`

func scanMessage(s interface{ Scan(...any) error }) (*models.Message, error) {
	var m models.Message
	err := s.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Title, &m.Content, &m.IsRead,
		&m.SenderDeleted, &m.ReceiverDeleted, &m.CreatedAt, &m.SenderNickname, &m.ReceiverNickname)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (ds *DatabaseService) GetMessage(messageID int64) (*models.Message, error) {
	return scanMessage(ds.DB.QueryRow(messageSelect+" WHERE m.id = ?", messageID))
}

func (ds *DatabaseService) queryMessages(query string, args ...any) ([]models.Message, error) {
	rows, err := ds.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close message rows", "error", err)
		}
	}()

	var list []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// GetInbox returns messages the user received and has not deleted.
func (ds *DatabaseService) GetInbox(userID int64) ([]models.Message, error) {
	return ds.queryMessages(messageSelect+" WHERE m.receiver_id = ? AND m.receiver_deleted = 0 ORDER BY m.id DESC", userID)
}

// GetOutbox returns messages the user sent and has not deleted.
func (ds *DatabaseService) GetOutbox(userID int64) ([]models.Message, error) {
	return ds.queryMessages(messageSelect+" WHERE m.sender_id = ? AND m.sender_deleted = 0 ORDER BY m.id DESC", userID)
}

// GetUnreadCount returns how many received messages are still unread.
func (ds *DatabaseService) GetUnreadCount(userID int64) (int, error) {
	var n int
	err := ds.DB.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND receiver_deleted = 0 AND is_read = 0", userID).Scan(&n)
	return n, err
}

// MarkMessageRead flags a received message as read.
func (ds *DatabaseService) MarkMessageRead(messageID, receiverID int64) error {
	_, err := ds.DB.Exec("UPDATE messages SET is_read = 1 WHERE id = ? AND receiver_id = ?", messageID, receiverID)
	return err
}

// DeleteMessage soft-deletes the caller's side of a message. The row is
// physically removed once both sides have deleted it.
func (ds *DatabaseService) DeleteMessage(messageID, userID int64) error {
	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback message delete tx", "error", rerr)
		}
	}()

	var m models.Message
	err = tx.QueryRow("SELECT sender_id, receiver_id, sender_deleted, receiver_deleted FROM messages WHERE id = ?", messageID).
		Scan(&m.SenderID, &m.ReceiverID, &m.SenderDeleted, &m.ReceiverDeleted)
	if err != nil {
		return err
	}

	switch userID {
	case m.SenderID:
		m.SenderDeleted = true
	case m.ReceiverID:
		m.ReceiverDeleted = true
	default:
		return ErrMessageNotOwned
	}

	if m.SenderDeleted && m.ReceiverDeleted {
		_, err = tx.Exec("DELETE FROM messages WHERE id = ?", messageID)
	} else {
		_, err = tx.Exec("UPDATE messages SET sender_deleted = ?, receiver_deleted = ? WHERE id = ?",
			m.SenderDeleted, m.ReceiverDeleted, messageID)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}
