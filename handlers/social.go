// ringside/handlers/social.go
package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"ringside/config"
	"ringside/database"
	"ringside/models"
)

// resolveTarget finds the other user of a social action by nickname.
func resolveTarget(r *http.Request, app App) (*models.User, string) {
	nickname := strings.TrimSpace(r.FormValue("nickname"))
	if nickname == "" {
		return nil, "Nickname is required"
	}
	user, err := app.DB().GetUserByNickname(nickname)
	if err != nil {
		if err != sql.ErrNoRows {
			app.Logger().Error("Failed to look up user by nickname", "error", err)
		}
		return nil, "User not found"
	}
	return user, ""
}

// HandleFriendList returns accepted friends, pending requests, and blocks.
func HandleFriendList(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	friends, err := app.DB().GetFriends(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load friends", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load friends", app)
		return
	}
	pending, err := app.DB().GetPendingRequests(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load pending requests", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load friends", app)
		return
	}
	blocked, err := app.DB().GetBlockedFriends(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load blocked users", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load friends", app)
		return
	}

	friendshipList := func(list []models.Friendship) []map[string]interface{} {
		out := make([]map[string]interface{}, 0, len(list))
		for _, f := range list {
			out = append(out, map[string]interface{}{
				"nickname":   f.FriendNickname,
				"status":     string(f.Status),
				"created_at": f.CreatedAt,
			})
		}
		return out
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"friends": friendshipList(friends),
		"pending": friendshipList(pending),
		"blocked": friendshipList(blocked),
	}, app)
}

// HandleFriendRequest sends a friend request by nickname.
func HandleFriendRequest(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}

	err := app.DB().SendFriendRequest(sess.UserID, target.ID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, map[string]string{"redirect": "/friends"}, app)
	case errors.Is(err, database.ErrFriendshipBlocked):
		respondError(w, http.StatusForbidden, "Cannot send a request to this user", app)
	case errors.Is(err, database.ErrFriendshipExists):
		respondError(w, http.StatusConflict, "A friend request already exists between you", app)
	default:
		app.Logger().Error("Failed to send friend request", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to send friend request", app)
	}
}

// HandleFriendAccept accepts a pending request from the named user.
func HandleFriendAccept(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if err := app.DB().AcceptFriendRequest(sess.UserID, target.ID); err != nil {
		if errors.Is(err, database.ErrFriendshipNone) {
			respondError(w, http.StatusNotFound, "No pending request from that user", app)
			return
		}
		app.Logger().Error("Failed to accept friend request", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to accept friend request", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/friends"}, app)
}

// HandleFriendReject declines a pending request from the named user.
func HandleFriendReject(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if err := app.DB().RejectFriendRequest(sess.UserID, target.ID); err != nil {
		if errors.Is(err, database.ErrFriendshipNone) {
			respondError(w, http.StatusNotFound, "No pending request from that user", app)
			return
		}
		app.Logger().Error("Failed to reject friend request", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to reject friend request", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/friends"}, app)
}

// HandleFriendRemove drops an existing friendship in both directions.
func HandleFriendRemove(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if err := app.DB().RemoveFriend(sess.UserID, target.ID); err != nil {
		if errors.Is(err, database.ErrFriendshipNone) {
			respondError(w, http.StatusNotFound, "No friendship with that user", app)
			return
		}
		app.Logger().Error("Failed to remove friend", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to remove friend", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/friends"}, app)
}

// HandleFriendBlock blocks the named user, severing any existing friendship.
func HandleFriendBlock(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if target.ID == sess.UserID {
		respondError(w, http.StatusBadRequest, "Cannot block yourself", app)
		return
	}
	if err := app.DB().BlockFriend(sess.UserID, target.ID); err != nil {
		app.Logger().Error("Failed to block user", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to block user", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/friends"}, app)
}

// HandleFriendUnblock lifts the caller's block on the named user.
func HandleFriendUnblock(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if err := app.DB().UnblockFriend(sess.UserID, target.ID); err != nil {
		if errors.Is(err, database.ErrFriendshipNone) {
			respondError(w, http.StatusNotFound, "That user is not blocked", app)
			return
		}
		app.Logger().Error("Failed to unblock user", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to unblock user", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/friends"}, app)
}

// --- Private messages ---

func messageListJSON(list []models.Message) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, m := range list {
		out = append(out, map[string]interface{}{
			"id":         m.ID,
			"title":      m.Title,
			"sender":     m.SenderNickname,
			"receiver":   m.ReceiverNickname,
			"is_read":    m.IsRead,
			"created_at": m.CreatedAt,
		})
	}
	return out
}

// HandleInbox lists received messages.
func HandleInbox(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	messages, err := app.DB().GetInbox(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load inbox", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load messages", app)
		return
	}
	unread, err := app.DB().GetUnreadCount(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to count unread", "user_id", sess.UserID, "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messageListJSON(messages),
		"unread":   unread,
	}, app)
}

// HandleOutbox lists sent messages.
func HandleOutbox(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	messages, err := app.DB().GetOutbox(sess.UserID)
	if err != nil {
		app.Logger().Error("Failed to load outbox", "user_id", sess.UserID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load messages", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messageListJSON(messages)}, app)
}

// HandleSendMessage delivers a private message by nickname.
func HandleSendMessage(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if target.ID == sess.UserID {
		respondError(w, http.StatusBadRequest, "Cannot message yourself", app)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	content := strings.TrimSpace(r.FormValue("content"))
	switch {
	case title == "" || content == "":
		respondError(w, http.StatusBadRequest, "Title and content are required", app)
		return
	case len(title) > config.MaxMessageTitleLen:
		respondError(w, http.StatusBadRequest, "Title is too long", app)
		return
	case len(content) > config.MaxMessageContentLen:
		respondError(w, http.StatusBadRequest, "Content is too long", app)
		return
	}

	if _, err := app.DB().SendMessage(sess.UserID, target.ID, title, content); err != nil {
		if errors.Is(err, database.ErrFriendshipBlocked) {
			respondError(w, http.StatusForbidden, "Cannot message this user", app)
			return
		}
		app.Logger().Error("Failed to send message", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to send message", app)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"redirect": "/messages"}, app)
}

// HandleReadMessage returns a single message the caller is party to, marking
// it read when the receiver opens it.
func HandleReadMessage(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	messageID, ok := urlParamInt64(r, "messageID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid message id", app)
		return
	}
	m, err := app.DB().GetMessage(messageID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Message not found", app)
		return
	}
	// A deleted side no longer sees the message.
	isSender := m.SenderID == sess.UserID && !m.SenderDeleted
	isReceiver := m.ReceiverID == sess.UserID && !m.ReceiverDeleted
	if !isSender && !isReceiver {
		respondError(w, http.StatusNotFound, "Message not found", app)
		return
	}

	if isReceiver && !m.IsRead {
		if err := app.DB().MarkMessageRead(m.ID, sess.UserID); err != nil {
			app.Logger().Error("Failed to mark message read", "message", m.ID, "error", err)
		}
		m.IsRead = true
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":         m.ID,
		"title":      m.Title,
		"content":    m.Content,
		"sender":     m.SenderNickname,
		"receiver":   m.ReceiverNickname,
		"is_read":    m.IsRead,
		"created_at": m.CreatedAt,
	}, app)
}

// HandleDeleteMessage removes the caller's copy of a message.
func HandleDeleteMessage(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	messageID, ok := urlParamInt64(r, "messageID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid message id", app)
		return
	}
	if err := app.DB().DeleteMessage(messageID, sess.UserID); err != nil {
		if err == sql.ErrNoRows || errors.Is(err, database.ErrMessageNotOwned) {
			respondError(w, http.StatusNotFound, "Message not found", app)
			return
		}
		app.Logger().Error("Failed to delete message", "message", messageID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete message", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/messages"}, app)
}
