// ringside/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)

	// Static file server for locally stored uploads
	mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.UploadDir()))))

	// Public pages
	mux.Get("/", MakeHandler(app, HandleHome))
	mux.Get("/boards", MakeHandler(app, HandleBoardList))
	mux.Get("/board/{board}", MakeHandler(app, HandleBoard))
	mux.Get("/board/{board}/{postID}", MakeHandler(app, HandlePostView))

	// Accounts
	mux.Post("/register", MakeHandler(app, HandleRegister))
	mux.Post("/login", MakeHandler(app, HandleLogin))
	mux.Post("/logout", MakeHandler(app, HandleLogout))
	mux.Post("/find-username", MakeHandler(app, HandleFindUsername))
	mux.Post("/reset-password/request", MakeHandler(app, HandleRequestPasswordReset))
	mux.Post("/reset-password", MakeHandler(app, HandleResetPassword))

	// Content actions
	mux.Post("/board/{board}/write", MakeHandler(app, HandleWritePost))
	mux.Post("/post/{postID}/edit", MakeHandler(app, HandleEditPost))
	mux.Post("/post/{postID}/delete", MakeHandler(app, HandleDeletePost))
	mux.Post("/post/{postID}/verify", MakeHandler(app, HandleVerifyPost))
	mux.Post("/post/{postID}/comment", MakeHandler(app, HandleWriteComment))
	mux.Post("/comment/{commentID}/delete", MakeHandler(app, HandleDeleteComment))
	mux.Post("/comment/{commentID}/verify", MakeHandler(app, HandleVerifyComment))

	// Logged-in area
	mux.Group(func(r chi.Router) {
		r.Use(RequireLogin)
		r.Get("/profile", MakeHandler(app, HandleProfile))
		r.Post("/profile/edit", MakeHandler(app, HandleEditProfile))
		r.Post("/profile/password", MakeHandler(app, HandleChangePassword))
		r.Post("/post/{postID}/like", MakeHandler(app, HandleToggleLike))

		r.Get("/friends", MakeHandler(app, HandleFriendList))
		r.Post("/friends/request", MakeHandler(app, HandleFriendRequest))
		r.Post("/friends/accept", MakeHandler(app, HandleFriendAccept))
		r.Post("/friends/reject", MakeHandler(app, HandleFriendReject))
		r.Post("/friends/remove", MakeHandler(app, HandleFriendRemove))
		r.Post("/friends/block", MakeHandler(app, HandleFriendBlock))
		r.Post("/friends/unblock", MakeHandler(app, HandleFriendUnblock))

		r.Get("/messages", MakeHandler(app, HandleInbox))
		r.Get("/messages/sent", MakeHandler(app, HandleOutbox))
		r.Post("/messages/send", MakeHandler(app, HandleSendMessage))
		r.Get("/messages/{messageID}", MakeHandler(app, HandleReadMessage))
		r.Post("/messages/{messageID}/delete", MakeHandler(app, HandleDeleteMessage))
	})

	// Admin console
	mux.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/blocks", MakeHandler(app, HandleBlockList))
		r.Post("/block-ip", MakeHandler(app, HandleBlockIP))
		r.Post("/unblock-ip", MakeHandler(app, HandleUnblockIP))
		r.Post("/block-user", MakeHandler(app, HandleBlockUser))
		r.Post("/unblock-user", MakeHandler(app, HandleUnblockUser))
		r.Post("/set-vip", MakeHandler(app, HandleSetVIP))
		r.Get("/ads", MakeHandler(app, HandleAdList))
		r.Post("/ads", MakeHandler(app, HandleCreateAd))
		r.Post("/ads/{adID}/toggle", MakeHandler(app, HandleToggleAd))
		r.Post("/ads/{adID}/delete", MakeHandler(app, HandleDeleteAd))
		r.Post("/notices", MakeHandler(app, HandleCreateNotice))
		r.Post("/notices/{noticeID}/toggle", MakeHandler(app, HandleToggleNotice))
		r.Post("/notices/{noticeID}/delete", MakeHandler(app, HandleDeleteNotice))
		r.Post("/backup-db", MakeHandler(app, HandleDatabaseBackup))
	})

	return mux
}
