// ringside/handlers/admin.go
package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ringside/config"
	"ringside/utils"
)

// parseBlockExpiry reads an optional block duration like "24h" or "720h".
// Empty means permanent, reported as a zero time.
func parseBlockExpiry(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.FormValue("duration"))
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Time{}, err
	}
	return utils.GetTime().Add(d), nil
}

// HandleBlockIP blocks an IP address from writing.
func HandleBlockIP(w http.ResponseWriter, r *http.Request, app App) {
	ip := strings.TrimSpace(r.FormValue("ip_address"))
	if net.ParseIP(ip) == nil {
		respondError(w, http.StatusBadRequest, "Invalid IP address", app)
		return
	}
	expiresAt, err := parseBlockExpiry(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid block duration", app)
		return
	}
	if err := app.DB().BlockIP(ip, r.FormValue("reason"), expiresAt); err != nil {
		app.Logger().Error("Failed to block IP", "ip", ip, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to block IP", app)
		return
	}
	app.Logger().Info("IP blocked", "ip", ip, "admin", GetSession(r).UserID)
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/blocks"}, app)
}

// HandleUnblockIP lifts an IP block.
func HandleUnblockIP(w http.ResponseWriter, r *http.Request, app App) {
	ip := strings.TrimSpace(r.FormValue("ip_address"))
	if ip == "" {
		respondError(w, http.StatusBadRequest, "IP address is required", app)
		return
	}
	if err := app.DB().UnblockIP(ip); err != nil {
		app.Logger().Error("Failed to unblock IP", "ip", ip, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to unblock IP", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/blocks"}, app)
}

// HandleBlockUser blocks an account from writing.
func HandleBlockUser(w http.ResponseWriter, r *http.Request, app App) {
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if target.ID == GetSession(r).UserID {
		respondError(w, http.StatusBadRequest, "Cannot block yourself", app)
		return
	}
	expiresAt, err := parseBlockExpiry(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid block duration", app)
		return
	}
	if err := app.DB().BlockUser(target.ID, r.FormValue("reason"), expiresAt); err != nil {
		app.Logger().Error("Failed to block user", "user_id", target.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to block user", app)
		return
	}
	app.Logger().Info("User blocked", "user_id", target.ID, "admin", GetSession(r).UserID)
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/blocks"}, app)
}

// HandleUnblockUser lifts a user block.
func HandleUnblockUser(w http.ResponseWriter, r *http.Request, app App) {
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	if err := app.DB().UnblockUser(target.ID); err != nil {
		app.Logger().Error("Failed to unblock user", "user_id", target.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to unblock user", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/blocks"}, app)
}

// HandleBlockList lists active and expired blocks for the console.
func HandleBlockList(w http.ResponseWriter, r *http.Request, app App) {
	ips, err := app.DB().GetBlockedIPs()
	if err != nil {
		app.Logger().Error("Failed to load IP blocks", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load blocks", app)
		return
	}
	users, err := app.DB().GetBlockedUsers()
	if err != nil {
		app.Logger().Error("Failed to load user blocks", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load blocks", app)
		return
	}

	ipList := make([]map[string]interface{}, 0, len(ips))
	for _, b := range ips {
		entry := map[string]interface{}{
			"ip_address": b.IPAddress,
			"reason":     b.Reason.String,
			"created_at": b.CreatedAt,
		}
		if b.ExpiresAt.Valid {
			entry["expires_at"] = b.ExpiresAt.Time
		}
		ipList = append(ipList, entry)
	}
	userList := make([]map[string]interface{}, 0, len(users))
	for _, b := range users {
		entry := map[string]interface{}{
			"nickname":   b.Nickname,
			"reason":     b.Reason.String,
			"created_at": b.CreatedAt,
		}
		if b.ExpiresAt.Valid {
			entry["expires_at"] = b.ExpiresAt.Time
		}
		userList = append(userList, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"blocked_ips":   ipList,
		"blocked_users": userList,
	}, app)
}

// HandleSetVIP assigns a membership tier to an account.
func HandleSetVIP(w http.ResponseWriter, r *http.Request, app App) {
	target, msg := resolveTarget(r, app)
	if msg != "" {
		respondError(w, http.StatusNotFound, msg, app)
		return
	}
	tier, err := strconv.Atoi(r.FormValue("tier"))
	if err != nil || tier < config.VIPNone || tier > config.VIPBlue {
		respondError(w, http.StatusBadRequest, "Invalid VIP tier", app)
		return
	}
	if err := app.DB().SetVIPTier(target.ID, tier); err != nil {
		app.Logger().Error("Failed to set VIP tier", "user_id", target.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to set VIP tier", app)
		return
	}
	app.Logger().Info("VIP tier changed", "user_id", target.ID, "tier", tier)
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin"}, app)
}

// --- Ads ---

var adPositions = map[string]bool{"banner": true, "side": true, "footer": true, "center": true}

// HandleCreateAd uploads an ad creative into a slot.
func HandleCreateAd(w http.ResponseWriter, r *http.Request, app App) {
	if err := r.ParseMultipartForm(config.MaxFileSize + 1024); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form data", app)
		return
	}
	position := r.FormValue("position")
	if !adPositions[position] {
		respondError(w, http.StatusBadRequest, "Invalid ad position", app)
		return
	}

	imagesData, err := processUploads(r, app)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), app)
		return
	}
	paths := []string{}
	if err := json.Unmarshal([]byte(imagesData), &paths); err != nil || len(paths) != 1 {
		respondError(w, http.StatusBadRequest, "Exactly one ad image is required", app)
		return
	}

	adID, err := app.DB().CreateAd(position, paths[0], strings.TrimSpace(r.FormValue("link_url")))
	if err != nil {
		app.Logger().Error("Failed to create ad", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create ad", app)
		return
	}
	app.Logger().Info("Ad created", "ad_id", adID, "position", position)
	respondJSON(w, http.StatusCreated, map[string]string{"redirect": "/admin/ads"}, app)
}

// HandleAdList lists every ad for the console.
func HandleAdList(w http.ResponseWriter, r *http.Request, app App) {
	ads, err := app.DB().GetAds()
	if err != nil {
		app.Logger().Error("Failed to load ads", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to load ads", app)
		return
	}
	list := make([]map[string]interface{}, 0, len(ads))
	for i := range ads {
		entry := adJSON(&ads[i])
		entry["is_active"] = ads[i].IsActive
		list = append(list, entry)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ads": list}, app)
}

// HandleToggleAd flips an ad's active flag.
func HandleToggleAd(w http.ResponseWriter, r *http.Request, app App) {
	adID, ok := urlParamInt64(r, "adID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid ad id", app)
		return
	}
	active := r.FormValue("active") == "true"
	if err := app.DB().SetAdActive(adID, active); err != nil {
		app.Logger().Error("Failed to toggle ad", "ad_id", adID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to toggle ad", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/ads"}, app)
}

// HandleDeleteAd removes an ad and its stored creative.
func HandleDeleteAd(w http.ResponseWriter, r *http.Request, app App) {
	adID, ok := urlParamInt64(r, "adID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid ad id", app)
		return
	}
	ad, err := app.DB().GetAd(adID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Ad not found", app)
		return
	}
	if err := app.DB().DeleteAd(adID); err != nil {
		app.Logger().Error("Failed to delete ad", "ad_id", adID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete ad", app)
		return
	}
	if err := app.Storage().DeleteFile(ad.ImagePath); err != nil {
		app.Logger().Error("Failed to delete ad creative", "path", ad.ImagePath, "error", err)
	}
	if err := app.Storage().DeleteFile(thumbPath(ad.ImagePath)); err != nil {
		app.Logger().Error("Failed to delete ad thumbnail", "path", ad.ImagePath, "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/ads"}, app)
}

// --- Notices ---

// HandleCreateNotice pins a site-wide notice.
func HandleCreateNotice(w http.ResponseWriter, r *http.Request, app App) {
	sess := GetSession(r)
	title := strings.TrimSpace(r.FormValue("title"))
	content := strings.TrimSpace(r.FormValue("content"))
	if title == "" || content == "" {
		respondError(w, http.StatusBadRequest, "Title and content are required", app)
		return
	}
	if len(title) > config.MaxTitleLen {
		respondError(w, http.StatusBadRequest, "Title is too long", app)
		return
	}

	noticeID, err := app.DB().CreateNotice(sess.UserID, title, content)
	if err != nil {
		app.Logger().Error("Failed to create notice", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create notice", app)
		return
	}
	app.Logger().Info("Notice created", "notice_id", noticeID)
	respondJSON(w, http.StatusCreated, map[string]string{"redirect": "/admin/notices"}, app)
}

// HandleToggleNotice flips a notice's active flag.
func HandleToggleNotice(w http.ResponseWriter, r *http.Request, app App) {
	noticeID, ok := urlParamInt64(r, "noticeID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid notice id", app)
		return
	}
	active := r.FormValue("active") == "true"
	if err := app.DB().SetNoticeActive(noticeID, active); err != nil {
		app.Logger().Error("Failed to toggle notice", "notice_id", noticeID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to toggle notice", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/notices"}, app)
}

// HandleDeleteNotice removes a notice.
func HandleDeleteNotice(w http.ResponseWriter, r *http.Request, app App) {
	noticeID, ok := urlParamInt64(r, "noticeID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid notice id", app)
		return
	}
	if err := app.DB().DeleteNotice(noticeID); err != nil {
		app.Logger().Error("Failed to delete notice", "notice_id", noticeID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete notice", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"redirect": "/admin/notices"}, app)
}

// HandleDatabaseBackup runs an online backup of the SQLite database.
func HandleDatabaseBackup(w http.ResponseWriter, r *http.Request, app App) {
	path, err := app.DB().BackupDatabase(utils.GetEnv("BACKUP_DIR", "./backups"))
	if err != nil {
		app.Logger().Error("Database backup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Backup failed", app)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"backup": path}, app)
}
