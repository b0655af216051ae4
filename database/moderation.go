// ringside/database/moderation.go
package database

import (
	"database/sql"

	"ringside/models"
	"ringside/utils"

	"time"
)

// --- IP and user blocks ---

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// BlockIP records an IP block. A zero expiresAt means permanent.
func (ds *DatabaseService) BlockIP(ip, reason string, expiresAt time.Time) error {
	_, err := ds.DB.Exec("INSERT INTO blocked_ips (ip_address, reason, created_at, expires_at) VALUES (?, ?, ?, ?)",
		ip, nullString(reason), utils.GetSQLTime(), nullTime(expiresAt))
	return err
}

func (ds *DatabaseService) UnblockIP(ip string) error {
	_, err := ds.DB.Exec("DELETE FROM blocked_ips WHERE ip_address = ?", ip)
	return err
}

// ActiveIPBlock returns the block covering ip at the given instant, or
// nil when none applies. Satisfies policy.BlockStore.
func (ds *DatabaseService) ActiveIPBlock(ip string, now time.Time) (*models.BlockedIP, error) {
	var b models.BlockedIP
	err := ds.DB.QueryRow(`
		SELECT id, ip_address, reason, created_at, expires_at FROM blocked_ips
		WHERE ip_address = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY id DESC LIMIT 1`, ip, now.UTC()).
		Scan(&b.ID, &b.IPAddress, &b.Reason, &b.CreatedAt, &b.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BlockUser records a user block. A zero expiresAt means permanent.
func (ds *DatabaseService) BlockUser(userID int64, reason string, expiresAt time.Time) error {
	_, err := ds.DB.Exec("INSERT INTO blocked_users (user_id, reason, created_at, expires_at) VALUES (?, ?, ?, ?)",
		userID, nullString(reason), utils.GetSQLTime(), nullTime(expiresAt))
	return err
}

func (ds *DatabaseService) UnblockUser(userID int64) error {
	_, err := ds.DB.Exec("DELETE FROM blocked_users WHERE user_id = ?", userID)
	return err
}

// ActiveUserBlock returns the block covering userID at the given
// instant, or nil when none applies. Satisfies policy.BlockStore.
func (ds *DatabaseService) ActiveUserBlock(userID int64, now time.Time) (*models.BlockedUser, error) {
	var b models.BlockedUser
	err := ds.DB.QueryRow(`
		SELECT id, user_id, reason, created_at, expires_at FROM blocked_users
		WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY id DESC LIMIT 1`, userID, now.UTC()).
		Scan(&b.ID, &b.UserID, &b.Reason, &b.CreatedAt, &b.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBlockedIPs lists all IP blocks for the admin console.
func (ds *DatabaseService) GetBlockedIPs() ([]models.BlockedIP, error) {
	rows, err := ds.DB.Query("SELECT id, ip_address, reason, created_at, expires_at FROM blocked_ips ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close blocked_ips rows", "error", err)
		}
	}()

	var list []models.BlockedIP
	for rows.Next() {
		var b models.BlockedIP
		if err := rows.Scan(&b.ID, &b.IPAddress, &b.Reason, &b.CreatedAt, &b.ExpiresAt); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// GetBlockedUsers lists all user blocks with nicknames for the admin console.
func (ds *DatabaseService) GetBlockedUsers() ([]models.BlockedUser, error) {
	rows, err := ds.DB.Query(`
		SELECT b.id, b.user_id, b.reason, b.created_at, b.expires_at, u.nickname
		FROM blocked_users b JOIN users u ON u.id = b.user_id ORDER BY b.id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close blocked_users rows", "error", err)
		}
	}()

	var list []models.BlockedUser
	for rows.Next() {
		var b models.BlockedUser
		if err := rows.Scan(&b.ID, &b.UserID, &b.Reason, &b.CreatedAt, &b.ExpiresAt, &b.Nickname); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// --- Ads ---

func (ds *DatabaseService) CreateAd(position, imagePath, linkURL string) (int64, error) {
	res, err := ds.DB.Exec("INSERT INTO ads (position, image_path, link_url, created_at) VALUES (?, ?, ?, ?)",
		position, imagePath, linkURL, utils.GetSQLTime())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (ds *DatabaseService) SetAdActive(adID int64, active bool) error {
	_, err := ds.DB.Exec("UPDATE ads SET is_active = ? WHERE id = ?", active, adID)
	return err
}

func (ds *DatabaseService) DeleteAd(adID int64) error {
	_, err := ds.DB.Exec("DELETE FROM ads WHERE id = ?", adID)
	return err
}

func (ds *DatabaseService) GetAd(adID int64) (*models.Ad, error) {
	var a models.Ad
	err := ds.DB.QueryRow("SELECT id, position, image_path, link_url, is_active, created_at FROM ads WHERE id = ?", adID).
		Scan(&a.ID, &a.Position, &a.ImagePath, &a.LinkURL, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetRandomAd picks one active ad for a slot, or nil when the slot is empty.
func (ds *DatabaseService) GetRandomAd(position string) (*models.Ad, error) {
	var a models.Ad
	err := ds.DB.QueryRow(`
		SELECT id, position, image_path, link_url, is_active, created_at FROM ads
		WHERE position = ? AND is_active = 1 ORDER BY RANDOM() LIMIT 1`, position).
		Scan(&a.ID, &a.Position, &a.ImagePath, &a.LinkURL, &a.IsActive, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAds lists every ad for the admin console.
func (ds *DatabaseService) GetAds() ([]models.Ad, error) {
	rows, err := ds.DB.Query("SELECT id, position, image_path, link_url, is_active, created_at FROM ads ORDER BY id DESC")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close ad rows", "error", err)
		}
	}()

	var list []models.Ad
	for rows.Next() {
		var a models.Ad
		if err := rows.Scan(&a.ID, &a.Position, &a.ImagePath, &a.LinkURL, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// --- Notices ---

func (ds *DatabaseService) CreateNotice(userID int64, title, content string) (int64, error) {
	res, err := ds.DB.Exec("INSERT INTO notices (user_id, title, content, created_at) VALUES (?, ?, ?, ?)",
		userID, title, content, utils.GetSQLTime())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (ds *DatabaseService) SetNoticeActive(noticeID int64, active bool) error {
	_, err := ds.DB.Exec("UPDATE notices SET is_active = ? WHERE id = ?", active, noticeID)
	return err
}

func (ds *DatabaseService) DeleteNotice(noticeID int64) error {
	_, err := ds.DB.Exec("DELETE FROM notices WHERE id = ?", noticeID)
	return err
}

// GetActiveNotices returns pinned notices newest first.
func (ds *DatabaseService) GetActiveNotices(limit int) ([]models.Notice, error) {
	rows, err := ds.DB.Query(`
		SELECT n.id, n.user_id, n.title, n.content, n.is_active, n.created_at, u.nickname
		FROM notices n JOIN users u ON u.id = n.user_id
		WHERE n.is_active = 1 ORDER BY n.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close notice rows", "error", err)
		}
	}()

	var list []models.Notice
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.IsActive, &n.CreatedAt, &n.Nickname); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
