// ringside/database/accounts.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ringside/config"
	"ringside/models"
	"ringside/utils"

	"github.com/google/uuid"
)

var (
	ErrUsernameTaken = errors.New("username is already in use")
	ErrEmailTaken    = errors.New("email is already in use")
	ErrNicknameTaken = errors.New("nickname is already in use")
	ErrTokenInvalid  = errors.New("reset token is invalid or expired")
)

const userColumns = "id, username, email, nickname, password, is_admin, is_vip, created_at, last_login"

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Nickname, &u.Password,
		&u.IsAdmin, &u.VIPTier, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account after checking field uniqueness.
// The password must already be hashed.
func (ds *DatabaseService) CreateUser(username, email, nickname, passwordHash string) (int64, error) {
	var exists int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrUsernameTaken
	}
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrEmailTaken
	}
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM users WHERE nickname = ?", nickname).Scan(&exists); err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrNicknameTaken
	}

	res, err := ds.DB.Exec("INSERT INTO users (username, email, nickname, password, created_at) VALUES (?, ?, ?, ?, ?)",
		username, email, nickname, passwordHash, utils.GetSQLTime())
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

func (ds *DatabaseService) GetUserByID(id int64) (*models.User, error) {
	return scanUser(ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (ds *DatabaseService) GetUserByUsername(username string) (*models.User, error) {
	return scanUser(ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

func (ds *DatabaseService) GetUserByNickname(nickname string) (*models.User, error) {
	return scanUser(ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE nickname = ?", nickname))
}

func (ds *DatabaseService) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(ds.DB.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

// UpdateLastLogin stamps a successful login.
func (ds *DatabaseService) UpdateLastLogin(userID int64) error {
	_, err := ds.DB.Exec("UPDATE users SET last_login = ? WHERE id = ?", utils.GetSQLTime(), userID)
	return err
}

// UpdateProfile changes the mutable account fields. Nickname uniqueness is
// re-checked because it doubles as the public display handle.
func (ds *DatabaseService) UpdateProfile(userID int64, nickname, email string) error {
	var exists int
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM users WHERE nickname = ? AND id != ?", nickname, userID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrNicknameTaken
	}
	if err := ds.DB.QueryRow("SELECT COUNT(*) FROM users WHERE email = ? AND id != ?", email, userID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrEmailTaken
	}
	_, err := ds.DB.Exec("UPDATE users SET nickname = ?, email = ? WHERE id = ?", nickname, email, userID)
	return err
}

func (ds *DatabaseService) UpdatePassword(userID int64, passwordHash string) error {
	_, err := ds.DB.Exec("UPDATE users SET password = ? WHERE id = ?", passwordHash, userID)
	return err
}

// SetVIPTier assigns a membership tier (admin operation).
func (ds *DatabaseService) SetVIPTier(userID int64, tier int) error {
	_, err := ds.DB.Exec("UPDATE users SET is_vip = ? WHERE id = ?", tier, userID)
	return err
}

// --- Password reset tokens ---

// CreateResetToken issues a fresh single-use token and invalidates any
// outstanding ones for the same account.
func (ds *DatabaseService) CreateResetToken(userID int64) (string, error) {
	tx, err := ds.DB.Begin()
	if err != nil {
		return "", err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback reset token tx", "error", err)
		}
	}()

	if _, err := tx.Exec("UPDATE password_reset_tokens SET used = 1 WHERE user_id = ? AND used = 0", userID); err != nil {
		return "", err
	}

	token := uuid.NewString()
	now := utils.GetTime()
	_, err = tx.Exec("INSERT INTO password_reset_tokens (user_id, token, created_at, expires_at) VALUES (?, ?, ?, ?)",
		userID, token, now.UTC(), now.Add(config.ResetTokenTTL).UTC())
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return token, nil
}

// GetResetToken returns a token row only if it is unused and unexpired.
func (ds *DatabaseService) GetResetToken(token string, now time.Time) (*models.ResetToken, error) {
	var t models.ResetToken
	err := ds.DB.QueryRow(
		"SELECT id, user_id, token, created_at, expires_at, used FROM password_reset_tokens WHERE token = ?", token,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.CreatedAt, &t.ExpiresAt, &t.Used)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if t.Used || now.After(t.ExpiresAt) {
		return nil, ErrTokenInvalid
	}
	return &t, nil
}

// ConsumeResetToken marks a token used and sets the new password atomically.
func (ds *DatabaseService) ConsumeResetToken(tokenID, userID int64, passwordHash string) error {
	tx, err := ds.DB.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			ds.logger.Error("Failed to rollback reset consume tx", "error", err)
		}
	}()

	res, err := tx.Exec("UPDATE password_reset_tokens SET used = 1 WHERE id = ? AND used = 0", tokenID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenInvalid
	}
	if _, err := tx.Exec("UPDATE users SET password = ? WHERE id = ?", passwordHash, userID); err != nil {
		return err
	}
	return tx.Commit()
}
