// ringside/database/database.go
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ringside/models"
	"ringside/utils"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseService is the central struct for all database operations.
type DatabaseService struct {
	DB         *sql.DB
	logger     *slog.Logger
	dsn        string
	boardCache map[string]*models.Board
	cacheMu    sync.RWMutex
}

// defaultBoards is seeded on first startup.
var defaultBoards = []models.Board{
	{Route: "free", Name: "Free Talk", Access: models.AccessPublic, SortOrder: 1},
	{Route: "anonymous", Name: "Anonymous", Access: models.AccessAnonymous, SortOrder: 2},
	{Route: "news", Name: "Fight News", Access: models.AccessPublic, SortOrder: 3},
	{Route: "analysis", Name: "Fight Analysis", Access: models.AccessPublic, SortOrder: 4},
	{Route: "question", Name: "Q&A", Access: models.AccessPublic, SortOrder: 5},
	{Route: "support", Name: "Support", Access: models.AccessPublic, SortOrder: 6},
	{Route: "ringside-yellow", Name: "Ringside Yellow", Access: models.AccessVIPYellow, SortOrder: 7},
	{Route: "ringside-blue", Name: "Ringside Blue", Access: models.AccessVIPBlue, SortOrder: 8},
}

// InitDB connects to the database, runs migrations, and seeds default data.
func InitDB(dataSourceName string, logger *slog.Logger) (*DatabaseService, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Run the base schema to ensure all tables exist.
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to execute base schema: %w", err)
	}

	// Run versioned migrations
	if err := runMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	// Seed database if empty
	var boardCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM boards").Scan(&boardCount); err == nil && boardCount == 0 {
		for _, b := range defaultBoards {
			_, err = db.Exec("INSERT INTO boards (route, name, access, sort_order) VALUES (?, ?, ?, ?)",
				b.Route, b.Name, string(b.Access), b.SortOrder)
			if err != nil {
				return nil, fmt.Errorf("failed to seed board %q: %w", b.Route, err)
			}
		}
		logger.Info("Seeded default boards", "count", len(defaultBoards))
	}

	logger.Info("Database initialized and cache ready.")

	return &DatabaseService{
		DB:         db,
		logger:     logger,
		dsn:        dataSourceName,
		boardCache: make(map[string]*models.Board),
	}, nil
}

// BackupDatabase performs an online backup of the live SQLite database using VACUUM INTO.
func (ds *DatabaseService) BackupDatabase(backupDir string) (string, error) {
	if backupDir == "" {
		return "", fmt.Errorf("backup directory is not configured")
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("could not create backup directory %s: %w", backupDir, err)
	}

	timestamp := time.Now().UTC().Format("2006-01-02_15-04-05")
	backupPath := filepath.Join(backupDir, fmt.Sprintf("ringside_backup_%s.db", timestamp))

	ds.logger.Info("Starting database backup", "destination", backupPath)

	_, err := ds.DB.Exec("VACUUM INTO ?", backupPath)
	if err != nil {
		// If backup fails, attempt to remove the potentially incomplete file
		if removeErr := os.Remove(backupPath); removeErr != nil && !os.IsNotExist(removeErr) {
			ds.logger.Error("Failed to remove incomplete backup file", "path", backupPath, "error", removeErr)
		}
		return "", fmt.Errorf("VACUUM INTO command failed: %w", err)
	}

	return backupPath, nil
}

// runMigrations applies all un-applied migrations.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	var latestVersion uint
	err := db.QueryRow("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1").Scan(&latestVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("could not get db version: %w", err)
	}

	logger.Info("Current database schema version", "version", latestVersion)

	for _, m := range allMigrations {
		if m.Version > latestVersion {
			logger.Info("Applying migration", "version", m.Version)
			tx, err := db.Begin()
			if err != nil {
				return err
			}

			if _, err := tx.Exec(m.Query); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to apply migration v%d: %w", m.Version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.Version, utils.GetSQLTime()); err != nil {
				if rerr := tx.Rollback(); rerr != nil {
					logger.Error("Failed to rollback migration record", "version", m.Version, "error", rerr)
				}
				return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
			}

			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit migration v%d: %w", m.Version, err)
			}
			logger.Info("Successfully applied migration", "version", m.Version)
		}
	}
	return nil
}

// GetBoard fetches board configuration by route, using the instance's cache.
func (ds *DatabaseService) GetBoard(route string) (*models.Board, error) {
	ds.cacheMu.RLock()
	board, ok := ds.boardCache[route]
	ds.cacheMu.RUnlock()
	if ok {
		return board, nil
	}

	var b models.Board
	var access string
	err := ds.DB.QueryRow("SELECT id, route, name, access, sort_order FROM boards WHERE route = ?", route).Scan(
		&b.ID, &b.Route, &b.Name, &access, &b.SortOrder,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("board '%s' not found", route)
		}
		return nil, fmt.Errorf("db error getting board '%s': %w", route, err)
	}
	b.Access = models.BoardAccess(access)

	ds.cacheMu.Lock()
	ds.boardCache[route] = &b
	ds.cacheMu.Unlock()
	return &b, nil
}

// GetBoards returns all boards ordered for navigation.
func (ds *DatabaseService) GetBoards() ([]models.Board, error) {
	rows, err := ds.DB.Query("SELECT id, route, name, access, sort_order FROM boards ORDER BY sort_order, id")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ds.logger.Error("Failed to close rows in GetBoards", "error", err)
		}
	}()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		var access string
		if err := rows.Scan(&b.ID, &b.Route, &b.Name, &access, &b.SortOrder); err != nil {
			return nil, err
		}
		b.Access = models.BoardAccess(access)
		boards = append(boards, b)
	}
	return boards, rows.Err()
}
