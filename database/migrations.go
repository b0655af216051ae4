// ringside/database/migrations.go
package database

// migration represents a single database schema migration.
type migration struct {
	Version uint
	Query   string
}

// allMigrations holds all schema changes in order.
var allMigrations = []migration{
	{
		Version: 1,
		Query: `
-- Track when a post was last edited
ALTER TABLE posts ADD COLUMN updated_at DATETIME;

CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id);
CREATE INDEX IF NOT EXISTS idx_reset_tokens_token ON password_reset_tokens(token);
		`,
	},
	// Future migrations will be added here, e.g.:
	// {
	// 	Version: 2,
	// 	Query: `ALTER TABLE boards ADD COLUMN new_feature_flag BOOLEAN DEFAULT 0;`,
	// },
}
