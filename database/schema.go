package database

const schema = `
CREATE TABLE IF NOT EXISTS boards (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	route TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	access TEXT NOT NULL DEFAULT 'public', -- public, anonymous, vip_yellow, vip_blue
	sort_order INTEGER DEFAULT 0
);
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	nickname TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	is_admin BOOLEAN DEFAULT 0,
	is_vip INTEGER DEFAULT 0, -- 0 none, 1 yellow, 2 blue
	created_at DATETIME NOT NULL,
	last_login DATETIME
);
CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	board_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL DEFAULT 0, -- 0 for anonymous content
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	images_data TEXT DEFAULT '',
	video_data TEXT DEFAULT '[]',
	view_count INTEGER DEFAULT 0,
	is_anonymous BOOLEAN DEFAULT 0,
	ip_address TEXT,
	anonymous_password TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (board_id) REFERENCES boards(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL,
	is_anonymous BOOLEAN DEFAULT 0,
	ip_address TEXT,
	anonymous_password TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS post_likes (
	post_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (post_id, user_id),
	FOREIGN KEY (post_id) REFERENCES posts(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id INTEGER NOT NULL,
	receiver_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	is_read BOOLEAN DEFAULT 0,
	sender_deleted BOOLEAN DEFAULT 0,
	receiver_deleted BOOLEAN DEFAULT 0,
	created_at DATETIME NOT NULL
);
-- Friendships are directed edges; acceptance materializes the mirror edge.
CREATE TABLE IF NOT EXISTS friendships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	friend_id INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending', -- pending, accepted, rejected, blocked
	created_at DATETIME NOT NULL,
	updated_at DATETIME,
	UNIQUE (user_id, friend_id)
);
CREATE TABLE IF NOT EXISTS blocked_ips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ip_address TEXT NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL,
	expires_at DATETIME -- NULL = permanent
);
CREATE TABLE IF NOT EXISTS blocked_users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL,
	expires_at DATETIME -- NULL = permanent
);
CREATE TABLE IF NOT EXISTS ads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	position TEXT NOT NULL, -- banner, side, footer, center
	image_path TEXT NOT NULL,
	link_url TEXT DEFAULT '',
	is_active BOOLEAN DEFAULT 1,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS notices (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	is_active BOOLEAN DEFAULT 1,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS password_reset_tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	token TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	used BOOLEAN DEFAULT 0,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL
);

-- --- INDEXES ---
CREATE INDEX IF NOT EXISTS idx_posts_board_created ON posts(board_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);
CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, receiver_deleted, is_read);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, sender_deleted);
CREATE INDEX IF NOT EXISTS idx_friendships_friend ON friendships(friend_id, status);
CREATE INDEX IF NOT EXISTS idx_blocked_ips_addr ON blocked_ips(ip_address);
CREATE INDEX IF NOT EXISTS idx_blocked_users_user ON blocked_users(user_id);
CREATE INDEX IF NOT EXISTS idx_ads_position ON ads(position, is_active);
`
