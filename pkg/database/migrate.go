package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('creator', 'viewer')),
		display_name TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		creator_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		checksum TEXT NOT NULL DEFAULT '',
		privacy TEXT NOT NULL DEFAULT 'public' CHECK (privacy IN ('public', 'subscriber_only')),
		view_count INTEGER NOT NULL DEFAULT 0,
		like_count INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '',
		upload_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_creator ON videos(creator_id);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_privacy_date ON videos(privacy, upload_date);`,
	`CREATE TABLE IF NOT EXISTS video_likes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, video_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_video_likes_video ON video_likes(video_id);`,
	`CREATE TABLE IF NOT EXISTS follows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		follower_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		following_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (follower_id, following_id),
		CHECK (follower_id <> following_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'viewer' CHECK (role IN ('creator', 'viewer')),
		display_name VARCHAR(100) NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS videos (
		id BIGSERIAL PRIMARY KEY,
		creator_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		filename VARCHAR(255) NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		mime_type VARCHAR(100) NOT NULL DEFAULT '',
		checksum VARCHAR(64) NOT NULL DEFAULT '',
		privacy VARCHAR(16) NOT NULL DEFAULT 'public' CHECK (privacy IN ('public', 'subscriber_only')),
		view_count BIGINT NOT NULL DEFAULT 0,
		like_count BIGINT NOT NULL DEFAULT 0,
		tags VARCHAR(500) NOT NULL DEFAULT '',
		upload_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_creator ON videos(creator_id);`,
	`CREATE INDEX IF NOT EXISTS idx_videos_privacy_date ON videos(privacy, upload_date);`,
	`CREATE TABLE IF NOT EXISTS video_likes (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		video_id BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, video_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_video_likes_video ON video_likes(video_id);`,
	`CREATE TABLE IF NOT EXISTS follows (
		id BIGSERIAL PRIMARY KEY,
		follower_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		following_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (follower_id, following_id),
		CHECK (follower_id <> following_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id);`,
}

func Migrate(db *sqlx.DB) error {
	stmts := sqliteSchema
	if db.DriverName() != "sqlite3" {
		stmts = postgresSchema
	}

	for i, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate stmt %d: %w", i, err)
		}
	}
	return nil
}
