package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"vidstream/internal/apperr"
	"vidstream/internal/events"
	"vidstream/pkg/models"
)

// Publisher receives an event after each committed toggle.
type Publisher interface {
	Publish(e events.Event) bool
}

// Ledger owns the video_likes and follows tables and the counters derived from them.
type Ledger struct {
	db  *sqlx.DB
	pub Publisher
}

// NewLedger accepts a nil publisher.
func NewLedger(db *sqlx.DB, pub Publisher) *Ledger {
	return &Ledger{db: db, pub: pub}
}

// ToggleLike flips the like of userID on videoID and writes the recounted total back to videos.like_count.
func (l *Ledger) ToggleLike(ctx context.Context, userID, videoID int64) (models.LikeResult, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Khóa dòng video trước: các toggle cùng video chạy tuần tự, COUNT luôn thấy bản mới nhất.
	locked, err := lockRow(ctx, tx, `UPDATE videos SET like_count = like_count WHERE id = ?`, videoID)
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("lock video: %w", err)
	}
	if !locked {
		return models.LikeResult{}, apperr.NotFound("video not found")
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM video_likes WHERE user_id = ? AND video_id = ?`), userID, videoID)
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("delete like: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("delete like: %w", err)
	}

	liked := removed == 0
	if liked {
		// conflict = đã like bởi request song song, coi như no-op
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO video_likes (user_id, video_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, video_id) DO NOTHING
		`), userID, videoID, time.Now().UTC()); err != nil {
			return models.LikeResult{}, fmt.Errorf("insert like: %w", err)
		}
	}

	var count int64
	if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM video_likes WHERE video_id = ?`), videoID); err != nil {
		return models.LikeResult{}, fmt.Errorf("count likes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE videos SET like_count = ? WHERE id = ?`), count, videoID); err != nil {
		return models.LikeResult{}, fmt.Errorf("update like_count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.LikeResult{}, fmt.Errorf("commit tx: %w", err)
	}

	typ := events.TypeUnlike
	if liked {
		typ = events.TypeLike
	}
	e := events.NewEvent(typ, userID)
	e.VideoID = videoID
	e.Count = count
	l.publish(e)

	return models.LikeResult{Liked: liked, LikeCount: count}, nil
}

// ToggleFollow flips whether followerID follows followingID. Self-follow fails before touching the store.
func (l *Ledger) ToggleFollow(ctx context.Context, followerID, followingID int64) (models.FollowResult, error) {
	if followerID == followingID {
		return models.FollowResult{}, apperr.InvalidOperation("cannot follow yourself")
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.FollowResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	locked, err := lockRow(ctx, tx, `UPDATE users SET is_active = is_active WHERE id = ? AND is_active = TRUE`, followingID)
	if err != nil {
		return models.FollowResult{}, fmt.Errorf("lock user: %w", err)
	}
	if !locked {
		return models.FollowResult{}, apperr.NotFound("user not found")
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM follows WHERE follower_id = ? AND following_id = ?`), followerID, followingID)
	if err != nil {
		return models.FollowResult{}, fmt.Errorf("delete follow: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return models.FollowResult{}, fmt.Errorf("delete follow: %w", err)
	}

	following := removed == 0
	if following {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO follows (follower_id, following_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (follower_id, following_id) DO NOTHING
		`), followerID, followingID, time.Now().UTC()); err != nil {
			return models.FollowResult{}, fmt.Errorf("insert follow: %w", err)
		}
	}

	var count int64
	if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM follows WHERE following_id = ?`), followingID); err != nil {
		return models.FollowResult{}, fmt.Errorf("count followers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.FollowResult{}, fmt.Errorf("commit tx: %w", err)
	}

	typ := events.TypeUnfollow
	if following {
		typ = events.TypeFollow
	}
	e := events.NewEvent(typ, followerID)
	e.TargetUserID = followingID
	e.Count = count
	l.publish(e)

	return models.FollowResult{Following: following, FollowerCount: count}, nil
}

// IsFollowing reports whether followerID currently follows followingID.
func (l *Ledger) IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error) {
	var n int
	err := l.db.GetContext(ctx, &n, l.db.Rebind(`
		SELECT COUNT(*) FROM follows WHERE follower_id = ? AND following_id = ?
	`), followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return n > 0, nil
}

// Following lists the active users userID follows, most recent first.
func (l *Ledger) Following(ctx context.Context, userID int64) ([]models.Connection, error) {
	out := []models.Connection{}
	err := l.db.SelectContext(ctx, &out, l.db.Rebind(`
		SELECT u.id, u.username, u.display_name, u.role, f.created_at AS since
		FROM follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = ? AND u.is_active = TRUE
		ORDER BY f.created_at DESC, f.id DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	return out, nil
}

// Followers lists the active users following userID, most recent first.
func (l *Ledger) Followers(ctx context.Context, userID int64) ([]models.Connection, error) {
	out := []models.Connection{}
	err := l.db.SelectContext(ctx, &out, l.db.Rebind(`
		SELECT u.id, u.username, u.display_name, u.role, f.created_at AS since
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = ? AND u.is_active = TRUE
		ORDER BY f.created_at DESC, f.id DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return out, nil
}

// lockRow runs a no-op UPDATE so the row stays write-locked until the tx ends.
// It reports false when no row matched.
func lockRow(ctx context.Context, tx *sqlx.Tx, query string, id int64) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(query), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Ledger) publish(e events.Event) {
	if l.pub == nil {
		return
	}
	l.pub.Publish(e)
}
