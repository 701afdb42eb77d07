package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"vidstream/internal/apperr"
	"vidstream/pkg/models"
)

const (
	DefaultLimit = 12
	MaxLimit     = 50
	// MaxPage keeps (page-1)*limit inside int64 OFFSET range.
	MaxPage = math.MaxInt32
)

const videoSelect = `
	SELECT v.id, v.creator_id, u.username AS creator_username, u.display_name AS creator_display_name,
	       v.title, v.description, v.filename, v.file_size, v.mime_type, v.checksum, v.privacy,
	       v.view_count, v.like_count, v.tags, v.upload_date
	FROM videos v
	JOIN users u ON u.id = v.creator_id`

type NewVideo struct {
	CreatorID   int64
	Title       string
	Description string
	Filename    string
	FileSize    int64
	MimeType    string
	Checksum    string
	Privacy     string
	Tags        string
}

type ListParams struct {
	Page   int
	Limit  int
	Search string
}

// Normalize applies the paging defaults and caps.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// FollowChecker answers the subscription question behind subscriber_only videos.
type FollowChecker interface {
	IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error)
}

// Catalog owns the videos table and the visibility rules for reading it.
type Catalog struct {
	db      *sqlx.DB
	follows FollowChecker
}

func NewCatalog(db *sqlx.DB, follows FollowChecker) *Catalog {
	return &Catalog{db: db, follows: follows}
}

func (c *Catalog) Create(ctx context.Context, nv NewVideo) (models.Video, error) {
	if nv.Privacy == "" {
		nv.Privacy = models.PrivacyPublic
	}
	if !ValidPrivacy(nv.Privacy) {
		return models.Video{}, apperr.InvalidOperation("privacy must be public or subscriber_only")
	}

	var id int64
	err := c.db.QueryRowxContext(ctx, c.db.Rebind(`
		INSERT INTO videos (creator_id, title, description, filename, file_size, mime_type, checksum, privacy, tags, upload_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), nv.CreatorID, nv.Title, nv.Description, nv.Filename, nv.FileSize, nv.MimeType, nv.Checksum, nv.Privacy, nv.Tags,
		time.Now().UTC()).Scan(&id)
	if err != nil {
		return models.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return c.load(ctx, id)
}

// Get returns a video the viewer may see and counts the view unless the viewer owns it.
// viewerID is 0 for anonymous requests.
func (c *Catalog) Get(ctx context.Context, viewerID, id int64) (models.VideoDetail, error) {
	v, err := c.visible(ctx, viewerID, id)
	if err != nil {
		return models.VideoDetail{}, err
	}

	if viewerID != v.CreatorID {
		if _, err := c.db.ExecContext(ctx, c.db.Rebind(`UPDATE videos SET view_count = view_count + 1 WHERE id = ?`), id); err != nil {
			return models.VideoDetail{}, fmt.Errorf("count view: %w", err)
		}
		v.ViewCount++
	}

	d := models.VideoDetail{Video: v}
	if err := c.db.GetContext(ctx, &d.CreatorFollowers,
		c.db.Rebind(`SELECT COUNT(*) FROM follows WHERE following_id = ?`), v.CreatorID); err != nil {
		return models.VideoDetail{}, fmt.Errorf("count creator followers: %w", err)
	}

	if viewerID != 0 {
		var liked bool
		err := c.db.GetContext(ctx, &liked, c.db.Rebind(`
			SELECT EXISTS (SELECT 1 FROM video_likes WHERE user_id = ? AND video_id = ?)
		`), viewerID, id)
		if err != nil {
			return models.VideoDetail{}, fmt.Errorf("load viewer like: %w", err)
		}
		following, err := c.follows.IsFollowing(ctx, viewerID, v.CreatorID)
		if err != nil {
			return models.VideoDetail{}, fmt.Errorf("load viewer follow: %w", err)
		}
		d.UserLiked = &liked
		d.UserFollowing = &following
	}
	return d, nil
}

// ForStream applies the same visibility rule as Get without counting a view.
func (c *Catalog) ForStream(ctx context.Context, viewerID, id int64) (models.Video, error) {
	return c.visible(ctx, viewerID, id)
}

// ListPublic pages through public videos, newest first, optionally filtered by a
// case-insensitive substring of title, description or creator username.
func (c *Catalog) ListPublic(ctx context.Context, viewerID int64, p ListParams) (models.VideoPage, error) {
	p = p.Normalize()

	where := `WHERE v.privacy = 'public'`
	var args []any
	if p.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(p.Search)) + "%"
		where += ` AND (LOWER(v.title) LIKE ? ESCAPE '\' OR LOWER(v.description) LIKE ? ESCAPE '\' OR LOWER(u.username) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern, pattern)
	}

	var total int64
	if err := c.db.GetContext(ctx, &total,
		c.db.Rebind(`SELECT COUNT(*) FROM videos v JOIN users u ON u.id = v.creator_id `+where), args...); err != nil {
		return models.VideoPage{}, fmt.Errorf("count public videos: %w", err)
	}

	query := `
		SELECT v.id, v.creator_id, u.username AS creator_username, u.display_name AS creator_display_name,
		       v.title, v.description, v.filename, v.file_size, v.mime_type, v.checksum, v.privacy,
		       v.view_count, v.like_count, v.tags, v.upload_date,
		       EXISTS (SELECT 1 FROM video_likes l WHERE l.video_id = v.id AND l.user_id = ?) AS user_liked
		FROM videos v
		JOIN users u ON u.id = v.creator_id
		` + where + `
		ORDER BY v.upload_date DESC, v.id DESC
		LIMIT ? OFFSET ?`
	listArgs := append([]any{viewerID}, args...)
	listArgs = append(listArgs, p.Limit, (p.Page-1)*p.Limit)

	var rows []struct {
		models.Video
		Liked bool `db:"user_liked"`
	}
	if err := c.db.SelectContext(ctx, &rows, c.db.Rebind(query), listArgs...); err != nil {
		return models.VideoPage{}, fmt.Errorf("list public videos: %w", err)
	}

	videos := make([]models.Video, 0, len(rows))
	for _, r := range rows {
		v := r.Video
		if viewerID != 0 {
			liked := r.Liked
			v.UserLiked = &liked
		}
		videos = append(videos, v)
	}

	return models.VideoPage{
		Videos: videos,
		Pagination: models.Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: int((total + int64(p.Limit) - 1) / int64(p.Limit)),
		},
	}, nil
}

// ListByCreator returns every video of a creator regardless of privacy.
func (c *Catalog) ListByCreator(ctx context.Context, creatorID int64) ([]models.Video, error) {
	out := []models.Video{}
	err := c.db.SelectContext(ctx, &out,
		c.db.Rebind(videoSelect+` WHERE v.creator_id = ? ORDER BY v.upload_date DESC, v.id DESC`), creatorID)
	if err != nil {
		return nil, fmt.Errorf("list creator videos: %w", err)
	}
	return out, nil
}

// Delete removes a video and its likes when userID owns it, returning the stored filename.
func (c *Catalog) Delete(ctx context.Context, userID, id int64) (string, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		CreatorID int64  `db:"creator_id"`
		Filename  string `db:"filename"`
	}
	err = tx.GetContext(ctx, &row, tx.Rebind(`SELECT creator_id, filename FROM videos WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("video not found")
	}
	if err != nil {
		return "", fmt.Errorf("load video: %w", err)
	}
	if row.CreatorID != userID {
		return "", apperr.Forbidden("you can only delete your own videos")
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM video_likes WHERE video_id = ?`), id); err != nil {
		return "", fmt.Errorf("delete likes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM videos WHERE id = ?`), id); err != nil {
		return "", fmt.Errorf("delete video: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}
	return row.Filename, nil
}

func ValidPrivacy(p string) bool {
	return p == models.PrivacyPublic || p == models.PrivacySubscriberOnly
}

func (c *Catalog) load(ctx context.Context, id int64) (models.Video, error) {
	var v models.Video
	err := c.db.GetContext(ctx, &v, c.db.Rebind(videoSelect+` WHERE v.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Video{}, apperr.NotFound("video not found")
	}
	if err != nil {
		return models.Video{}, fmt.Errorf("get video %d: %w", id, err)
	}
	return v, nil
}

// visible loads a video and checks it against the viewer: subscriber_only needs the owner or a follower.
func (c *Catalog) visible(ctx context.Context, viewerID, id int64) (models.Video, error) {
	v, err := c.load(ctx, id)
	if err != nil {
		return models.Video{}, err
	}
	if v.Privacy != models.PrivacySubscriberOnly || viewerID == v.CreatorID {
		return v, nil
	}
	if viewerID == 0 {
		return models.Video{}, apperr.Unauthenticated("login required to view this video")
	}

	ok, err := c.follows.IsFollowing(ctx, viewerID, v.CreatorID)
	if err != nil {
		return models.Video{}, fmt.Errorf("check subscription: %w", err)
	}
	if !ok {
		return models.Video{}, apperr.Forbidden("subscribe to the creator to view this video")
	}
	return v, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
