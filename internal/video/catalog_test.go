package video

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"vidstream/internal/apperr"
	"vidstream/internal/engagement"
	"vidstream/pkg/database"
	"vidstream/pkg/models"
)

type fixture struct {
	db       *sqlx.DB
	catalog  *Catalog
	creator  int64
	fan      int64
	stranger int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:", database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	f := fixture{db: db, catalog: NewCatalog(db, engagement.NewLedger(db, nil))}
	f.creator = f.addUser(t, "maker")
	f.fan = f.addUser(t, "fan")
	f.stranger = f.addUser(t, "stranger")
	_, err = db.Exec(`INSERT INTO follows (follower_id, following_id) VALUES (?, ?)`, f.fan, f.creator)
	require.NoError(t, err)
	return f
}

func (f fixture) addUser(t *testing.T, name string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, f.db.QueryRow(`INSERT INTO users (username, email, password_hash, role, display_name) VALUES (?, ?, 'x', 'creator', ?) RETURNING id`,
		name, name+"@x.io", name).Scan(&id))
	return id
}

func (f fixture) addVideo(t *testing.T, creator int64, title, privacy string) models.Video {
	t.Helper()
	v, err := f.catalog.Create(context.Background(), NewVideo{
		CreatorID: creator,
		Title:     title,
		Filename:  "video-" + title + ".mp4",
		FileSize:  10,
		MimeType:  "video/mp4",
		Privacy:   privacy,
	})
	require.NoError(t, err)
	return v
}

func (f fixture) viewCount(t *testing.T, id int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Get(&n, `SELECT view_count FROM videos WHERE id = ?`, id))
	return n
}

func TestCreateLoadsCreator(t *testing.T) {
	f := newFixture(t)
	v := f.addVideo(t, f.creator, "intro", "")
	require.NotZero(t, v.ID)
	require.Equal(t, models.PrivacyPublic, v.Privacy)
	require.Equal(t, "maker", v.CreatorUsername)
	require.False(t, v.UploadDate.IsZero())

	_, err := f.catalog.Create(context.Background(), NewVideo{CreatorID: f.creator, Title: "x", Filename: "x.mp4", Privacy: "secret"})
	require.True(t, apperr.Is(err, apperr.KindInvalidOperation))
}

func TestGetSubscriberOnlyVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.addVideo(t, f.creator, "members", models.PrivacySubscriberOnly)

	_, err := f.catalog.Get(ctx, 0, v.ID)
	require.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = f.catalog.Get(ctx, f.stranger, v.ID)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.catalog.ForStream(ctx, f.stranger, v.ID)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	require.Zero(t, f.viewCount(t, v.ID), "rejected reads never count")

	d, err := f.catalog.Get(ctx, f.fan, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), d.ViewCount)

	d, err = f.catalog.Get(ctx, f.creator, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), d.ViewCount)

	_, err = f.catalog.Get(ctx, f.fan, 999)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetCountsViewsExceptOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.addVideo(t, f.creator, "public", models.PrivacyPublic)

	for i := 0; i < 3; i++ {
		_, err := f.catalog.Get(ctx, f.creator, v.ID)
		require.NoError(t, err)
	}
	require.Zero(t, f.viewCount(t, v.ID))

	d, err := f.catalog.Get(ctx, 0, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), d.ViewCount)
	require.Nil(t, d.UserLiked)
	require.Nil(t, d.UserFollowing)

	_, err = f.catalog.Get(ctx, f.stranger, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), f.viewCount(t, v.ID))

	_, err = f.catalog.ForStream(ctx, f.stranger, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), f.viewCount(t, v.ID))
}

func TestGetViewerContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.addVideo(t, f.creator, "liked", models.PrivacyPublic)
	_, err := f.db.Exec(`INSERT INTO video_likes (user_id, video_id) VALUES (?, ?)`, f.fan, v.ID)
	require.NoError(t, err)

	d, err := f.catalog.Get(ctx, f.fan, v.ID)
	require.NoError(t, err)
	require.NotNil(t, d.UserLiked)
	require.True(t, *d.UserLiked)
	require.True(t, *d.UserFollowing)
	require.Equal(t, int64(1), d.CreatorFollowers)

	d, err = f.catalog.Get(ctx, f.stranger, v.ID)
	require.NoError(t, err)
	require.False(t, *d.UserLiked)
	require.False(t, *d.UserFollowing)
}

func TestListPublic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		f.addVideo(t, f.creator, fmt.Sprintf("clip%d", i), models.PrivacyPublic)
	}
	f.addVideo(t, f.creator, "hidden", models.PrivacySubscriberOnly)
	other := f.addVideo(t, f.stranger, "Cooking_Show", models.PrivacyPublic)

	page, err := f.catalog.ListPublic(ctx, 0, ListParams{Page: 1, Limit: 4})
	require.NoError(t, err)
	require.Equal(t, models.Pagination{Page: 1, Limit: 4, Total: 6, TotalPages: 2}, page.Pagination)
	require.Len(t, page.Videos, 4)
	require.Equal(t, other.ID, page.Videos[0].ID, "newest first")
	for _, v := range page.Videos {
		require.Equal(t, models.PrivacyPublic, v.Privacy)
		require.Nil(t, v.UserLiked)
	}

	page, err = f.catalog.ListPublic(ctx, 0, ListParams{Page: 2, Limit: 4})
	require.NoError(t, err)
	require.Len(t, page.Videos, 2)

	page, err = f.catalog.ListPublic(ctx, 0, ListParams{Search: "COOKING"})
	require.NoError(t, err)
	require.Len(t, page.Videos, 1)
	require.Equal(t, DefaultLimit, page.Pagination.Limit)

	page, err = f.catalog.ListPublic(ctx, 0, ListParams{Search: "stranger"})
	require.NoError(t, err)
	require.Len(t, page.Videos, 1, "matches creator username")

	page, err = f.catalog.ListPublic(ctx, 0, ListParams{Search: "g_s"})
	require.NoError(t, err)
	require.Len(t, page.Videos, 1, "underscore is literal")

	page, err = f.catalog.ListPublic(ctx, 0, ListParams{Search: "%"})
	require.NoError(t, err)
	require.Empty(t, page.Videos)
	require.Zero(t, page.Pagination.TotalPages)

	_, err = f.db.Exec(`INSERT INTO video_likes (user_id, video_id) VALUES (?, ?)`, f.fan, other.ID)
	require.NoError(t, err)
	page, err = f.catalog.ListPublic(ctx, f.fan, ListParams{Limit: 1})
	require.NoError(t, err)
	require.NotNil(t, page.Videos[0].UserLiked)
	require.True(t, *page.Videos[0].UserLiked)
}

func TestListParamsNormalize(t *testing.T) {
	p := ListParams{Page: -1, Limit: 500, Search: "  x "}.Normalize()
	require.Equal(t, ListParams{Page: 1, Limit: MaxLimit, Search: "x"}, p)
	require.Equal(t, DefaultLimit, ListParams{}.Normalize().Limit)
	require.Equal(t, MaxPage, ListParams{Page: math.MaxInt64}.Normalize().Page)
}

func TestListPublicHugePageIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.addVideo(t, f.creator, "only", models.PrivacyPublic)

	page, err := f.catalog.ListPublic(context.Background(), 0, ListParams{Page: math.MaxInt64 / 2, Limit: MaxLimit})
	require.NoError(t, err)
	require.Empty(t, page.Videos)
	require.Equal(t, MaxPage, page.Pagination.Page)
	require.Equal(t, int64(1), page.Pagination.Total)
}

func TestListPublicSearchFoldsNonASCII(t *testing.T) {
	f := newFixture(t)
	f.addVideo(t, f.creator, "ÉCOLE tour", models.PrivacyPublic)
	f.addVideo(t, f.creator, "unrelated", models.PrivacyPublic)

	page, err := f.catalog.ListPublic(context.Background(), 0, ListParams{Search: "école"})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Pagination.Total)
	require.Equal(t, "ÉCOLE tour", page.Videos[0].Title)
}

func TestListByCreatorIncludesAllPrivacies(t *testing.T) {
	f := newFixture(t)
	f.addVideo(t, f.creator, "a", models.PrivacyPublic)
	f.addVideo(t, f.creator, "b", models.PrivacySubscriberOnly)
	f.addVideo(t, f.stranger, "c", models.PrivacyPublic)

	list, err := f.catalog.ListByCreator(context.Background(), f.creator)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].Title)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.addVideo(t, f.creator, "gone", models.PrivacyPublic)
	_, err := f.db.Exec(`INSERT INTO video_likes (user_id, video_id) VALUES (?, ?)`, f.fan, v.ID)
	require.NoError(t, err)

	_, err = f.catalog.Delete(ctx, f.creator, 999)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.catalog.Delete(ctx, f.stranger, v.ID)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	name, err := f.catalog.Delete(ctx, f.creator, v.ID)
	require.NoError(t, err)
	require.Equal(t, "video-gone.mp4", name)

	var likes int
	require.NoError(t, f.db.Get(&likes, `SELECT COUNT(*) FROM video_likes WHERE video_id = ?`, v.ID))
	require.Zero(t, likes)

	_, err = f.catalog.Get(ctx, 0, v.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}
