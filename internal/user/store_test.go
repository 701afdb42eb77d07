package user

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vidstream/internal/apperr"
	"vidstream/pkg/database"
	"vidstream/pkg/models"
)

func newTestStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:", database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	s := NewStore(db)
	s.cost = bcrypt.MinCost
	return s, db
}

func countUsers(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM users`))
	return n
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "Secret1", Role: "creator"})
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, "alice", u.DisplayName)
	require.NotEqual(t, "Secret1", u.PasswordHash)

	got, err := s.Authenticate(ctx, "alice", "Secret1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	got, err = s.Authenticate(ctx, "ALICE@example.com", "Secret1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "alice", "wrong")
	require.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	_, err = s.Authenticate(ctx, "nobody", "Secret1")
	require.True(t, apperr.Is(err, apperr.KindUnauthenticated))
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.io", Password: "Secret1"})
	require.NoError(t, err)

	_, err = s.Register(ctx, RegisterInput{Username: "alice", Email: "other@x.io", Password: "Secret1"})
	require.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = s.Register(ctx, RegisterInput{Username: "bob", Email: "A@X.io", Password: "Secret1"})
	require.True(t, apperr.Is(err, apperr.KindConflict))

	require.Equal(t, 1, countUsers(t, db))
}

func TestRegisterRaceYieldsOneRow(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Register(ctx, RegisterInput{Username: "racer", Email: "r@x.io", Password: "Secret1"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, apperr.Is(err, apperr.KindConflict), "unexpected error: %v", err)
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, countUsers(t, db))
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Register(context.Background(), RegisterInput{Username: "x", Email: "x@x.io", Password: "Secret1", Role: "admin"})
	require.True(t, apperr.Is(err, apperr.KindInvalidOperation))
}

func TestInactiveUserCannotLogin(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.io", Password: "Secret1"})
	require.NoError(t, err)
	require.NoError(t, s.SetActive(ctx, u.ID, false))

	_, err = s.Authenticate(ctx, "alice", "Secret1")
	require.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	_, err = s.PublicProfile(ctx, u.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestProfilesAndUpdate(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	creator, err := s.Register(ctx, RegisterInput{Username: "maker", Email: "m@x.io", Password: "Secret1", Role: models.RoleCreator})
	require.NoError(t, err)
	fan, err := s.Register(ctx, RegisterInput{Username: "fan", Email: "f@x.io", Password: "Secret1"})
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO follows (follower_id, following_id) VALUES (?, ?)`, fan.ID, creator.ID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO videos (creator_id, title, filename, privacy) VALUES (?, 'a', 'a.mp4', 'public'), (?, 'b', 'b.mp4', 'subscriber_only')`, creator.ID, creator.ID)
	require.NoError(t, err)

	p, err := s.Profile(ctx, creator.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), p.FollowerCount)
	require.Equal(t, int64(2), p.VideoCount)

	pub, err := s.PublicProfile(ctx, creator.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), pub.VideoCount)
	require.Equal(t, int64(1), pub.SubscriberCount)
	require.Equal(t, "maker", pub.Username)

	updated, err := s.UpdateProfile(ctx, creator.ID, "The Maker", "I make videos")
	require.NoError(t, err)
	require.Equal(t, "The Maker", updated.DisplayName)
	require.Equal(t, "I make videos", updated.Bio)

	_, err = s.UpdateProfile(ctx, 999, "x", "")
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}
