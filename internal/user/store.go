package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"vidstream/internal/apperr"
	"vidstream/pkg/database"
	"vidstream/pkg/models"
)

// compared against when the login name is unknown so both paths cost one bcrypt run
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

const userColumns = `id, username, email, password_hash, role, display_name, bio, is_active, created_at, updated_at`

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	Role        string
	DisplayName string
}

// Store is the credential store backed by the users table.
type Store struct {
	db   *sqlx.DB
	cost int
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, cost: bcrypt.DefaultCost}
}

// Register creates an account. Duplicate username or email yields a Conflict, including when two
// registrations race past the pre-check.
func (s *Store) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = models.RoleViewer
	}
	if in.Role != models.RoleCreator && in.Role != models.RoleViewer {
		return models.User{}, apperr.InvalidOperation("role must be creator or viewer")
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}

	var existing int64
	err := s.db.GetContext(ctx, &existing,
		s.db.Rebind(`SELECT id FROM users WHERE username = ? OR email = ? LIMIT 1`), in.Username, in.Email)
	if err == nil {
		return models.User{}, apperr.Conflict("username or email already exists")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		DisplayName:  in.DisplayName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`
		INSERT INTO users (username, email, password_hash, role, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), u.Username, u.Email, u.PasswordHash, u.Role, u.DisplayName, now, now).Scan(&u.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, apperr.Conflict("username or email already exists")
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Authenticate checks a username-or-email and password pair.
func (s *Store) Authenticate(ctx context.Context, login, password string) (models.User, error) {
	login = strings.TrimSpace(login)
	var u models.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? LIMIT 1`),
		login, strings.ToLower(login))
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return models.User{}, apperr.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load user for login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, apperr.Unauthenticated("invalid credentials")
	}
	if !u.IsActive {
		return models.User{}, apperr.Unauthenticated("account disabled")
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// Profile returns the caller's own account with follower and video counts.
func (s *Store) Profile(ctx context.Context, id int64) (models.Profile, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return models.Profile{}, err
	}
	p := models.Profile{User: u}
	if err := s.db.GetContext(ctx, &p.FollowerCount,
		s.db.Rebind(`SELECT COUNT(*) FROM follows WHERE following_id = ?`), id); err != nil {
		return models.Profile{}, fmt.Errorf("count followers: %w", err)
	}
	if err := s.db.GetContext(ctx, &p.VideoCount,
		s.db.Rebind(`SELECT COUNT(*) FROM videos WHERE creator_id = ?`), id); err != nil {
		return models.Profile{}, fmt.Errorf("count videos: %w", err)
	}
	return p, nil
}

// PublicProfile only exposes active accounts and counts public videos.
func (s *Store) PublicProfile(ctx context.Context, id int64) (models.PublicProfile, error) {
	var p models.PublicProfile
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`
		SELECT u.id, u.username, u.display_name, u.bio, u.role, u.created_at,
		       (SELECT COUNT(*) FROM videos v WHERE v.creator_id = u.id AND v.privacy = 'public') AS video_count,
		       (SELECT COUNT(*) FROM follows f WHERE f.following_id = u.id) AS subscriber_count
		FROM users u
		WHERE u.id = ? AND u.is_active = TRUE
	`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PublicProfile{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.PublicProfile{}, fmt.Errorf("get public profile %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id int64, displayName, bio string) (models.User, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users SET display_name = ?, bio = ?, updated_at = ? WHERE id = ?
	`), displayName, bio, time.Now().UTC(), id)
	if err != nil {
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, apperr.NotFound("user not found")
	}
	return s.GetByID(ctx, id)
}

// SetActive soft-disables or re-enables an account.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`),
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
