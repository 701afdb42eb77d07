package database

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type SeedUser struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

func DemoUsers() []SeedUser {
	return []SeedUser{
		{Username: "demo_creator", Email: "creator@demo.com", Password: "password123", Role: "creator", DisplayName: "Demo Creator"},
		{Username: "demo_viewer", Email: "viewer@demo.com", Password: "password123", Role: "viewer", DisplayName: "Demo Viewer"},
	}
}

func LoadSeedUsersFromJSON(jsonPath string) ([]SeedUser, error) {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read seed json: %w", err)
	}

	var list []SeedUser
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("unmarshal seed json: %w", err)
	}
	return list, nil
}

// SeedUsers inserts users only when the users table is empty and returns how many rows were added.
func SeedUsers(db *sqlx.DB, users []SeedUser) (int, error) {
	var existing int
	if err := db.Get(&existing, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Preparex(tx.Rebind(`
		INSERT INTO users (username, email, password_hash, role, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`))
	if err != nil {
		return 0, fmt.Errorf("prepare insert user: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, u := range users {
		role := u.Role
		if role == "" {
			role = "viewer"
		}
		displayName := u.DisplayName
		if displayName == "" {
			displayName = u.Username
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return 0, fmt.Errorf("hash password for %s: %w", u.Username, err)
		}

		res, err := stmt.Exec(u.Username, u.Email, string(hash), role, displayName, now, now)
		if err != nil {
			return 0, fmt.Errorf("insert user %s: %w", u.Username, err)
		}
		aff, _ := res.RowsAffected()
		if aff > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}
