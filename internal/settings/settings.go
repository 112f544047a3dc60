// Package settings persists the single global settings row. The manual
// attendance flag is read through the Accessor interface so authorization
// checks receive an injected value source instead of a package singleton.
package settings

import (
	"context"
	"database/sql"
)

type Settings struct {
	AllowManualAttendance bool `json:"allowManualAttendance"`
}

// Accessor is the read side consumed by the attendance service.
type Accessor interface {
	ManualAllowed(ctx context.Context) (bool, error)
}

// Store reads and writes the settings row.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT allow_manual_attendance FROM settings WHERE id = 1
	`).Scan(&out.AllowManualAttendance)
	return out, err
}

func (s *Store) ManualAllowed(ctx context.Context) (bool, error) {
	st, err := s.Get(ctx)
	return st.AllowManualAttendance, err
}

func (s *Store) SetManualAllowed(ctx context.Context, allowed bool) (Settings, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE settings SET allow_manual_attendance = $1 WHERE id = 1
	`, allowed)
	if err != nil {
		return Settings{}, err
	}
	return Settings{AllowManualAttendance: allowed}, nil
}
