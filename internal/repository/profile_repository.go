package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"focusbeat/backend/internal/model"
)

var ErrNotFound = errors.New("not found")

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO profiles (id, name, passphrase_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		profile.ID,
		profile.Name,
		profile.PassphraseHash,
		formatTime(profile.CreatedAt),
		formatTime(profile.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetByName(ctx context.Context, name string) (*model.Profile, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, name, passphrase_hash, created_at, updated_at
		 FROM profiles
		 WHERE name = ?`,
		name,
	)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("get profile by name: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, name, passphrase_hash, created_at, updated_at
		 FROM profiles
		 WHERE id = ?`,
		id,
	)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]model.Profile, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, name, passphrase_hash, created_at, updated_at
		 FROM profiles
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var profile model.Profile
	var createdAt string
	var updatedAt string
	if err := row.Scan(&profile.ID, &profile.Name, &profile.PassphraseHash, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse profile created_at: %w", err)
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse profile updated_at: %w", err)
	}
	profile.CreatedAt = parsedCreatedAt
	profile.UpdatedAt = parsedUpdatedAt
	return &profile, nil
}
