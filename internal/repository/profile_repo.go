package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quad/internal/database"
	"quad/internal/models"
)

// ProfileRepository handles the base profile and role profile tables
type ProfileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateProfile inserts a base profile. A duplicate id returns ErrAlreadyExists.
func (r *ProfileRepository) CreateProfile(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, full_name, role, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.FullName, p.Role, p.Email, p.CreatedAt, p.UpdatedAt)
	if r.db.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a base profile by id
func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, full_name, role, email, created_at, updated_at
		FROM profiles
		WHERE id = ?
	`
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.FullName,
		&p.Role,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// CreateStudentProfile inserts a student profile. A duplicate id returns ErrAlreadyExists.
func (r *ProfileRepository) CreateStudentProfile(ctx context.Context, sp *models.StudentProfile) error {
	query := `
		INSERT INTO student_profiles (id, full_name, age, grade, school, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, sp.ID, sp.FullName, sp.Age, sp.Grade, sp.School, sp.CreatedAt)
	if r.db.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create student profile: %w", err)
	}
	return nil
}

// GetStudentProfile retrieves a student profile by id
func (r *ProfileRepository) GetStudentProfile(ctx context.Context, id string) (*models.StudentProfile, error) {
	query := `
		SELECT id, full_name, age, grade, school, created_at
		FROM student_profiles
		WHERE id = ?
	`
	sp := &models.StudentProfile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sp.ID,
		&sp.FullName,
		&sp.Age,
		&sp.Grade,
		&sp.School,
		&sp.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student profile: %w", err)
	}
	return sp, nil
}

// CreateCounsellorProfile inserts a counsellor profile. A duplicate id returns ErrAlreadyExists.
func (r *ProfileRepository) CreateCounsellorProfile(ctx context.Context, cp *models.CounsellorProfile) error {
	query := `
		INSERT INTO counsellor_profiles (id, full_name, created_at)
		VALUES (?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, cp.ID, cp.FullName, cp.CreatedAt)
	if r.db.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create counsellor profile: %w", err)
	}
	return nil
}

// GetCounsellorProfile retrieves a counsellor profile by id
func (r *ProfileRepository) GetCounsellorProfile(ctx context.Context, id string) (*models.CounsellorProfile, error) {
	query := `
		SELECT id, full_name, created_at
		FROM counsellor_profiles
		WHERE id = ?
	`
	cp := &models.CounsellorProfile{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&cp.ID, &cp.FullName, &cp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get counsellor profile: %w", err)
	}
	return cp, nil
}
