package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/zafarze/gat-sub000/internal/models"
)

const userColumns = "id, email, password_hash, full_name, role, school_id, student_id, active, created_at"

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1", email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// SchoolIDs returns the primary school of the user followed by any extra schools granted.
func (r *UserRepository) SchoolIDs(ctx context.Context, user *models.User) ([]string, error) {
	ids := make([]string, 0, 1)
	if user.SchoolID != nil && *user.SchoolID != "" {
		ids = append(ids, *user.SchoolID)
	}
	var extra []string
	if err := r.db.SelectContext(ctx, &extra, `SELECT school_id FROM user_schools WHERE user_id = $1 ORDER BY school_id`, user.ID); err != nil {
		return nil, fmt.Errorf("list user schools: %w", err)
	}
	return append(ids, extra...), nil
}

// Create inserts a user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	query := "INSERT INTO users (" + userColumns + ") VALUES (:id, :email, :password_hash, :full_name, :role, :school_id, :student_id, :active, :created_at)"
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
