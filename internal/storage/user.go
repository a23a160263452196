package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"fintrack/internal/core"
)

var userCols = []string{"id", "email", "first_name", "last_name", "password_hash", "email_confirmed", "created_at"}

func scanUser(s scanner) (core.User, error) {
	var u core.User
	if err := s.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.EmailConfirmed, &u.CreatedAt); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.exec(ctx, r.sb.Insert("users").
		Columns(userCols...).
		Values(u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.EmailConfirmed, u.CreatedAt.UTC()))
	if err != nil {
		return fmt.Errorf("insert user: %w", mapConstraint(err, core.ErrEmailTaken, nil))
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id uuid.UUID) (core.User, error) {
	return r.getUser(ctx, squirrel.Eq{"id": id})
}

// GetUserByEmail matches case-insensitively.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.getUser(ctx, squirrel.Eq{"email": email})
}

func (r *SQLiteRepository) getUser(ctx context.Context, where squirrel.Eq) (core.User, error) {
	row, err := r.queryRow(ctx, r.sb.Select(userCols...).From("users").Where(where))
	if err != nil {
		return core.User{}, err
	}
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CompleteRegistration fills in the profile and credentials of an existing
// user and marks the address confirmed.
func (r *SQLiteRepository) CompleteRegistration(ctx context.Context, u core.User) error {
	res, err := r.exec(ctx, r.sb.Update("users").
		Set("first_name", u.FirstName).
		Set("last_name", u.LastName).
		Set("password_hash", u.PasswordHash).
		Set("email_confirmed", true).
		Where(squirrel.Eq{"id": u.ID, "email_confirmed": false}))
	if err != nil {
		return fmt.Errorf("complete registration: %w", err)
	}
	ok, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrEmailTaken
	}
	return nil
}
