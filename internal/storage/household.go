package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"fintrack/internal/core"
)

var (
	householdCols = []string{"h.id", "h.name", "h.owner_id"}
	memberCols    = []string{"household_id", "user_id", "role", "status", "created_at"}
)

func scanHousehold(s scanner) (core.Household, error) {
	var h core.Household
	if err := s.Scan(&h.ID, &h.Name, &h.OwnerID); err != nil {
		return core.Household{}, err
	}
	return h, nil
}

func scanMember(s scanner) (core.HouseholdMember, error) {
	var m core.HouseholdMember
	if err := s.Scan(&m.HouseholdID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt); err != nil {
		return core.HouseholdMember{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (r *SQLiteRepository) CreateHousehold(ctx context.Context, h core.Household) error {
	_, err := r.exec(ctx, r.sb.Insert("households").
		Columns("id", "name", "owner_id", "created_at").
		Values(h.ID, h.Name, h.OwnerID, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("insert household: %w", mapConstraint(err, core.ErrOwnerAlreadyHasHousehold, core.ErrNotFound))
	}
	return nil
}

func (r *SQLiteRepository) GetHousehold(ctx context.Context, id uuid.UUID) (core.Household, error) {
	return r.getHousehold(ctx, squirrel.Eq{"h.id": id})
}

func (r *SQLiteRepository) GetHouseholdByOwner(ctx context.Context, ownerID uuid.UUID) (core.Household, error) {
	return r.getHousehold(ctx, squirrel.Eq{"h.owner_id": ownerID})
}

func (r *SQLiteRepository) getHousehold(ctx context.Context, where squirrel.Eq) (core.Household, error) {
	row, err := r.queryRow(ctx, r.sb.Select(householdCols...).From("households h").Where(where))
	if err != nil {
		return core.Household{}, err
	}
	h, err := scanHousehold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Household{}, core.ErrHouseholdNotFound
	}
	if err != nil {
		return core.Household{}, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// ListHouseholdsForUser returns the households where the user has a
// membership in the given status.
func (r *SQLiteRepository) ListHouseholdsForUser(ctx context.Context, userID uuid.UUID, status core.MemberStatus) ([]core.Household, error) {
	out, err := queryAll(ctx, r, r.sb.Select(householdCols...).From("households h").
		Join("household_members m ON m.household_id = h.id").
		Where(squirrel.Eq{"m.user_id": userID, "m.status": string(status)}).
		OrderBy("h.name"), scanHousehold)
	if err != nil {
		return nil, fmt.Errorf("list households for user: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m core.HouseholdMember) error {
	_, err := r.exec(ctx, r.sb.Insert("household_members").
		Columns(memberCols...).
		Values(m.HouseholdID, m.UserID, string(m.Role), string(m.Status), m.CreatedAt.UTC()))
	if err != nil {
		return fmt.Errorf("add member: %w", mapConstraint(err, core.ErrMemberExists, core.ErrNotFound))
	}
	return nil
}

func (r *SQLiteRepository) GetMember(ctx context.Context, householdID, userID uuid.UUID) (core.HouseholdMember, error) {
	row, err := r.queryRow(ctx, r.sb.Select(memberCols...).From("household_members").
		Where(squirrel.Eq{"household_id": householdID, "user_id": userID}))
	if err != nil {
		return core.HouseholdMember{}, err
	}
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.HouseholdMember{}, core.ErrMemberNotFound
	}
	if err != nil {
		return core.HouseholdMember{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// TransitionMember moves a membership from one status to another. It reports
// false when no row in status from exists.
func (r *SQLiteRepository) TransitionMember(ctx context.Context, householdID, userID uuid.UUID, from, to core.MemberStatus) (bool, error) {
	res, err := r.exec(ctx, r.sb.Update("household_members").
		Set("status", string(to)).
		Where(squirrel.Eq{"household_id": householdID, "user_id": userID, "status": string(from)}))
	if err != nil {
		return false, fmt.Errorf("update member status: %w", err)
	}
	return rowsAffected(res)
}

// ReopenInvite resets a rejected or expired membership to a fresh pending invite.
func (r *SQLiteRepository) ReopenInvite(ctx context.Context, householdID, userID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.exec(ctx, r.sb.Update("household_members").
		Set("status", string(core.StatusPendingResponse)).
		Set("role", string(core.RoleMember)).
		Set("created_at", at.UTC()).
		Where(squirrel.Eq{
			"household_id": householdID,
			"user_id":      userID,
			"status":       []string{string(core.StatusRejected), string(core.StatusExpired)},
		}))
	if err != nil {
		return false, fmt.Errorf("reopen invite: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) RemoveMember(ctx context.Context, householdID, userID uuid.UUID) (bool, error) {
	res, err := r.exec(ctx, r.sb.Delete("household_members").
		Where(squirrel.Eq{"household_id": householdID, "user_id": userID}))
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	return rowsAffected(res)
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, householdID uuid.UUID) ([]core.HouseholdMember, error) {
	out, err := queryAll(ctx, r, r.sb.Select(memberCols...).From("household_members").
		Where(squirrel.Eq{"household_id": householdID}).
		OrderBy("created_at", "user_id"), scanMember)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return out, nil
}

// ListMembershipsForUser returns every membership row of a user in the given status.
func (r *SQLiteRepository) ListMembershipsForUser(ctx context.Context, userID uuid.UUID, status core.MemberStatus) ([]core.HouseholdMember, error) {
	out, err := queryAll(ctx, r, r.sb.Select(memberCols...).From("household_members").
		Where(squirrel.Eq{"user_id": userID, "status": string(status)}).
		OrderBy("created_at"), scanMember)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

// ExpireInvites marks pending invites created before cutoff as expired.
func (r *SQLiteRepository) ExpireInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.exec(ctx, r.sb.Update("household_members").
		Set("status", string(core.StatusExpired)).
		Where(squirrel.Eq{"status": string(core.StatusPendingResponse)}).
		Where(squirrel.Lt{"created_at": cutoff.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("expire invites: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
