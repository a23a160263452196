package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// HouseholdService owns household creation, invitations and membership.
//
// Membership states per (household, user):
//
//	pending_response -> active    AcceptInvite
//	pending_response -> rejected  RejectInvite
//	pending_response -> expired   ExpireInvites
//	rejected|expired -> pending_response  Invite again
//
// Removing a member deletes the row.
type HouseholdService struct {
	store     HouseholdStore
	users     UserDirectory
	tx        TxRunner
	publisher InvitePublisher
	owners    *cache.LRU[uuid.UUID, uuid.UUID]
	now       func() time.Time
	logger    *slog.Logger
}

// NewHouseholdService creates the service. publisher and owners may be nil.
func NewHouseholdService(store HouseholdStore, users UserDirectory, tx TxRunner, publisher InvitePublisher, owners *cache.LRU[uuid.UUID, uuid.UUID]) *HouseholdService {
	return &HouseholdService{
		store:     store,
		users:     users,
		tx:        tx,
		publisher: publisher,
		owners:    owners,
		now:       time.Now,
		logger:    slog.Default().With("service", "household"),
	}
}

// Invitation is the outcome of Invite, used to notify the invitee once the
// surrounding transaction has committed.
type Invitation struct {
	Household   core.Household
	User        core.User
	Placeholder bool
}

// CreateHousehold creates a household owned by ownerID together with the
// owner's active membership. A user can own one household.
func (s *HouseholdService) CreateHousehold(ctx context.Context, name string, ownerID uuid.UUID) (core.Household, error) {
	name, err := core.ValidateHouseholdName(name)
	if err != nil {
		return core.Household{}, err
	}

	h := core.Household{ID: uuid.New(), Name: name, OwnerID: ownerID}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.store.GetHouseholdByOwner(ctx, ownerID)
		switch {
		case err == nil:
			return core.ErrOwnerAlreadyHasHousehold
		case !errors.Is(err, core.ErrNotFound):
			return err
		}
		if err := s.store.CreateHousehold(ctx, h); err != nil {
			return err
		}
		return s.store.AddMember(ctx, core.HouseholdMember{
			HouseholdID: h.ID,
			UserID:      ownerID,
			Role:        core.RoleOwner,
			Status:      core.StatusActive,
			CreatedAt:   s.now().UTC(),
		})
	})
	if err != nil {
		return core.Household{}, err
	}

	s.logger.InfoContext(ctx, "Household created", "household_id", h.ID, "owner_id", ownerID)
	return h, nil
}

// Invite adds email to the household as a pending member, creating a
// placeholder user when the address is unknown. Inviting someone who is
// already pending or active fails with core.ErrMemberExists; a rejected or
// expired invite is reopened.
//
// Invite does not publish anything. Pass the Invitation to Notify once the
// enclosing transaction has committed, or use InviteAndNotify.
func (s *HouseholdService) Invite(ctx context.Context, householdID uuid.UUID, email string) (Invitation, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return Invitation{}, err
	}

	var inv Invitation
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invite(ctx, householdID, email)
		return err
	})
	if err != nil {
		return Invitation{}, err
	}
	return inv, nil
}

// InviteAndNotify runs Invite and publishes the notification. It must not be
// called inside another transaction.
func (s *HouseholdService) InviteAndNotify(ctx context.Context, householdID uuid.UUID, email string) (Invitation, error) {
	inv, err := s.Invite(ctx, householdID, email)
	if err != nil {
		return Invitation{}, err
	}
	s.Notify(ctx, inv)
	return inv, nil
}

func (s *HouseholdService) invite(ctx context.Context, householdID uuid.UUID, email string) (Invitation, error) {
	h, err := s.store.GetHousehold(ctx, householdID)
	if err != nil {
		return Invitation{}, err
	}

	placeholder := false
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		user, err = s.users.CreateInvitedUser(ctx, email)
		placeholder = true
	}
	if err != nil {
		return Invitation{}, fmt.Errorf("resolve invitee: %w", err)
	}

	existing, err := s.store.GetMember(ctx, householdID, user.ID)
	switch {
	case errors.Is(err, core.ErrMemberNotFound):
		err = s.store.AddMember(ctx, core.HouseholdMember{
			HouseholdID: householdID,
			UserID:      user.ID,
			Role:        core.RoleMember,
			Status:      core.StatusPendingResponse,
			CreatedAt:   s.now().UTC(),
		})
		if err != nil {
			return Invitation{}, err
		}
	case err != nil:
		return Invitation{}, err
	case existing.Status == core.StatusPendingResponse || existing.Status == core.StatusActive:
		return Invitation{}, core.ErrMemberExists
	default:
		ok, err := s.store.ReopenInvite(ctx, householdID, user.ID, s.now().UTC())
		if err != nil {
			return Invitation{}, err
		}
		if !ok {
			return Invitation{}, core.ErrMemberExists
		}
	}

	s.logger.InfoContext(ctx, "Household invite created",
		"household_id", householdID,
		"user_id", user.ID,
		"placeholder", placeholder)
	return Invitation{Household: h, User: user, Placeholder: placeholder}, nil
}

// Notify publishes an invitation message. Failures are logged only.
func (s *HouseholdService) Notify(ctx context.Context, inv Invitation) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping invite message", "user_id", inv.User.ID)
		return
	}
	err := s.publisher.PublishHouseholdInvited(ctx, &amqp.HouseholdInvitedMessage{
		HouseholdID:   inv.Household.ID,
		HouseholdName: inv.Household.Name,
		UserID:        inv.User.ID,
		Email:         inv.User.Email,
		Placeholder:   inv.Placeholder,
		Timestamp:     s.now().UTC(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish invite message",
			"household_id", inv.Household.ID,
			"user_id", inv.User.ID,
			"error", err)
	}
}

// AcceptInvite activates a pending membership.
func (s *HouseholdService) AcceptInvite(ctx context.Context, userID, householdID uuid.UUID) error {
	return s.respond(ctx, userID, householdID, core.StatusActive)
}

// RejectInvite rejects a pending membership.
func (s *HouseholdService) RejectInvite(ctx context.Context, userID, householdID uuid.UUID) error {
	return s.respond(ctx, userID, householdID, core.StatusRejected)
}

func (s *HouseholdService) respond(ctx context.Context, userID, householdID uuid.UUID, to core.MemberStatus) error {
	ok, err := s.store.TransitionMember(ctx, householdID, userID, core.StatusPendingResponse, to)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrInviteNotFound
	}
	s.logger.InfoContext(ctx, "Household invite answered",
		"household_id", householdID,
		"user_id", userID,
		"status", to)
	return nil
}

// ExpireInvites expires invites left pending for longer than maxAge.
func (s *HouseholdService) ExpireInvites(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := s.store.ExpireInvites(ctx, s.now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Expired household invites", "count", n)
	}
	return n, nil
}

// IsOwner reports whether userID owns householdID. Unknown households are
// not owned by anyone.
func (s *HouseholdService) IsOwner(ctx context.Context, userID, householdID uuid.UUID) (bool, error) {
	if s.owners != nil {
		if owner, ok := s.owners.Get(householdID); ok {
			return owner == userID, nil
		}
	}
	h, err := s.store.GetHousehold(ctx, householdID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.owners != nil {
		s.owners.Set(householdID, h.OwnerID)
	}
	return h.OwnerID == userID, nil
}

// IsActiveMember reports whether userID is an active member of householdID.
// The owner is always an active member.
func (s *HouseholdService) IsActiveMember(ctx context.Context, userID, householdID uuid.UUID) (bool, error) {
	m, err := s.store.GetMember(ctx, householdID, userID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Status == core.StatusActive, nil
}

// RemoveMember deletes a membership. The owner's own membership cannot be removed.
func (s *HouseholdService) RemoveMember(ctx context.Context, householdID, userID uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		m, err := s.store.GetMember(ctx, householdID, userID)
		if err != nil {
			return err
		}
		if m.Role == core.RoleOwner {
			return fmt.Errorf("remove household owner: %w", core.ErrForbidden)
		}
		ok, err := s.store.RemoveMember(ctx, householdID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrMemberNotFound
		}
		s.logger.InfoContext(ctx, "Household member removed", "household_id", householdID, "user_id", userID)
		return nil
	})
}

func (s *HouseholdService) ListMembers(ctx context.Context, householdID uuid.UUID) ([]core.HouseholdMember, error) {
	return s.store.ListMembers(ctx, householdID)
}

// ListUserHouseholds returns the households the user is an active member of.
func (s *HouseholdService) ListUserHouseholds(ctx context.Context, userID uuid.UUID) ([]core.Household, error) {
	return s.store.ListHouseholdsForUser(ctx, userID, core.StatusActive)
}

// ListPendingInvites returns the invitations awaiting the user's answer.
func (s *HouseholdService) ListPendingInvites(ctx context.Context, userID uuid.UUID) ([]core.HouseholdMember, error) {
	return s.store.ListMembershipsForUser(ctx, userID, core.StatusPendingResponse)
}
