package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"fintrack/internal/log"
	"fintrack/internal/services"
)

type createHouseholdRequest struct {
	Name string `json:"name"`
}

type inviteRequest struct {
	Email string `json:"email"`
}

type inviteResponse struct {
	HouseholdID uuid.UUID `json:"household_id"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	Placeholder bool      `json:"placeholder"`
}

func (s *Server) handleListHouseholds(w http.ResponseWriter, r *http.Request) {
	hs, err := s.deps.Households.ListUserHouseholds(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(hs))
}

func (s *Server) handleCreateHousehold(w http.ResponseWriter, r *http.Request) {
	var in createHouseholdRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	h, err := s.deps.Households.CreateHousehold(r.Context(), in.Name, userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleSetupHousehold(w http.ResponseWriter, r *http.Request) {
	var in services.SetupInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Setup.SetupHousehold(r.Context(), userFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Household set up",
		log.FieldOperation, log.OpSetup,
		log.FieldHouseholdID, res.Household.ID,
		"invitations", res.Invitations)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.deps.Households.ListPendingInvites(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(invites))
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.deps.Households.ListMembers(r.Context(), householdID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var in inviteRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	inv, err := s.deps.Households.InviteAndNotify(r.Context(), householdID(r), in.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Member invited",
		log.FieldOperation, log.OpInvite,
		"invited_user_id", inv.User.ID,
		"placeholder", inv.Placeholder)
	writeJSON(w, http.StatusCreated, inviteResponse{
		HouseholdID: inv.Household.ID,
		UserID:      inv.User.ID,
		Email:       inv.User.Email,
		Placeholder: inv.Placeholder,
	})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Households.RemoveMember(r.Context(), householdID(r), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	s.respondToInvite(w, r, s.deps.Households.AcceptInvite)
}

func (s *Server) handleRejectInvite(w http.ResponseWriter, r *http.Request) {
	s.respondToInvite(w, r, s.deps.Households.RejectInvite)
}

func (s *Server) respondToInvite(w http.ResponseWriter, r *http.Request, respond func(ctx context.Context, userID, householdID uuid.UUID) error) {
	hid, err := pathUUID(r, "householdID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := respond(r.Context(), userFromContext(r.Context()), hid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
