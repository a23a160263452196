package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

type userKey struct{}

func userFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userKey{}).(uuid.UUID)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authed requires a valid bearer token and stores the caller in the context.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.deps.Tokens.Validate(bearerToken(r))
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected bearer token",
				log.NewFields().
					WithComponent(log.ComponentAuth).
					WithErrorType(log.ErrorTypeAuth).
					WithError(err).
					WithClientIP(s.detector.ClientIP(r)).
					ToSlice()...)
			w.Header().Set("WWW-Authenticate", `Bearer realm="fintrack"`)
			writeError(w, r, auth.ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, userID)
		logger := log.FromContext(ctx).With(log.FieldUserID, userID.String())
		next.ServeHTTP(w, r.WithContext(log.NewContext(ctx, logger)))
	})
}

// householdGate authenticates, then lets the request through only if allow
// holds for the caller and the {householdID} path segment.
func (s *Server) householdGate(allow func(ctx context.Context, userID, householdID uuid.UUID) (bool, error), next http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		householdID, err := pathUUID(r, "householdID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		userID := userFromContext(r.Context())

		ok, err := allow(r.Context(), userID, householdID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Household access denied",
				log.NewFields().
					WithHousehold(userID.String(), householdID.String()).
					WithErrorType(log.ErrorTypeForbidden).
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
					ToSlice()...)
			writeError(w, r, core.ErrForbidden)
			return
		}

		logger := log.FromContext(r.Context()).With(log.FieldHouseholdID, householdID.String())
		next.ServeHTTP(w, r.WithContext(log.NewContext(r.Context(), logger)))
	})
}

// owner guards routes reserved to the household owner.
func (s *Server) owner(next http.HandlerFunc) http.Handler {
	return s.householdGate(s.deps.Households.IsOwner, next)
}

// member guards routes open to active members, owner included.
func (s *Server) member(next http.HandlerFunc) http.Handler {
	return s.householdGate(s.deps.Households.IsActiveMember, next)
}

// householdID is only valid behind householdGate.
func householdID(r *http.Request) uuid.UUID {
	id, _ := uuid.Parse(r.PathValue("householdID"))
	return id
}
