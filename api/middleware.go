package api

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/models"
)

// Headers identifying the caller. Sign-in happens upstream of this service,
// which trusts the gateway to set them.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
)

var knownRoles = map[string]bool{
	models.RoleLitigant:     true,
	models.RoleAdvocate:     true,
	models.RoleCourtOfficer: true,
	models.RoleJudge:        true,
}

// ActorMiddleware reads the caller from the request headers and rejects
// requests that carry none
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		id, err := primitive.ObjectIDFromHex(r.Header.Get(UserIDHeader))
		role := r.Header.Get(UserRoleHeader)
		if err != nil || !knownRoles[role] {
			zap.S().Warnw("unauthorized",
				"url", r.URL.String(),
				"role", role,
				"requestId", RequestID(r.Context()))
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		ctx := WithActor(r.Context(), casework.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
