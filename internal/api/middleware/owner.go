package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/husaynirfan1/lukisan-api/internal/api/shared"
)

// OwnerHeader is the header the upstream gateway uses to convey the
// authenticated principal. Authentication itself happens upstream;
// this service only requires that some principal is present.
const OwnerHeader = "X-Owner-ID"

// RequireOwner extracts the owner id from the gateway header into the
// request context, rejecting requests without a valid one.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := uuid.Parse(r.Header.Get(OwnerHeader))
		if err != nil || ownerID == uuid.Nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized,
				"Missing or invalid owner identity")
			return
		}

		ctx := context.WithValue(r.Context(), shared.OwnerIDContextKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
