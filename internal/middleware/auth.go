package middleware

import (
	"context"
	"net/http"

	"github.com/AdamBeresnev/op-tournaments/internal/utils"
)

type ContextKey string

const PlayerIDKey ContextKey = "playerID"

// PlayerHeader carries the caller's player id. Authentication happens in
// front of this service.
const PlayerHeader = "X-Player-ID"

func RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := utils.StringOrNil(r.Header.Get(PlayerHeader))
		if playerID == nil {
			http.Error(w, "missing "+PlayerHeader+" header", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), PlayerIDKey, *playerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetPlayerIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(PlayerIDKey)
	if val == nil {
		return "", false
	}

	id, ok := val.(string)
	return id, ok
}
