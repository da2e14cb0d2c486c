package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"posthub.org/internal/audit"
	"posthub.org/internal/auth"
	"posthub.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	msgCouldNotValidate = "could not validate credentials"
	msgTokenRevoked     = "token has been revoked"
)

// withAuth resolves the bearer token into a user and stores both on the
// request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.RecordAuthEvent("validate", "missing")
			unauthorized(w, r, msgCouldNotValidate)
			return
		}

		user, err := a.auth.ValidateRequest(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrTokenRevoked):
				rejectToken(w, r, "revoked", msgTokenRevoked)
			case errors.Is(err, auth.ErrExpiredToken):
				rejectToken(w, r, "expired", msgCouldNotValidate)
			case auth.IsAuthFailure(err):
				rejectToken(w, r, "invalid", msgCouldNotValidate)
			default:
				obs.RecordAuthEvent("validate", "error")
				obs.Logger().ErrorContext(r.Context(), "token validation failed",
					"request_id", RequestIDFromContext(r.Context()), "error", err)
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		obs.RecordAuthEvent("validate", "ok")
		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func rejectToken(w http.ResponseWriter, r *http.Request, reason, msg string) {
	obs.RecordAuthEvent("validate", reason)
	_ = audit.LogEvent(r.Context(), audit.EventTokenRejected, map[string]any{
		"reason": reason,
		"path":   r.URL.Path,
	})
	unauthorized(w, r, msg)
}

func unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, r, http.StatusUnauthorized, msg)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
