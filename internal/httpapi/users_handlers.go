package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"posthub.org/internal/audit"
	"posthub.org/internal/auth"
	"posthub.org/internal/obs"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		obs.RecordAuthEvent("register", "failure")
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: invalid input: "))
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, r, http.StatusConflict, "username already registered")
		default:
			internalError(w, r, "register", err)
		}
		return
	}

	obs.RecordAuthEvent("register", "success")
	_ = audit.LogEvent(r.Context(), audit.EventRegister, map[string]any{
		"username": user.Username,
	})
	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Username: user.Username})
}

// login accepts the OAuth2 password form: username and password fields.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	token, err := a.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.RecordAuthEvent("login", "failure")
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
				"username":  strings.TrimSpace(username),
				"remote_ip": clientIP(r),
			})
			unauthorized(w, r, "incorrect username or password")
			return
		}
		obs.RecordAuthEvent("login", "error")
		internalError(w, r, "login", err)
		return
	}

	obs.RecordAuthEvent("login", "success")
	_ = audit.LogEvent(r.Context(), audit.EventLogin, map[string]any{
		"username":   strings.TrimSpace(username),
		"expires_at": token.ExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
	})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.TokenFromContext(r.Context())
	if err := a.auth.Logout(r.Context(), token); err != nil {
		if auth.IsAuthFailure(err) {
			unauthorized(w, r, msgCouldNotValidate)
			return
		}
		obs.RecordAuthEvent("logout", "error")
		internalError(w, r, "logout", err)
		return
	}
	obs.RecordAuthEvent("logout", "success")
	_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "successfully logged out"})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.auth.ChangePassword(r.Context(), user.Username, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusBadRequest, "incorrect password")
		return
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "auth: invalid input: "))
		return
	default:
		internalError(w, r, "change password", err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPasswordChanged, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Username: user.Username})
}
