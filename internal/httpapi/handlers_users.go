package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/middleware"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type profileRequest struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	profile, err := a.engine.Profile(r.Context(), p.AccountID)
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	profile, err := a.engine.UpdateProfile(r.Context(), p.AccountID, staysafe.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    profile,
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	err := a.engine.ChangePassword(r.Context(), p.AccountID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
	case errors.Is(err, staysafe.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "Current password is incorrect")
	default:
		a.writeEngineError(w, r, err)
	}
}
