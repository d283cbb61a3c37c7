package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/middleware"
)

// writeEngineError maps the engine error taxonomy onto status codes.
// Unknown errors are logged and answered with a generic 500.
func (a *API) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		policy *staysafe.PolicyError
		locked *staysafe.LockedError
		input  *staysafe.InputError
	)
	switch {
	case errors.As(err, &policy):
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"message":    "Password does not meet requirements",
			"violations": policy.Violations,
		})
	case errors.As(err, &input):
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Validation failed",
			"errors":  []map[string]string{{"field": input.Field, "message": input.Message}},
		})
	case errors.As(err, &locked):
		middleware.WriteJSON(w, http.StatusForbidden, map[string]any{
			"message":   "Account is temporarily locked",
			"lockUntil": locked.Until.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, staysafe.ErrInvalidInput):
		middleware.WriteError(w, http.StatusBadRequest, "Validation failed")
	case errors.Is(err, staysafe.ErrPasswordReuse):
		middleware.WriteError(w, http.StatusBadRequest, "Cannot reuse a recent password")
	case errors.Is(err, staysafe.ErrAccountExists):
		middleware.WriteError(w, http.StatusConflict, "User already exists")
	case errors.Is(err, staysafe.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, staysafe.ErrOTPNoChallenge):
		middleware.WriteError(w, http.StatusUnauthorized, "No verification code pending")
	case errors.Is(err, staysafe.ErrOTPExpired):
		middleware.WriteError(w, http.StatusUnauthorized, "Verification code expired")
	case errors.Is(err, staysafe.ErrOTPMismatch):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid verification code")
	case errors.Is(err, staysafe.ErrTokenExpired):
		middleware.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"message": "Token expired",
			"code":    "token_expired",
		})
	case errors.Is(err, staysafe.ErrRefreshInvalid):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, staysafe.ErrUnauthorized):
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, staysafe.ErrPasswordExpired):
		middleware.WriteJSON(w, http.StatusForbidden, map[string]any{
			"message":         "Password has expired. Please change your password.",
			"passwordExpired": true,
		})
	case errors.Is(err, staysafe.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, "Insufficient permissions")
	case errors.Is(err, staysafe.ErrRateLimited):
		middleware.WriteError(w, http.StatusTooManyRequests, "Too many attempts, please try again later.")
	case errors.Is(err, staysafe.ErrChallengeDelivery):
		a.logger.Error("verification code delivery failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.WriteError(w, http.StatusBadGateway, "Could not send verification code")
	default:
		a.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
