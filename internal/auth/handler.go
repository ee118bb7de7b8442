package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hris-portal/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{service: service, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgetPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type loginResponse struct {
	Message string `json:"message"`
	LoginResult
}

type refreshResponse struct {
	Status string `json:"status"`
	Tokens
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err, "Error logging in")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", LoginResult: result})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	if err := h.service.Logout(r.Context(), identity); err != nil {
		h.fail(w, r, err, "Error logging out")
		return
	}

	writeMessage(w, http.StatusOK, "Logout successful")
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingToken):
			writeError(w, http.StatusUnauthorized, "Refresh token is required")
		case errors.Is(err, ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "Refresh token has expired")
		default:
			h.fail(w, r, err, "Invalid refresh token")
		}
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{Status: "success", Tokens: tokens})
}

func (h *Handler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var body forgetPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), body.Email); err != nil {
		h.fail(w, r, err, "Internal server error")
		return
	}

	writeMessage(w, http.StatusOK, "Reset password link has been sent to your email.")
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		h.fail(w, r, err, "Error resetting password")
		return
	}

	writeMessage(w, http.StatusOK, "Password reset successfully")
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	identity, _ := IdentityFromContext(r.Context())
	accountID := chi.URLParam(r, "accountId")
	if err := h.service.ChangePassword(r.Context(), identity, accountID, body.OldPassword, body.NewPassword); err != nil {
		h.fail(w, r, err, "Error changing password")
		return
	}

	writeMessage(w, http.StatusOK, "Password updated successfully")
}

// fail writes the response for err. Unclassified errors are logged and
// reported, and the caller only sees fallback.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	WriteError(w, r, h.logger, err, fallback)
}

// WriteError is shared with other packages that surface auth errors.
func WriteError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error, fallback string) {
	status, message := StatusFor(err)

	var validationErr *ValidationError
	if errors.As(err, &validationErr) && len(validationErr.Failures) > 0 {
		writeJSON(w, status, map[string]any{
			"message": validationErr.Message,
			"errors":  validationErr.Failures,
		})
		return
	}

	if status >= http.StatusInternalServerError {
		requestID := observability.RequestIDFromContext(r.Context())
		logger.Error("request_failed", map[string]any{
			"path":       r.URL.Path,
			"error":      err.Error(),
			"request_id": requestID,
		})
		if status == http.StatusInternalServerError {
			observability.CaptureError(err, requestID)
			if !errors.Is(err, ErrNotificationFailed) {
				message = fallback
			}
		}
	}

	writeError(w, status, message)
}

// DecodeJSON reads a bounded JSON body into dst, answering 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeJSON(w, r, dst)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeMessage(w, status, strings.TrimSpace(message))
}
