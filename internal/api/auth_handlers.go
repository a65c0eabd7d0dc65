package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/Zuhair246/kitab4u-sub000/internal/api/middleware"
	"github.com/Zuhair246/kitab4u-sub000/internal/auth"
	"github.com/Zuhair246/kitab4u-sub000/internal/domain/user"
	"github.com/Zuhair246/kitab4u-sub000/internal/events"
	"github.com/Zuhair246/kitab4u-sub000/internal/infrastructure/session"
)

// AuthHandlers serves registration, login and email verification.
type AuthHandlers struct {
	users     *user.Service
	jwt       *auth.JWTService
	sessions  *session.Store
	publisher Publisher
}

// Publisher emits events for the notifier; nil disables it.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

func NewAuthHandlers(users *user.Service, jwt *auth.JWTService, sessions *session.Store, pub Publisher) *AuthHandlers {
	return &AuthHandlers{users: users, jwt: jwt, sessions: sessions, publisher: pub}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.users.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.setAuthCookies(w, r, u)
	respondJSON(w, http.StatusCreated, map[string]any{
		"user":    toUserResponse(u),
		"message": "Registration successful",
	})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.setAuthCookies(w, r, u)
	respondJSON(w, http.StatusOK, map[string]any{
		"user":    toUserResponse(u),
		"message": "Login successful",
	})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearAuthCookies(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Refresh rotates the token pair from a valid refresh token.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwt.ParseRefresh(cookie.Value)
	if err != nil {
		h.clearAuthCookies(w)
		respondDomainError(w, err)
		return
	}

	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.clearAuthCookies(w)
		respondJSONError(w, "User not found", http.StatusUnauthorized)
		return
	}
	if !u.Active {
		h.clearAuthCookies(w)
		respondJSONError(w, "Account is blocked", http.StatusForbidden)
		return
	}

	h.setAuthCookies(w, r, u)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed"})
}

// Me returns the authenticated account.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// RequestOTP generates a fresh email verification code and hands it to
// the notifier for delivery.
func (h *AuthHandlers) RequestOTP(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	u, err := h.users.Get(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	code, err := h.sessions.NewOTP(r.Context(), u.Email)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if h.publisher != nil {
		ev := events.New(events.TypeOTPRequested, "", u.ID, 0)
		ev.Detail = code
		if err := h.publisher.Publish(r.Context(), u.ID, ev); err != nil {
			log.Printf("[Auth] Failed to publish OTP event for user %s: %v", u.ID, err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

// VerifyOTP consumes the code sent to the user's email.
func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	u, err := h.users.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	ok, err := h.sessions.VerifyOTP(r.Context(), u.Email, req.Code)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !ok {
		respondJSONError(w, "Invalid or expired code", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

func (h *AuthHandlers) setAuthCookies(w http.ResponseWriter, r *http.Request, u *user.User) {
	pair, err := h.jwt.Issue(u.ID, u.Name, u.Role)
	if err != nil {
		respondJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	secure := r.TLS != nil
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    pair.RefreshToken,
		Path:     "/api/auth/refresh",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandlers) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name: "access_token", Value: "", Path: "/", MaxAge: -1, HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name: "refresh_token", Value: "", Path: "/api/auth/refresh", MaxAge: -1, HttpOnly: true,
	})
}
