package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JojayD/codecanvas-sub000/internal/middleware"
	"github.com/JojayD/codecanvas-sub000/internal/service"
)

// AuthHandler handles register, login and guest identity endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates the handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	if authService == nil {
		panic("AuthService cannot be nil for AuthHandler")
	}
	return &AuthHandler{authService: authService}
}

// RegisterRequest carries the signup credentials.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: username and password are required")
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
	})
}

// LoginRequest carries the login credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: username and password are required")
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{
		"token":          token,
		"actor_id":       service.ActorID(user.ID),
		"username":       user.Username,
		"current_streak": user.CurrentStreak,
		"longest_streak": user.LongestStreak,
	})
}

// Guest handles POST /api/auth/guest. It issues a short-lived anonymous
// identity so unauthenticated visitors can join rooms.
func (h *AuthHandler) Guest(c *gin.Context) {
	actorID, token, err := h.authService.GuestIdentity(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{
		"token":    token,
		"actor_id": actorID,
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	uid, ok := userID.(uint)
	if !ok || uid == 0 {
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.authService.Me(c.Request.Context(), uid)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, gin.H{
		"id":             user.ID,
		"username":       user.Username,
		"actor_id":       service.ActorID(user.ID),
		"current_streak": user.CurrentStreak,
		"longest_streak": user.LongestStreak,
		"last_login_at":  user.LastLoginAt,
	})
}
