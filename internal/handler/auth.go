package handler

import (
	"errors"
	"net/http"

	"pdfqa/internal/catalog"
	"pdfqa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Refresh(c *gin.Context)
	RequestPasswordReset(c *gin.Context)
	ResetPassword(c *gin.Context)
}

type authHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, logger *zap.Logger) AuthHandler {
	return &authHandler{authService: authService, logger: logger}
}

// RegisterRequest is validated by the auth service.
type RegisterRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	SudoPassword string `json:"sudo_password"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type NewPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// Register handles POST /api/auth/register
func (h *authHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	_, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		SudoPassword: req.SudoPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation),
			errors.Is(err, service.ErrPasswordRequired),
			errors.Is(err, service.ErrInvalidPassword):
			fail(c, h.logger, http.StatusBadRequest, catalog.BadRequestBodyNotValid, err)
		case errors.Is(err, service.ErrUsernameTaken):
			fail(c, h.logger, http.StatusBadRequest, catalog.UsernameAlreadyTaken, err)
		case errors.Is(err, service.ErrEmailTaken):
			fail(c, h.logger, http.StatusBadRequest, catalog.EmailAlreadyTaken, err)
		case errors.Is(err, service.ErrSudoPasswordIncorrect):
			fail(c, h.logger, http.StatusForbidden, catalog.SudoPasswordIncorrect, err)
		default:
			fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		}
		return
	}

	success(c, http.StatusOK, "User created successfully!", nil)
}

// Login handles POST /api/auth/login
func (h *authHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginFailed) {
			fail(c, h.logger, http.StatusBadRequest, catalog.LoginFailed, err)
			return
		}
		fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		return
	}

	success(c, http.StatusOK, "Login successful!", gin.H{
		"tokens": gin.H{
			"access_token":  res.AccessToken,
			"refresh_token": res.RefreshToken,
		},
		"user": res.User,
	})
}

// Refresh handles POST /api/auth/refresh
func (h *authHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	access, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			fail(c, h.logger, http.StatusUnauthorized, catalog.TokenExpired, err)
		case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrTokenMissing):
			fail(c, h.logger, http.StatusUnauthorized, catalog.InvalidToken, err)
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, h.logger, http.StatusBadRequest, catalog.InvalidUser, err)
		default:
			fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		}
		return
	}

	success(c, http.StatusOK, "Token refreshed", gin.H{"access_token": access})
}

// RequestPasswordReset handles POST /api/auth/request-password-reset
func (h *authHandler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			fail(c, h.logger, http.StatusNotFound, catalog.InvalidUser, err)
			return
		}
		fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		return
	}

	success(c, http.StatusOK, "Password reset link sent successfully!", nil)
}

// ResetPassword handles POST /api/auth/reset_password/:token
func (h *authHandler) ResetPassword(c *gin.Context) {
	var req NewPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	err := h.authService.ResetPassword(c.Request.Context(), c.Param("token"), req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrTokenExpired):
			fail(c, h.logger, http.StatusBadRequest, catalog.InvalidToken, err)
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, h.logger, http.StatusNotFound, catalog.InvalidUser, err)
		case errors.Is(err, service.ErrPasswordRequired):
			fail(c, h.logger, http.StatusBadRequest, catalog.BadRequestBodyNotFound, err)
		case errors.Is(err, service.ErrInvalidPassword):
			fail(c, h.logger, http.StatusBadRequest, catalog.InvalidPassword, err)
		default:
			fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		}
		return
	}

	success(c, http.StatusOK, "Password reset successfully!", nil)
}
