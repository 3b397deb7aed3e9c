package handler

import (
	"errors"
	"net/http"

	"pdfqa/internal/catalog"
	"pdfqa/internal/middleware"
	"pdfqa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler serves the routes a user calls on their own account.
type UserHandler interface {
	UpdatePassword(c *gin.Context)
	Delete(c *gin.Context)
}

type userHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewUserHandler(authService service.AuthService, logger *zap.Logger) UserHandler {
	return &userHandler{authService: authService, logger: logger}
}

// UpdatePassword handles POST /api/user/update-password
func (h *userHandler) UpdatePassword(c *gin.Context) {
	var req NewPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	username := c.GetString(middleware.UsernameKey)
	err := h.authService.UpdatePassword(c.Request.Context(), username, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			fail(c, h.logger, http.StatusBadRequest, catalog.BadRequestBodyNotFound, err)
		case errors.Is(err, service.ErrInvalidPassword):
			fail(c, h.logger, http.StatusBadRequest, catalog.BadRequestBodyNotValid, err)
		case errors.Is(err, service.ErrUserNotFound):
			fail(c, h.logger, http.StatusBadRequest, catalog.InvalidUser, err)
		default:
			fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		}
		return
	}

	success(c, http.StatusOK, "Password updated successfully!", nil)
}

// Delete handles POST /api/user/delete
func (h *userHandler) Delete(c *gin.Context) {
	username := c.GetString(middleware.UsernameKey)
	if err := h.authService.DeleteUser(c.Request.Context(), username); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			fail(c, h.logger, http.StatusBadRequest, catalog.InvalidUser, err)
			return
		}
		fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		return
	}

	success(c, http.StatusOK, "User deleted successfully!", nil)
}
