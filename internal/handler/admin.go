package handler

import (
	"errors"
	"net/http"
	"strconv"

	"pdfqa/internal/catalog"
	"pdfqa/internal/middleware"
	"pdfqa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminHandler interface {
	DeleteUser(c *gin.Context)
	ListUsers(c *gin.Context)
}

type adminHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAdminHandler(authService service.AuthService, logger *zap.Logger) AdminHandler {
	return &adminHandler{authService: authService, logger: logger}
}

type AdminDeleteRequest struct {
	Username string `json:"username" binding:"required"`
}

// DeleteUser handles POST /api/admin/delete
func (h *adminHandler) DeleteUser(c *gin.Context) {
	var req AdminDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, h.logger, http.StatusBadRequest, bindKey(err), err)
		return
	}

	admin := c.GetString(middleware.UsernameKey)
	if err := h.authService.AdminDeleteUser(c.Request.Context(), admin, req.Username); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			fail(c, h.logger, http.StatusNotFound, catalog.BadRequestBodyNotValid, err)
			return
		}
		fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		return
	}

	success(c, http.StatusOK, "User deleted successfully", nil)
}

// ListUsers handles GET /api/admin/get-all?page=&per_page=
func (h *adminHandler) ListUsers(c *gin.Context) {
	page := queryInt(c, "page")
	perPage := queryInt(c, "per_page")

	res, err := h.authService.ListUsers(c.Request.Context(), page, perPage)
	if err != nil {
		fail(c, h.logger, http.StatusInternalServerError, catalog.InternalServerError, err)
		return
	}

	success(c, http.StatusOK, "Users retrieved successfully", gin.H{
		"users":    res.Users,
		"page":     res.Page,
		"per_page": res.PerPage,
		"total":    res.Total,
		"max_page": res.MaxPage,
	})
}

// queryInt returns 0 for a missing or malformed value; the service applies
// the defaults.
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}
