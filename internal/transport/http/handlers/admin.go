package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/transport/http/middleware"
	"github.com/yenvi12/aifshop-auth/internal/usecase"
)

// AdminHandler serves the admin-only user management endpoints.
type AdminHandler struct {
	users *usecase.UserService
	log   *zap.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(users *usecase.UserService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		users: users,
		log:   log,
	}
}

// RegisterRoutes mounts the admin endpoints on the given group. The
// group is expected to carry RequireAuth and RequireRole(ADMIN).
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.listUsers)
	rg.POST("/users/:id/promote", h.promote)
}

func (h *AdminHandler) listUsers(c *gin.Context) {
	filter := port.UserFilter{
		Search: c.Query("search"),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if role := c.Query("role"); role != "" {
		r := domain.Role(role)
		filter.Role = &r
	}
	if verified := c.Query("verified"); verified != "" {
		v, err := strconv.ParseBool(verified)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "verified must be true or false"))
			return
		}
		filter.Verified = &v
	}

	page, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		RespondWithMappedError(c, h.log, err, nil, "failed to list users")
		return
	}

	payload := make([]UserPayload, 0, len(page.Users))
	for _, user := range page.Users {
		payload = append(payload, NewUserPayload(user))
	}

	c.JSON(http.StatusOK, UserListResponse{
		Success: true,
		Users:   payload,
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

func (h *AdminHandler) promote(c *gin.Context) {
	targetID := c.Param("id")
	promotedBy, _ := middleware.GetAuthenticatedUserID(c)

	user, err := h.users.Promote(c.Request.Context(), promotedBy, targetID)
	if err != nil {
		RespondWithMappedError(c, h.log, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, "failed to promote user")
		return
	}

	c.JSON(http.StatusOK, PromoteResponse{
		Success: true,
		User:    NewUserPayload(*user),
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
