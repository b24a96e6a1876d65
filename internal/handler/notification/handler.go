package notification

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sunpeak/console-api/internal/handler"
	"github.com/sunpeak/console-api/internal/middleware"
	"github.com/sunpeak/console-api/internal/model"
	"github.com/sunpeak/console-api/internal/realtime"
	"github.com/sunpeak/console-api/internal/repository"
	authService "github.com/sunpeak/console-api/internal/service/auth"
	"github.com/sunpeak/console-api/internal/service/notification"
)

// Teach gin's binding validator the notification type enum so request
// structs can declare it in their binding tags.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("notificationtype", func(fl validator.FieldLevel) bool {
			return model.NotificationType(fl.Field().String()).Valid()
		})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The console frontend is served from a separate origin; token auth
		// is what actually gates the channel.
		return true
	},
}

type Handler struct {
	service notification.Service
	authSvc *authService.Service
	hub     *realtime.Hub
}

func NewHandler(service notification.Service, authSvc *authService.Service, hub *realtime.Hub) *Handler {
	return &Handler{
		service: service,
		authSvc: authSvc,
		hub:     hub,
	}
}

// RegisterRoutes wires every notification endpoint. The read-path endpoints
// sit behind the per-user rate limiter; the websocket endpoint authenticates
// itself from the token query parameter and stays outside the HTTP auth
// middleware (the browser websocket API cannot set headers).
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW *middleware.AuthMiddleware, limiter *middleware.UserRateLimiter) {
	group := rg.Group("/notifications")
	group.GET("/ws", h.ServeWS)

	authed := group.Group("", authMW.Authenticate())
	authed.GET("", limiter.RateLimit(), h.List)
	authed.GET("/unread/count", limiter.RateLimit(), h.UnreadCount)
	authed.POST("/:id/read", limiter.RateLimit(), h.MarkRead)
	authed.DELETE("/:id", limiter.RateLimit(), h.Delete)
	authed.POST("", authMW.RequireRole(model.RoleAdmin, model.RoleManager), h.Create)
	authed.GET("/preferences", h.GetPreferences)
	authed.PUT("/preferences", h.UpdatePreferences)
}

func (h *Handler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var filter model.NotificationFilter
	if v := c.Query("is_read"); v != "" {
		isRead, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid is_read"))
			return
		}
		filter.IsRead = &isRead
	}
	if v := c.Query("type"); v != "" {
		nt := model.NotificationType(v)
		if !nt.Valid() {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification type"))
			return
		}
		filter.Type = &nt
	}
	if v := c.Query("date_from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid date_from"))
			return
		}
		filter.DateFrom = &from
	}
	if v := c.Query("date_to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid date_to"))
			return
		}
		filter.DateTo = &to
	}

	resp, err := h.service.List(c.Request.Context(), user.ID, filter, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to list notifications"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	n, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to create notification"))
		return
	}
	if n == nil {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"suppressed": true}))
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *Handler) MarkRead(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("notification not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to mark notification read"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), user.ID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, handler.NewErrorResponse("notification not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to delete notification"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	user := middleware.CurrentUser(c)

	count, err := h.service.UnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to get unread count"))
		return
	}
	// Bare integer body, matching what the console client expects.
	c.JSON(http.StatusOK, count)
}

func (h *Handler) GetPreferences(c *gin.Context) {
	user := middleware.CurrentUser(c)

	resp, err := h.service.GetPreferences(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to get preferences"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req model.NotificationPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.service.UpdatePreferences(c.Request.Context(), user.ID, req.Items)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ServeWS authenticates the push channel from the token query parameter and
// hands the upgraded connection to the hub.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing token"))
		return
	}

	user, err := h.authSvc.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	realtime.Serve(h.hub, conn, user.ID)
}
