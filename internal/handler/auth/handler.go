package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sunpeak/console-api/internal/handler"
	"github.com/sunpeak/console-api/internal/middleware"
	"github.com/sunpeak/console-api/internal/model"
	"github.com/sunpeak/console-api/internal/service/auth"
)

type Handler struct {
	service *auth.Service
}

func NewHandler(service *auth.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW *middleware.AuthMiddleware) {
	group := rg.Group("/auth")
	group.POST("/login", h.Login)
	group.GET("/me", authMW.Authenticate(), h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrInactiveUser) {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid credentials"))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("login failed"))
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
		return
	}
	c.JSON(http.StatusOK, user)
}
