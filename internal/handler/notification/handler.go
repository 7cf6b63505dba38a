package notification

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/middleware"
	"github.com/partaj/referral-api/internal/service/notification"
	"github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/httputil"
)

type Handler struct {
	svc *notification.Service
}

func NewHandler(svc *notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("/", h.List)
		notifications.GET("/unread_count/", h.UnreadCount)
		notifications.POST("/:id/mark_read/", h.MarkRead)
	}
}

func (h *Handler) List(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	notifications, err := h.svc.ListForUser(c.Request.Context(), middleware.UserID(c), unreadOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, notifications)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	count, err := h.svc.CountUnread(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"count": count})
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid id", err))
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": "read"})
}
