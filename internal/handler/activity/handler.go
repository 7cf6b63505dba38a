package activity

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/service/activity"
	"github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/httputil"
)

// Handler serves the per-referral activity feed.
type Handler struct {
	svc *activity.Service
}

func NewHandler(svc *activity.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/referrals/:id/activities/", h.ListForReferral)
}

func (h *Handler) ListForReferral(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid id", err))
		return
	}

	activities, err := h.svc.ListForReferral(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, activities)
}
