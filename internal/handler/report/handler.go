package report

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/middleware"
	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/service/report"
	"github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/httputil"
)

// Handler exposes referral reports, their versions and appendixes, and the
// validation event log layered on top of them.
type Handler struct {
	svc *report.Service
}

func NewHandler(svc *report.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/referrals/:id/report/", h.GetByReferral)

	reports := r.Group("/referralreports")
	{
		reports.GET("/:id/events/", h.ListEvents)
		reports.POST("/:id/messages/", h.AddMessage)
		reports.POST("/:id/publish/", h.Publish)
		reports.POST("/:id/appendixes/", h.AddAppendix)
	}

	versions := r.Group("/referralreportversions")
	{
		versions.POST("/", h.AddVersion)
		versions.PUT("/:id/", h.UpdateVersion)
		versions.POST("/:id/request_validation/", h.versionEvent(h.requestValidation))
		versions.POST("/:id/request_change/", h.versionEvent(h.requestChange))
		versions.POST("/:id/validate/", h.versionEvent(h.validate))
		versions.GET("/:id/get_validators/", h.versionEvent(h.getValidators))
	}

	appendixes := r.Group("/referralreportappendixes")
	{
		appendixes.PUT("/:id/", h.UpdateAppendix)
		appendixes.POST("/:id/request_validation/", h.appendixEvent(h.requestValidation))
		appendixes.POST("/:id/request_change/", h.appendixEvent(h.requestChange))
		appendixes.POST("/:id/validate/", h.appendixEvent(h.validate))
		appendixes.GET("/:id/get_validators/", h.appendixEvent(h.getValidators))
	}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid id", err))
		return uuid.Nil, false
	}
	return id, true
}

// versionEvent and appendixEvent bind the path id to a typed item reference so
// the same event actions serve both resources.
func (h *Handler) versionEvent(action func(*gin.Context, model.ItemRef)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		action(c, model.NewItemRef(model.ItemKindReportVersion, id))
	}
}

func (h *Handler) appendixEvent(action func(*gin.Context, model.ItemRef)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		action(c, model.NewItemRef(model.ItemKindReportAppendix, id))
	}
}

func (h *Handler) GetByReferral(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rep, err := h.svc.GetByReferral(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rep)
}

func (h *Handler) ListEvents(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	events, err := h.svc.ListEvents(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, events)
}

func (h *Handler) AddMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	event, err := h.svc.AddMessage(c.Request.Context(), middleware.UserID(c), id, req.Content)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, event)
}

func (h *Handler) Publish(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		VersionID uuid.UUID `json:"version" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	rep, err := h.svc.PublishReport(c.Request.Context(), middleware.UserID(c), id, req.VersionID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rep)
}

func (h *Handler) AddVersion(c *gin.Context) {
	var req struct {
		ReferralID   uuid.UUID `json:"referral" binding:"required"`
		DocumentName string    `json:"document_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	version, err := h.svc.AddVersion(c.Request.Context(), middleware.UserID(c), req.ReferralID, req.DocumentName)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, version)
}

func (h *Handler) UpdateVersion(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		DocumentName string `json:"document_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	version, err := h.svc.UpdateVersion(c.Request.Context(), middleware.UserID(c), id, req.DocumentName)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, version)
}

func (h *Handler) AddAppendix(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		DocumentName string `json:"document_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	appendix, err := h.svc.AddAppendix(c.Request.Context(), middleware.UserID(c), id, req.DocumentName)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, appendix)
}

func (h *Handler) UpdateAppendix(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		DocumentName string `json:"document_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	appendix, err := h.svc.UpdateAppendix(c.Request.Context(), middleware.UserID(c), id, req.DocumentName)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appendix)
}

func (h *Handler) requestValidation(c *gin.Context, item model.ItemRef) {
	var req struct {
		ReceiverRole     model.UnitMembershipRole `json:"receiver_role" binding:"required"`
		ReceiverUnitName string                   `json:"receiver_unit_name" binding:"required"`
		Comment          string                   `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	event, err := h.svc.RequestValidation(c.Request.Context(), middleware.UserID(c), item, req.ReceiverRole, req.ReceiverUnitName, req.Comment)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, event)
}

func (h *Handler) requestChange(c *gin.Context, item model.ItemRef) {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	event, err := h.svc.RequestChange(c.Request.Context(), middleware.UserID(c), item, req.Comment)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, event)
}

func (h *Handler) validate(c *gin.Context, item model.ItemRef) {
	var req struct {
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	event, err := h.svc.Validate(c.Request.Context(), middleware.UserID(c), item, req.Comment)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, event)
}

func (h *Handler) getValidators(c *gin.Context, item model.ItemRef) {
	tree, err := h.svc.GetValidators(c.Request.Context(), middleware.UserID(c), item)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tree)
}
