package referral

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/partaj/referral-api/internal/middleware"
	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/service/referral"
	"github.com/partaj/referral-api/pkg/errors"
	"github.com/partaj/referral-api/pkg/httputil"
)

// Handler exposes the referral lifecycle as REST sub-routes named after the
// transition they perform.
type Handler struct {
	svc *referral.Service
}

func NewHandler(svc *referral.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	referrals := r.Group("/referrals")
	{
		referrals.POST("/", h.CreateDraft)
		referrals.GET("/", h.List)
		referrals.GET("/:id/", h.Get)
		referrals.PUT("/:id/", h.UpdateDraft)

		referrals.POST("/:id/send/", h.Send)
		referrals.POST("/:id/close_referral/", h.Close)
		referrals.POST("/:id/close_incomplete/", h.CloseIncomplete)

		referrals.POST("/:id/assign/", h.Assign)
		referrals.POST("/:id/unassign/", h.Unassign)
		referrals.POST("/:id/assign_unit/", h.AssignUnit)
		referrals.POST("/:id/unassign_unit/", h.UnassignUnit)

		referrals.POST("/:id/change_urgencylevel/", h.ChangeUrgency)
		referrals.POST("/:id/update_title/", h.UpdateTitle)
		referrals.POST("/:id/update_topic/", h.UpdateTopic)

		referrals.POST("/:id/split/", h.Split)
		referrals.POST("/:id/confirm_split/", h.ConfirmSplit)
		referrals.POST("/:id/cancel_split/", h.CancelSplit)

		referrals.POST("/:id/add_requester/", h.AddRequester)
		referrals.POST("/:id/remove_requester/", h.RemoveRequester)
		referrals.POST("/:id/add_observer/", h.AddObserver)
		referrals.POST("/:id/remove_observer/", h.RemoveObserver)

		referrals.GET("/:id/answers/", h.ListAnswers)
		referrals.POST("/:id/answers/", h.CreateAnswer)
		referrals.POST("/:id/request_answer_validation/", h.RequestAnswerValidation)
		referrals.POST("/:id/perform_answer_validation/", h.PerformAnswerValidation)
		referrals.POST("/:id/publish_answer/", h.PublishAnswer)
	}

	answers := r.Group("/referralanswers")
	{
		answers.PUT("/:id/", h.UpdateAnswer)
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

type draftRequest struct {
	Title          string     `json:"title"`
	Object         string     `json:"object"`
	Question       string     `json:"question"`
	Context        string     `json:"context"`
	PriorWork      string     `json:"prior_work"`
	TopicID        *uuid.UUID `json:"topic"`
	UrgencyLevelID *uuid.UUID `json:"urgency_level"`
}

func (r draftRequest) toParams() referral.CreateDraftParams {
	return referral.CreateDraftParams{
		Title:          r.Title,
		Object:         r.Object,
		Question:       r.Question,
		Context:        r.Context,
		PriorWork:      r.PriorWork,
		TopicID:        r.TopicID,
		UrgencyLevelID: r.UrgencyLevelID,
	}
}

func (h *Handler) CreateDraft(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.CreateDraft(c.Request.Context(), middleware.UserID(c), req.toParams())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, ref)
}

func (h *Handler) UpdateDraft(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.UpdateDraft(c.Request.Context(), middleware.UserID(c), id, req.toParams())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ref, err := h.svc.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) List(c *gin.Context) {
	var filters model.ReferralFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid query parameters", err))
		return
	}

	referrals, err := h.svc.List(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, referrals)
}

func (h *Handler) Send(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ref, err := h.svc.Send(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) Close(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		CloseExplanation string `json:"close_explanation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.Close(c.Request.Context(), middleware.UserID(c), id, req.CloseExplanation)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) CloseIncomplete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ref, err := h.svc.CloseIncomplete(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		AssigneeID uuid.UUID `json:"assignee" binding:"required"`
		UnitID     uuid.UUID `json:"unit" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.Assign(c.Request.Context(), middleware.UserID(c), id, req.AssigneeID, req.UnitID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) Unassign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		AssigneeID uuid.UUID `json:"assignee" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.Unassign(c.Request.Context(), middleware.UserID(c), id, req.AssigneeID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) AssignUnit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		UnitID uuid.UUID `json:"unit" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.AssignUnit(c.Request.Context(), middleware.UserID(c), id, req.UnitID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) UnassignUnit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		UnitID uuid.UUID `json:"unit" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.UnassignUnit(c.Request.Context(), middleware.UserID(c), id, req.UnitID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) ChangeUrgency(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		UrgencyLevelID uuid.UUID `json:"urgencylevel" binding:"required"`
		Explanation    string    `json:"explanation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.ChangeUrgency(c.Request.Context(), middleware.UserID(c), id, req.UrgencyLevelID, req.Explanation)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) UpdateTitle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.UpdateTitle(c.Request.Context(), middleware.UserID(c), id, req.Title)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) UpdateTopic(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		TopicID uuid.UUID `json:"topic" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.UpdateTopic(c.Request.Context(), middleware.UserID(c), id, req.TopicID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) Split(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	clone, err := h.svc.Split(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, clone)
}

func (h *Handler) ConfirmSplit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ref, err := h.svc.ConfirmSplit(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) CancelSplit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.CancelSplit(c.Request.Context(), middleware.UserID(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": "cancelled"})
}

type linkRequest struct {
	UserID        uuid.UUID                               `json:"user" binding:"required"`
	Notifications model.ReferralUserLinkNotificationsType `json:"notifications"`
}

func (h *Handler) AddRequester(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.AddRequester(c.Request.Context(), middleware.UserID(c), id, req.UserID, req.Notifications)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) RemoveRequester(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.RemoveRequester(c.Request.Context(), middleware.UserID(c), id, req.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) AddObserver(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.AddObserver(c.Request.Context(), middleware.UserID(c), id, req.UserID, req.Notifications)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) RemoveObserver(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.RemoveObserver(c.Request.Context(), middleware.UserID(c), id, req.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}

func (h *Handler) ListAnswers(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	answers, err := h.svc.ListAnswers(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, answers)
}

func (h *Handler) CreateAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	answer, err := h.svc.CreateAnswer(c.Request.Context(), middleware.UserID(c), id, req.Content)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, answer)
}

func (h *Handler) UpdateAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	answer, err := h.svc.UpdateAnswer(c.Request.Context(), middleware.UserID(c), id, req.Content)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, answer)
}

func (h *Handler) RequestAnswerValidation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		AnswerID    uuid.UUID `json:"answer" binding:"required"`
		ValidatorID uuid.UUID `json:"validator" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	request, err := h.svc.RequestAnswerValidation(c.Request.Context(), middleware.UserID(c), id, req.AnswerID, req.ValidatorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, request)
}

func (h *Handler) PerformAnswerValidation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		RequestID uuid.UUID `json:"validation_request" binding:"required"`
		Validated *bool     `json:"validated" binding:"required"`
		Comment   string    `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	response, err := h.svc.PerformAnswerValidation(c.Request.Context(), middleware.UserID(c), id, req.RequestID, *req.Validated, req.Comment)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, response)
}

func (h *Handler) PublishAnswer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		AnswerID uuid.UUID `json:"answer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	ref, err := h.svc.PublishAnswer(c.Request.Context(), middleware.UserID(c), id, req.AnswerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ref)
}
