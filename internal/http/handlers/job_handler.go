package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/http/handlers/common"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/repository"
	"github.com/ignatzorin/workchain-backend/internal/service"
)

type JobHandler struct {
	svc         *service.JobService
	historyRepo *repository.JobHistoryRepository
}

func NewJobHandler(s *service.JobService, historyRepo *repository.JobHistoryRepository) *JobHandler {
	return &JobHandler{svc: s, historyRepo: historyRepo}
}

// CreateJob POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Title       string  `json:"title" binding:"required"`
		Category    string  `json:"category" binding:"required"`
		Description *string `json:"description"`
		ContentRef  *string `json:"content_ref"`
		Amount      string  `json:"amount" binding:"required"`
		DeadlineAt  *string `json:"deadline_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		common.RespondBadRequest(c, "некорректная сумма")
		return
	}

	var deadline *time.Time
	if req.DeadlineAt != nil {
		parsed, err := time.Parse(time.RFC3339, *req.DeadlineAt)
		if err != nil {
			common.RespondBadRequest(c, "некорректный срок выполнения, ожидается RFC3339")
			return
		}
		deadline = &parsed
	}

	job, err := h.svc.PostJob(c.Request.Context(), wallet, service.PostJobInput{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
		ContentRef:  req.ContentRef,
		Amount:      amount,
		DeadlineAt:  deadline,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// GetJob GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.svc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs GET /jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	var status *models.JobStatus
	if raw := c.Query("status"); raw != "" {
		st := models.JobStatus(raw)
		if !st.IsValid() {
			common.RespondBadRequest(c, "неизвестный статус заказа")
			return
		}
		status = &st
	}

	var category *string
	if raw := c.Query("category"); raw != "" {
		category = &raw
	}

	var participant *string
	if raw := c.Query("participant"); raw != "" {
		normalized := models.NormalizeAddress(raw)
		participant = &normalized
	}

	jobs, err := h.svc.ListJobs(c.Request.Context(), status, category, participant, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Apply POST /jobs/:id/apply
func (h *JobHandler) Apply(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		CoverLetter *string `json:"cover_letter"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	application, err := h.svc.Apply(c.Request.Context(), jobID, wallet, req.CoverLetter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, application)
}

// ListApplications GET /jobs/:id/applications
func (h *JobHandler) ListApplications(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	applications, err := h.svc.ListApplications(c.Request.Context(), jobID, wallet)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, applications)
}

// AcceptApplication POST /jobs/:id/accept
func (h *JobHandler) AcceptApplication(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		WorkerAddress string `json:"worker_address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.svc.AcceptApplication(c.Request.Context(), jobID, wallet, req.WorkerAddress)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// MarkComplete POST /jobs/:id/complete
func (h *JobHandler) MarkComplete(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.svc.MarkComplete(c.Request.Context(), jobID, wallet)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ApproveAndPay POST /jobs/:id/pay
func (h *JobHandler) ApproveAndPay(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.svc.ApproveAndPay(c.Request.Context(), jobID, wallet)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ExpireJob POST /jobs/:id/expire
func (h *JobHandler) ExpireJob(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.svc.ExpireJob(c.Request.Context(), jobID, wallet)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// JobHistory GET /jobs/:id/history
func (h *JobHandler) JobHistory(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	history, err := h.historyRepo.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, history)
}
