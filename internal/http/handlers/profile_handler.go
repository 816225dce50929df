package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/workchain-backend/internal/http/handlers/common"
	"github.com/ignatzorin/workchain-backend/internal/service"
)

type ProfileHandler struct {
	svc *service.ReputationService
}

func NewProfileHandler(s *service.ReputationService) *ProfileHandler {
	return &ProfileHandler{svc: s}
}

// GetProfile GET /profiles/:address
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		common.RespondBadRequest(c, "адрес не указан")
		return
	}

	profile, err := h.svc.GetProfile(c.Request.Context(), address)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetMyProfile GET /profiles/me
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	profile, err := h.svc.GetProfile(c.Request.Context(), wallet)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateSkills PUT /profiles/me/skills
func (h *ProfileHandler) UpdateSkills(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Skills []string `json:"skills" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.svc.UpdateSkills(c.Request.Context(), wallet, req.Skills)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetHistory GET /profiles/:address/history
func (h *ProfileHandler) GetHistory(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		common.RespondBadRequest(c, "адрес не указан")
		return
	}

	limit, offset := common.GetPagination(c)
	history, err := h.svc.GetHistory(c.Request.Context(), address, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// VerifySkill POST /profiles/:address/skills/verify
func (h *ProfileHandler) VerifySkill(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	address := c.Param("address")
	if address == "" {
		common.RespondBadRequest(c, "адрес не указан")
		return
	}

	var req struct {
		Skill string  `json:"skill" binding:"required"`
		JobID *string `json:"job_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var jobID *uuid.UUID
	if req.JobID != nil {
		parsed, err := uuid.Parse(*req.JobID)
		if err != nil {
			common.RespondBadRequest(c, "некорректный идентификатор заказа")
			return
		}
		jobID = &parsed
	}

	verification, err := h.svc.OnSkillVerified(c.Request.Context(), address, req.Skill, wallet, jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, verification)
}

// ListSkillVerifications GET /profiles/:address/skills/verifications
func (h *ProfileHandler) ListSkillVerifications(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		common.RespondBadRequest(c, "адрес не указан")
		return
	}

	verifications, err := h.svc.ListSkillVerifications(c.Request.Context(), address)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, verifications)
}

// ListTop GET /profiles/top
func (h *ProfileHandler) ListTop(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 10
	}

	profiles, err := h.svc.ListTop(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profiles)
}
