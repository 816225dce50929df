package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/http/handlers/common"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/service"
)

type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// RaiseDispute POST /jobs/:id/dispute
func (h *DisputeHandler) RaiseDispute(c *gin.Context) {
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
		Reason string `json:"reason" binding:"required"`
		Type   string `json:"type" binding:"required"`
		Stake  string `json:"stake"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	stake := decimal.Zero
	if req.Stake != "" {
		stake, err = decimal.NewFromString(req.Stake)
		if err != nil {
			common.RespondBadRequest(c, "некорректная сумма залога")
			return
		}
	}

	dispute, err := h.svc.RaiseDispute(c.Request.Context(), jobID, wallet, req.Reason, models.DisputeType(req.Type), stake)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// GetJobDispute GET /jobs/:id/dispute
func (h *DisputeHandler) GetJobDispute(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.svc.GetJobDispute(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// GetDispute GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.svc.GetDispute(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ListDisputes GET /disputes
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	status := models.DisputeStatus(c.DefaultQuery("status", string(models.DisputeStatusVoting)))
	if !status.IsValid() {
		common.RespondBadRequest(c, "неизвестный статус спора")
		return
	}

	disputes, err := h.svc.ListDisputes(c.Request.Context(), status, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// CastVote POST /disputes/:id/votes
func (h *DisputeHandler) CastVote(c *gin.Context) {
	wallet, err := common.CurrentWallet(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req struct {
		FavorPlaintiff *bool   `json:"favor_plaintiff" binding:"required"`
		VotingPower    string  `json:"voting_power" binding:"required"`
		Reasoning      *string `json:"reasoning"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	power, err := decimal.NewFromString(req.VotingPower)
	if err != nil {
		common.RespondBadRequest(c, "некорректный вес голоса")
		return
	}

	vote, err := h.svc.CastVote(c.Request.Context(), disputeID, wallet, *req.FavorPlaintiff, power, req.Reasoning)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, vote)
}

// ListVotes GET /disputes/:id/votes
func (h *DisputeHandler) ListVotes(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	votes, err := h.svc.ListVotes(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, votes)
}

// GetTally GET /disputes/:id/tally
func (h *DisputeHandler) GetTally(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	tally, err := h.svc.Tally(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, tally)
}

// Resolve POST /disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.svc.Resolve(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}
